package pool

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"peerlend/core/types"
)

const (
	EventTypePoolDeposit         = "pool.deposit"
	EventTypePoolWithdraw        = "pool.withdraw"
	EventTypePoolInvested        = "pool.invested"
	EventTypePoolReturns         = "pool.returns"
	EventTypePoolRefund          = "pool.refund"
	EventTypePoolPaused          = "pool.paused"
	EventTypePoolUnpaused        = "pool.unpaused"
	EventTypePoolSettingsUpdated = "pool.settings_updated"
)

// NewDepositEvent reports a lender deposit and the shares it minted.
func NewDepositEvent(s *State, lender [20]byte, amount, shares *big.Int) *types.Event {
	return newPoolEvent(EventTypePoolDeposit, s, map[string]string{
		"lender": hex.EncodeToString(lender[:]),
		"amount": bigString(amount),
		"shares": bigString(shares),
	})
}

// NewWithdrawEvent reports a share redemption and the amount paid out.
func NewWithdrawEvent(s *State, lender [20]byte, shares, amount *big.Int) *types.Event {
	return newPoolEvent(EventTypePoolWithdraw, s, map[string]string{
		"lender": hex.EncodeToString(lender[:]),
		"shares": bigString(shares),
		"amount": bigString(amount),
	})
}

// NewInvestedEvent reports one auto-investment allocation into a loan.
func NewInvestedEvent(s *State, loanID uint64, amount *big.Int) *types.Event {
	return newPoolEvent(EventTypePoolInvested, s, map[string]string{
		"loanId": strconv.FormatUint(loanID, 10),
		"amount": bigString(amount),
	})
}

// NewReturnsEvent reports a repayment distribution credited to the pool.
func NewReturnsEvent(s *State, loanID uint64, amount *big.Int) *types.Event {
	return newPoolEvent(EventTypePoolReturns, s, map[string]string{
		"loanId": strconv.FormatUint(loanID, 10),
		"amount": bigString(amount),
	})
}

// NewRefundEvent reports a funding refund credited back to the pool.
func NewRefundEvent(s *State, loanID uint64, amount *big.Int) *types.Event {
	return newPoolEvent(EventTypePoolRefund, s, map[string]string{
		"loanId": strconv.FormatUint(loanID, 10),
		"amount": bigString(amount),
	})
}

// NewPausedEvent reports the circuit breaker engaging.
func NewPausedEvent(s *State) *types.Event {
	return newPoolEvent(EventTypePoolPaused, s, nil)
}

// NewUnpausedEvent reports the circuit breaker releasing.
func NewUnpausedEvent(s *State) *types.Event {
	return newPoolEvent(EventTypePoolUnpaused, s, nil)
}

// NewSettingsUpdatedEvent reports an admin settings change.
func NewSettingsUpdatedEvent(s *State) *types.Event {
	return newPoolEvent(EventTypePoolSettingsUpdated, s, map[string]string{
		"minDeposit":           bigString(s.Settings.MinDeposit),
		"maxRiskLevel":         strconv.FormatUint(s.Settings.MaxRiskLevel, 10),
		"targetUtilisationBps": strconv.FormatUint(s.Settings.TargetUtilisationBps, 10),
		"maxExposureBps":       strconv.FormatUint(s.Settings.MaxExposureBps, 10),
		"autoInvestEnabled":    strconv.FormatBool(s.Settings.AutoInvestEnabled),
	})
}

func newPoolEvent(eventType string, s *State, extra map[string]string) *types.Event {
	attrs := map[string]string{
		"totalPoolValue":   bigString(s.TotalPoolValue),
		"totalShares":      bigString(s.TotalShares),
		"availableBalance": bigString(s.AvailableBalance),
		"totalInvested":    bigString(s.TotalInvested),
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
