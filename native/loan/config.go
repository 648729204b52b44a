package loan

import "math/big"

// Params captures the runtime configuration for the loan module. Durations
// are expressed in whole days; only day-granularity deadlines are meaningful.
type Params struct {
	// MinContribution is the smallest amount a single fund call may carry.
	MinContribution *big.Int `toml:"MinContribution"`
	// PlatformFeeBps is deducted from the principal when the borrower
	// withdraws, routed to the fee treasury.
	PlatformFeeBps uint64 `toml:"PlatformFeeBps"`
	// FundingWindowDays is added to the approval time to derive the funding
	// deadline.
	FundingWindowDays uint64 `toml:"FundingWindowDays"`
	// PaymentPeriodDays is the length of one installment period.
	PaymentPeriodDays uint64 `toml:"PaymentPeriodDays"`
	// GraceDays is how long past a due date a payment may arrive before it
	// counts as missed.
	GraceDays uint64 `toml:"GraceDays"`
	// MissedPaymentLimit is the number of missed installments at which the
	// loan becomes eligible for default.
	MissedPaymentLimit uint64 `toml:"MissedPaymentLimit"`
}

// DefaultParams returns the production defaults: a 30-day funding window,
// monthly installments with a 15-day grace period, default after three missed
// payments, and a 1% platform fee.
func DefaultParams() Params {
	return Params{
		MinContribution:    big.NewInt(1),
		PlatformFeeBps:     100,
		FundingWindowDays:  30,
		PaymentPeriodDays:  30,
		GraceDays:          15,
		MissedPaymentLimit: 3,
	}
}

// EnsureDefaults populates nil or zero fields with the production defaults.
func (p *Params) EnsureDefaults() {
	defaults := DefaultParams()
	if p.MinContribution == nil || p.MinContribution.Sign() <= 0 {
		p.MinContribution = defaults.MinContribution
	}
	if p.FundingWindowDays == 0 {
		p.FundingWindowDays = defaults.FundingWindowDays
	}
	if p.PaymentPeriodDays == 0 {
		p.PaymentPeriodDays = defaults.PaymentPeriodDays
	}
	if p.MissedPaymentLimit == 0 {
		p.MissedPaymentLimit = defaults.MissedPaymentLimit
	}
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	clone := p
	if p.MinContribution != nil {
		clone.MinContribution = new(big.Int).Set(p.MinContribution)
	}
	return clone
}
