package loan

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"peerlend/core/types"
)

const (
	EventTypeLoanCreated    = "loan.created"
	EventTypeLoanApproved   = "loan.approved"
	EventTypeLoanFunded     = "loan.funded"
	EventTypeLoanFullFunded = "loan.fully_funded"
	EventTypeFundsWithdrawn = "loan.funds_withdrawn"
	EventTypeLoanPayment    = "loan.payment"
	EventTypeLoanRepaid     = "loan.repaid"
	EventTypeLoanDefaulted  = "loan.defaulted"
	EventTypeLoanRefunded   = "loan.refunded"
)

// NewCreatedEvent returns the canonical payload for a newly created loan.
func NewCreatedEvent(r *Record) *types.Event { return newLoanEvent(EventTypeLoanCreated, r, nil) }

// NewApprovedEvent returns the payload emitted when an admin approves a loan.
func NewApprovedEvent(r *Record) *types.Event { return newLoanEvent(EventTypeLoanApproved, r, nil) }

// NewFundedEvent returns the payload emitted for each accepted contribution.
func NewFundedEvent(r *Record, contributor [20]byte, amount *big.Int) *types.Event {
	return newLoanEvent(EventTypeLoanFunded, r, map[string]string{
		"contributor": hex.EncodeToString(contributor[:]),
		"amount":      bigString(amount),
	})
}

// NewFullyFundedEvent returns the payload emitted when funding reaches the
// principal and the loan activates.
func NewFullyFundedEvent(r *Record) *types.Event {
	return newLoanEvent(EventTypeLoanFullFunded, r, map[string]string{
		"monthlyPayment": bigString(r.MonthlyPayment),
	})
}

// NewFundsWithdrawnEvent returns the payload emitted when the borrower draws
// the funded principal.
func NewFundsWithdrawnEvent(r *Record, payout, fee *big.Int) *types.Event {
	return newLoanEvent(EventTypeFundsWithdrawn, r, map[string]string{
		"payout": bigString(payout),
		"fee":    bigString(fee),
	})
}

// NewPaymentEvent returns the payload emitted for every accepted repayment.
func NewPaymentEvent(r *Record, p Payment) *types.Event {
	return newLoanEvent(EventTypeLoanPayment, r, map[string]string{
		"amount":    bigString(p.Amount),
		"principal": bigString(p.Principal),
		"interest":  bigString(p.Interest),
		"paymentNo": strconv.FormatUint(r.PaymentsMade, 10),
	})
}

// NewRepaidEvent returns the payload emitted when the outstanding balance
// reaches zero.
func NewRepaidEvent(r *Record) *types.Event { return newLoanEvent(EventTypeLoanRepaid, r, nil) }

// NewDefaultedEvent returns the payload emitted when missed payments push a
// loan into default.
func NewDefaultedEvent(r *Record) *types.Event {
	return newLoanEvent(EventTypeLoanDefaulted, r, map[string]string{
		"missedPayments": strconv.FormatUint(r.MissedPayments, 10),
	})
}

// NewRefundedEvent returns the payload emitted when an expired loan returns
// all contributions.
func NewRefundedEvent(r *Record, refunded *big.Int, contributors int) *types.Event {
	return newLoanEvent(EventTypeLoanRefunded, r, map[string]string{
		"refunded":     bigString(refunded),
		"contributors": strconv.Itoa(contributors),
	})
}

func newLoanEvent(eventType string, r *Record, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if r != nil {
		attrs["loanId"] = strconv.FormatUint(r.ID, 10)
		attrs["borrower"] = hex.EncodeToString(r.Borrower[:])
		attrs["principal"] = bigString(r.Principal)
		attrs["status"] = r.Status.String()
		attrs["totalFunded"] = bigString(r.TotalFunded)
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
