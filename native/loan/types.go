package loan

import (
	"bytes"
	"math/big"
)

// Status represents the lifecycle states of a loan record. Transitions only
// ever move forward; Repaid, Defaulted and Expired are permanent markers.
type Status uint8

const (
	StatusCreated Status = iota
	StatusApproved
	StatusActive
	StatusRepaid
	StatusDefaulted
	StatusExpired
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusApproved, StatusActive, StatusRepaid, StatusDefaulted, StatusExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusRepaid, StatusDefaulted, StatusExpired:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusApproved:
		return "approved"
	case StatusActive:
		return "active"
	case StatusRepaid:
		return "repaid"
	case StatusDefaulted:
		return "defaulted"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Contribution records one lender's stake in a loan. The pool appears here as
// an ordinary contributor with no special privilege.
type Contribution struct {
	Contributor [20]byte
	// Amount is the total contributed, in the smallest currency unit.
	Amount *big.Int
	// Withdrawn accumulates everything returned to the contributor through
	// distributions and refunds.
	Withdrawn *big.Int
	// ExpectedReturn is the contributor's pro-rata slice of the scheduled
	// repayment total, fixed at activation.
	ExpectedReturn *big.Int
}

// Payment is one entry of the append-only repayment history.
type Payment struct {
	Amount    *big.Int
	Timestamp uint64
	Principal *big.Int
	Interest  *big.Int
}

// Record is the durable ledger entry for a single loan. Amounts are big
// integers in the smallest currency unit; rates are annual basis points.
type Record struct {
	ID         uint64
	Borrower   [20]byte
	Principal  *big.Int
	RateBps    uint64
	TermMonths uint64
	Purpose    string
	Collateral string
	// RiskGrade and SuggestedRateBps arrive from the off-ledger credit
	// scorer at creation time and are informational.
	RiskGrade        string
	SuggestedRateBps uint64

	Status          Status
	CreatedAt       uint64
	ApprovedAt      uint64
	FundingDeadline uint64
	ActivatedAt     uint64

	// MonthlyPayment is the annuity installment fixed when the loan
	// activates.
	MonthlyPayment *big.Int

	TotalFunded          *big.Int
	TotalRepaid          *big.Int
	OutstandingPrincipal *big.Int
	PaymentsMade         uint64
	MissedPayments       uint64
	FundsWithdrawn       bool

	Contributions []Contribution
	Payments      []Payment
}

// EnsureDefaults populates nil big.Int fields so RLP handling is safe.
func (r *Record) EnsureDefaults() {
	if r == nil {
		return
	}
	if r.Principal == nil {
		r.Principal = big.NewInt(0)
	}
	if r.MonthlyPayment == nil {
		r.MonthlyPayment = big.NewInt(0)
	}
	if r.TotalFunded == nil {
		r.TotalFunded = big.NewInt(0)
	}
	if r.TotalRepaid == nil {
		r.TotalRepaid = big.NewInt(0)
	}
	if r.OutstandingPrincipal == nil {
		r.OutstandingPrincipal = big.NewInt(0)
	}
	for i := range r.Contributions {
		c := &r.Contributions[i]
		if c.Amount == nil {
			c.Amount = big.NewInt(0)
		}
		if c.Withdrawn == nil {
			c.Withdrawn = big.NewInt(0)
		}
		if c.ExpectedReturn == nil {
			c.ExpectedReturn = big.NewInt(0)
		}
	}
}

// Clone returns a deep copy of the record so callers can safely mutate the
// copy without affecting the stored instance.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Principal = cloneBig(r.Principal)
	clone.MonthlyPayment = cloneBig(r.MonthlyPayment)
	clone.TotalFunded = cloneBig(r.TotalFunded)
	clone.TotalRepaid = cloneBig(r.TotalRepaid)
	clone.OutstandingPrincipal = cloneBig(r.OutstandingPrincipal)
	clone.Contributions = make([]Contribution, len(r.Contributions))
	for i, c := range r.Contributions {
		clone.Contributions[i] = Contribution{
			Contributor:    c.Contributor,
			Amount:         cloneBig(c.Amount),
			Withdrawn:      cloneBig(c.Withdrawn),
			ExpectedReturn: cloneBig(c.ExpectedReturn),
		}
	}
	clone.Payments = make([]Payment, len(r.Payments))
	for i, p := range r.Payments {
		clone.Payments[i] = Payment{
			Amount:    cloneBig(p.Amount),
			Timestamp: p.Timestamp,
			Principal: cloneBig(p.Principal),
			Interest:  cloneBig(p.Interest),
		}
	}
	return &clone
}

// contributionIndex returns the position of the contributor's ledger entry or
// -1 when absent.
func (r *Record) contributionIndex(addr [20]byte) int {
	for i := range r.Contributions {
		if bytes.Equal(r.Contributions[i].Contributor[:], addr[:]) {
			return i
		}
	}
	return -1
}

// credit records or increments the contributor's ledger entry.
func (r *Record) credit(addr [20]byte, amount *big.Int) {
	if idx := r.contributionIndex(addr); idx >= 0 {
		c := &r.Contributions[idx]
		c.Amount = new(big.Int).Add(c.Amount, amount)
		return
	}
	r.Contributions = append(r.Contributions, Contribution{
		Contributor:    addr,
		Amount:         new(big.Int).Set(amount),
		Withdrawn:      big.NewInt(0),
		ExpectedReturn: big.NewInt(0),
	})
}

// removeContribution drops the contributor's entry with a swap-with-last so
// removal stays O(1) and iteration order remains deterministic for the rest.
func (r *Record) removeContribution(addr [20]byte) {
	idx := r.contributionIndex(addr)
	if idx < 0 {
		return
	}
	last := len(r.Contributions) - 1
	r.Contributions[idx] = r.Contributions[last]
	r.Contributions = r.Contributions[:last]
}

// remainingFunding returns principal − totalFunded, floored at zero.
func (r *Record) remainingFunding() *big.Int {
	remaining := new(big.Int).Sub(r.Principal, r.TotalFunded)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// Summary is the explicit named shape of a loan detail query.
type Summary struct {
	ID                   uint64   `json:"id"`
	Borrower             string   `json:"borrower"`
	Principal            *big.Int `json:"principal"`
	RateBps              uint64   `json:"rateBps"`
	TermMonths           uint64   `json:"termMonths"`
	Purpose              string   `json:"purpose"`
	Status               string   `json:"status"`
	TotalFunded          *big.Int `json:"totalFunded"`
	TotalRepaid          *big.Int `json:"totalRepaid"`
	OutstandingPrincipal *big.Int `json:"outstandingPrincipal"`
	MonthlyPayment       *big.Int `json:"monthlyPayment"`
	FundingDeadline      uint64   `json:"fundingDeadline"`
	FundingProgressBps   uint64   `json:"fundingProgressBps"`
	Contributors         int      `json:"contributors"`
	PaymentsMade         uint64   `json:"paymentsMade"`
	MissedPayments       uint64   `json:"missedPayments"`
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
