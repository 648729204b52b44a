package registry

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"peerlend/core/events"
	"peerlend/core/types"
	nativecommon "peerlend/native/common"
	"peerlend/native/loan"
)

const moduleName = "registry"

var (
	errNilState       = errors.New("loan registry: state not configured")
	errNilPrincipal   = fmt.Errorf("loan registry: principal must be positive: %w", nativecommon.ErrValidation)
	errZeroTerm       = fmt.Errorf("loan registry: term must be at least one month: %w", nativecommon.ErrValidation)
	errRateTooHigh    = fmt.Errorf("loan registry: rate exceeds maximum: %w", nativecommon.ErrValidation)
	errEmptyPurpose   = fmt.Errorf("loan registry: purpose is required: %w", nativecommon.ErrValidation)
	errNotVerified    = fmt.Errorf("loan registry: borrower not verified: %w", nativecommon.ErrAuthorization)
	errUnknownLoan    = fmt.Errorf("loan registry: unknown loan: %w", nativecommon.ErrValidation)
	errTermTooLong    = fmt.Errorf("loan registry: term exceeds maximum: %w", nativecommon.ErrValidation)
	errPurposeTooLong = fmt.Errorf("loan registry: purpose exceeds maximum length: %w", nativecommon.ErrValidation)
)

const (
	// maxRateBps caps the annual interest rate at 100%.
	maxRateBps = 10_000
	// maxTermMonths caps loan terms at ten years.
	maxTermMonths = 120
	// maxPurposeLen bounds the free-text purpose field.
	maxPurposeLen = 256
)

type registryState interface {
	NextLoanID() (uint64, error)
	LoanGet(id uint64) (*loan.Record, error)
	LoanPut(*loan.Record) error
	LoanIDs() ([]uint64, error)
	HasRole(role string, addr []byte) bool
}

// CreateRequest carries the borrower-supplied terms plus the off-ledger risk
// assessment attached at intake.
type CreateRequest struct {
	Borrower         [20]byte
	Principal        *big.Int
	RateBps          uint64
	TermMonths       uint64
	Purpose          string
	Collateral       string
	RiskGrade        string
	SuggestedRateBps uint64
}

// Registry is the intake and directory surface for loans. It assigns
// sequential identifiers, records new requests in Created status, and serves
// listing queries. Lifecycle transitions live in the loan engine.
type Registry struct {
	state   registryState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewRegistry constructs a registry with a no-op emitter and the wall clock.
func NewRegistry() *Registry {
	return &Registry{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the registry to the external persistence layer.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetPauses wires the circuit-breaker view consulted before intake.
func (r *Registry) SetPauses(p nativecommon.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

func (r *Registry) emit(event *types.Event) {
	if r == nil || r.emitter == nil || event == nil {
		return
	}
	r.emitter.Emit(registryEvent{evt: event})
}

// CreateLoan validates a borrowing request, assigns the next sequential loan
// identifier and records the loan in Created status awaiting approval. The
// borrower must hold the verified capability.
func (r *Registry) CreateLoan(req CreateRequest) (*loan.Record, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}
	if !r.state.HasRole(nativecommon.RoleVerified, req.Borrower[:]) {
		return nil, errNotVerified
	}
	if req.Principal == nil || req.Principal.Sign() <= 0 {
		return nil, errNilPrincipal
	}
	if req.TermMonths == 0 {
		return nil, errZeroTerm
	}
	if req.TermMonths > maxTermMonths {
		return nil, errTermTooLong
	}
	if req.RateBps > maxRateBps {
		return nil, errRateTooHigh
	}
	if req.Purpose == "" {
		return nil, errEmptyPurpose
	}
	if len(req.Purpose) > maxPurposeLen {
		return nil, errPurposeTooLong
	}

	id, err := r.state.NextLoanID()
	if err != nil {
		return nil, err
	}
	rec := &loan.Record{
		ID:               id,
		Borrower:         req.Borrower,
		Principal:        new(big.Int).Set(req.Principal),
		RateBps:          req.RateBps,
		TermMonths:       req.TermMonths,
		Purpose:          req.Purpose,
		Collateral:       req.Collateral,
		RiskGrade:        req.RiskGrade,
		SuggestedRateBps: req.SuggestedRateBps,
		Status:           loan.StatusCreated,
		CreatedAt:        uint64(r.nowFn()),
	}
	rec.EnsureDefaults()
	if err := r.state.LoanPut(rec); err != nil {
		return nil, err
	}
	r.emit(loan.NewCreatedEvent(rec))
	return rec.Clone(), nil
}

// Get returns a deep copy of the stored loan record.
func (r *Registry) Get(id uint64) (*loan.Record, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	rec, err := r.state.LoanGet(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errUnknownLoan
	}
	return rec.Clone(), nil
}

// IsApproved reports whether a loan has left the Created intake state.
func (r *Registry) IsApproved(id uint64) (bool, error) {
	rec, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return rec.Status != loan.StatusCreated, nil
}

// ListLoans returns the identifiers of all recorded loans in ascending order.
func (r *Registry) ListLoans() ([]uint64, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	return r.state.LoanIDs()
}

// ListByStatus returns the identifiers of loans currently in the given
// lifecycle state, in ascending order.
func (r *Registry) ListByStatus(status loan.Status) ([]uint64, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	ids, err := r.state.LoanIDs()
	if err != nil {
		return nil, err
	}
	filtered := make([]uint64, 0, len(ids))
	for _, id := range ids {
		rec, err := r.state.LoanGet(id)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.Status == status {
			filtered = append(filtered, id)
		}
	}
	return filtered, nil
}

// ListByBorrower returns the identifiers of loans requested by the given
// borrower, in ascending order.
func (r *Registry) ListByBorrower(borrower [20]byte) ([]uint64, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	ids, err := r.state.LoanIDs()
	if err != nil {
		return nil, err
	}
	filtered := make([]uint64, 0, len(ids))
	for _, id := range ids {
		rec, err := r.state.LoanGet(id)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.Borrower == borrower {
			filtered = append(filtered, id)
		}
	}
	return filtered, nil
}
