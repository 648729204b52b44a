package loan

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"time"

	"peerlend/core/events"
	"peerlend/core/types"
	"peerlend/crypto"
	nativecommon "peerlend/native/common"
)

const moduleName = "lending"

const secondsPerDay = 86_400

var (
	errNilState           = errors.New("loan engine: state not configured")
	errNotFound           = fmt.Errorf("loan engine: unknown loan: %w", nativecommon.ErrValidation)
	errInvalidAmount      = fmt.Errorf("loan engine: amount must be positive: %w", nativecommon.ErrValidation)
	errBelowMinimum       = fmt.Errorf("loan engine: contribution below minimum: %w", nativecommon.ErrValidation)
	errBelowInstallment   = fmt.Errorf("loan engine: payment below scheduled installment: %w", nativecommon.ErrValidation)
	errOverpayment        = fmt.Errorf("loan engine: payment exceeds outstanding balance, use payoff: %w", nativecommon.ErrValidation)
	errBelowPayoff        = fmt.Errorf("loan engine: amount below remaining balance: %w", nativecommon.ErrValidation)
	errNotApprover        = fmt.Errorf("loan engine: caller lacks approver capability: %w", nativecommon.ErrAuthorization)
	errNotVerified        = fmt.Errorf("loan engine: contributor not verified: %w", nativecommon.ErrAuthorization)
	errNotBorrower        = fmt.Errorf("loan engine: caller is not the borrower: %w", nativecommon.ErrAuthorization)
	errAlreadyWithdrawn   = fmt.Errorf("loan engine: funds already withdrawn: %w", nativecommon.ErrState)
	errOverfund           = fmt.Errorf("loan engine: contribution exceeds remaining principal: %w", nativecommon.ErrCapacity)
	errInsufficientFunds  = fmt.Errorf("loan engine: insufficient balance: %w", nativecommon.ErrCapacity)
	errDeadlinePassed     = fmt.Errorf("loan engine: funding deadline passed: %w", nativecommon.ErrTiming)
	errDeadlineNotElapsed = fmt.Errorf("loan engine: funding deadline not reached: %w", nativecommon.ErrTiming)
	errNotDefaultable     = fmt.Errorf("loan engine: missed payment threshold not reached: %w", nativecommon.ErrTiming)
	errReentrant          = fmt.Errorf("loan engine: %w", nativecommon.ErrReentrancy)
	errNegativeTransfer   = fmt.Errorf("loan engine: negative transfer amount: %w", nativecommon.ErrArithmetic)
)

func statusError(op string, s Status) error {
	return fmt.Errorf("loan engine: cannot %s in status %s: %w", op, s, nativecommon.ErrState)
}

type engineState interface {
	LoanGet(id uint64) (*Record, error)
	LoanPut(*Record) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	HasRole(role string, addr []byte) bool
}

// ReturnsHandler receives cross-module bookkeeping callbacks when a
// registered contributor (the lending pool) is credited by a distribution or
// a refund. The handler runs after all loan state is committed.
type ReturnsHandler interface {
	HandleLoanReturn(loanID uint64, amount *big.Int) error
	HandleLoanRefund(loanID uint64, amount *big.Int) error
}

type loanEvent struct {
	evt *types.Event
}

func (e loanEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e loanEvent) Event() *types.Event { return e.evt }

// Engine owns the per-loan funding and repayment state machine. Every public
// operation is atomic under the externally serialized call order: it
// validates, mutates all state, then moves value, holding a per-loan latch
// across the whole operation so reentrant calls are rejected.
type Engine struct {
	state       engineState
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	params      Params
	vault       [20]byte
	feeTreasury [20]byte
	nowFn       func() int64

	returnsAddr    [20]byte
	returnsHandler ReturnsHandler

	inFlight map[uint64]bool
}

// NewEngine constructs a loan engine with the provided params, a no-op
// emitter and the wall clock. Callers wire state, vault and treasury before
// use.
func NewEngine(params Params) *Engine {
	params.EnsureDefaults()
	return &Engine{
		emitter:  events.NoopEmitter{},
		params:   params.Clone(),
		nowFn:    func() int64 { return time.Now().Unix() },
		inFlight: make(map[uint64]bool),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVault configures the module account escrowing funded principal.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetFeeTreasury configures the address that receives the platform fee.
func (e *Engine) SetFeeTreasury(addr [20]byte) { e.feeTreasury = addr }

// SetPauses wires the circuit-breaker view consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetReturnsHandler registers the pool's bookkeeping callback for the given
// contributor address. From the loan's perspective the pool remains an
// ordinary contributor; the handler only mirrors credited value into pool
// accounting.
func (e *Engine) SetReturnsHandler(addr [20]byte, handler ReturnsHandler) {
	if e == nil {
		return
	}
	e.returnsAddr = addr
	e.returnsHandler = handler
}

// Params returns a copy of the engine's runtime parameters.
func (e *Engine) Params() Params { return e.params.Clone() }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(loanEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) begin(id uint64) error {
	if e.inFlight == nil {
		e.inFlight = make(map[uint64]bool)
	}
	if e.inFlight[id] {
		return errReentrant
	}
	e.inFlight[id] = true
	return nil
}

func (e *Engine) end(id uint64) { delete(e.inFlight, id) }

func (e *Engine) loadLoan(id uint64) (*Record, error) {
	rec, err := e.state.LoanGet(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errNotFound
	}
	rec.EnsureDefaults()
	return rec, nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		acc = &types.Account{}
	}
	acc.EnsureDefaults()
	return acc
}

// transfer moves value between ledger accounts and fails before mutating
// anything when the source balance is insufficient.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errNegativeTransfer
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

func (e *Engine) balanceOf(addr [20]byte) (*big.Int, error) {
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return ensureAccount(acc).Balance, nil
}

// Approve moves a loan from Created to Approved and starts the funding
// window. Only holders of the loan-admin role may approve.
func (e *Engine) Approve(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	rec, err := e.loadLoan(id)
	if err != nil {
		return err
	}
	if !e.state.HasRole(nativecommon.RoleLoanAdmin, caller[:]) {
		return errNotApprover
	}
	if rec.Status != StatusCreated {
		return statusError("approve", rec.Status)
	}

	now := uint64(e.now())
	rec.Status = StatusApproved
	rec.ApprovedAt = now
	rec.FundingDeadline = now + e.params.FundingWindowDays*secondsPerDay
	if err := e.state.LoanPut(rec); err != nil {
		return err
	}
	e.emit(NewApprovedEvent(rec))
	return nil
}

// Fund records a contribution against an approved loan. The contributor must
// carry the verified capability, the amount must clear the minimum floor, and
// the contribution may not push totalFunded past the principal. Reaching the
// principal activates the loan and fixes the amortization schedule.
func (e *Engine) Fund(contributor [20]byte, id uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	rec, err := e.loadLoan(id)
	if err != nil {
		return err
	}
	if !e.state.HasRole(nativecommon.RoleVerified, contributor[:]) {
		return errNotVerified
	}
	if rec.Status != StatusApproved {
		return statusError("fund", rec.Status)
	}
	if uint64(e.now()) > rec.FundingDeadline {
		return errDeadlinePassed
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if amount.Cmp(e.params.MinContribution) < 0 {
		return errBelowMinimum
	}
	if amount.Cmp(rec.remainingFunding()) > 0 {
		return errOverfund
	}
	balance, err := e.balanceOf(contributor)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}

	rec.credit(contributor, amount)
	rec.TotalFunded = new(big.Int).Add(rec.TotalFunded, amount)

	fullyFunded := rec.TotalFunded.Cmp(rec.Principal) == 0
	if fullyFunded {
		rec.Status = StatusActive
		rec.ActivatedAt = uint64(e.now())
		rec.MonthlyPayment = MonthlyPayment(rec.Principal, rec.RateBps, rec.TermMonths)
		rec.OutstandingPrincipal = new(big.Int).Set(rec.Principal)
		total := scheduledTotal(rec.Principal, rec.MonthlyPayment, rec.RateBps, rec.TermMonths)
		for i := range rec.Contributions {
			c := &rec.Contributions[i]
			c.ExpectedReturn = prorataShare(total, c.Amount, rec.TotalFunded)
		}
	}

	if err := e.state.LoanPut(rec); err != nil {
		return err
	}
	if err := e.transfer(contributor, e.vault, amount); err != nil {
		return err
	}
	e.emit(NewFundedEvent(rec, contributor, amount))
	if fullyFunded {
		e.emit(NewFullyFundedEvent(rec))
	}
	return nil
}

// WithdrawFunds pays the funded principal minus the platform fee to the
// borrower. Valid exactly once, on an active loan, for the borrower only.
func (e *Engine) WithdrawFunds(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	rec, err := e.loadLoan(id)
	if err != nil {
		return err
	}
	if !bytes.Equal(caller[:], rec.Borrower[:]) {
		return errNotBorrower
	}
	if rec.Status != StatusActive {
		return statusError("withdraw funds", rec.Status)
	}
	if rec.FundsWithdrawn {
		return errAlreadyWithdrawn
	}

	fee := new(big.Int).Mul(rec.Principal, new(big.Int).SetUint64(e.params.PlatformFeeBps))
	fee.Quo(fee, basisPoints)
	payout := new(big.Int).Sub(rec.Principal, fee)
	if payout.Sign() < 0 {
		return errNegativeTransfer
	}
	vaultBalance, err := e.balanceOf(e.vault)
	if err != nil {
		return err
	}
	if vaultBalance.Cmp(rec.Principal) < 0 {
		return errInsufficientFunds
	}

	rec.FundsWithdrawn = true
	if err := e.state.LoanPut(rec); err != nil {
		return err
	}
	if err := e.transfer(e.vault, rec.Borrower, payout); err != nil {
		return err
	}
	if err := e.transfer(e.vault, e.feeTreasury, fee); err != nil {
		return err
	}
	e.emit(NewFundsWithdrawnEvent(rec, payout, fee))
	return nil
}

// MakePayment accepts one installment from the borrower, splits it into
// interest and principal, records it, and distributes the full amount
// pro-rata across contributors. Rounding always favours the loan: each
// contributor receives a floored share and the dust stays in the vault.
func (e *Engine) MakePayment(caller [20]byte, id uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	rec, err := e.loadLoan(id)
	if err != nil {
		return err
	}
	if !bytes.Equal(caller[:], rec.Borrower[:]) {
		return errNotBorrower
	}
	if rec.Status != StatusActive {
		return statusError("pay", rec.Status)
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	interest := interestDue(rec.OutstandingPrincipal, rec.RateBps)
	payoffAmount := new(big.Int).Add(rec.OutstandingPrincipal, interest)
	due := new(big.Int).Set(rec.MonthlyPayment)
	if due.Cmp(payoffAmount) > 0 {
		due = payoffAmount
	}
	if amount.Cmp(due) < 0 {
		return errBelowInstallment
	}
	principalPortion := new(big.Int).Sub(amount, interest)
	if principalPortion.Cmp(rec.OutstandingPrincipal) > 0 {
		return errOverpayment
	}
	balance, err := e.balanceOf(rec.Borrower)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}

	return e.settlePayment(rec, amount, principalPortion, interest)
}

// PayoffLoan retires the loan early. The amount must cover the outstanding
// principal plus the current period's interest; any excess is simply never
// debited from the borrower.
func (e *Engine) PayoffLoan(caller [20]byte, id uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	rec, err := e.loadLoan(id)
	if err != nil {
		return err
	}
	if !bytes.Equal(caller[:], rec.Borrower[:]) {
		return errNotBorrower
	}
	if rec.Status != StatusActive {
		return statusError("pay off", rec.Status)
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	interest := interestDue(rec.OutstandingPrincipal, rec.RateBps)
	required := new(big.Int).Add(rec.OutstandingPrincipal, interest)
	if amount.Cmp(required) < 0 {
		return errBelowPayoff
	}
	balance, err := e.balanceOf(rec.Borrower)
	if err != nil {
		return err
	}
	if balance.Cmp(required) < 0 {
		return errInsufficientFunds
	}

	principalPortion := new(big.Int).Set(rec.OutstandingPrincipal)
	return e.settlePayment(rec, required, principalPortion, interest)
}

// settlePayment applies the checks-effects-interactions order shared by
// MakePayment and PayoffLoan: record and persist all loan state first, then
// move value, then notify the pool hook.
func (e *Engine) settlePayment(rec *Record, amount, principalPortion, interest *big.Int) error {
	payment := Payment{
		Amount:    new(big.Int).Set(amount),
		Timestamp: uint64(e.now()),
		Principal: new(big.Int).Set(principalPortion),
		Interest:  new(big.Int).Set(interest),
	}
	rec.Payments = append(rec.Payments, payment)
	rec.TotalRepaid = new(big.Int).Add(rec.TotalRepaid, amount)
	rec.PaymentsMade++
	rec.OutstandingPrincipal = new(big.Int).Sub(rec.OutstandingPrincipal, principalPortion)
	if rec.OutstandingPrincipal.Sign() < 0 {
		return fmt.Errorf("loan engine: outstanding principal underflow: %w", nativecommon.ErrArithmetic)
	}

	shares := make([]*big.Int, len(rec.Contributions))
	for i := range rec.Contributions {
		c := &rec.Contributions[i]
		shares[i] = prorataShare(amount, c.Amount, rec.TotalFunded)
		c.Withdrawn = new(big.Int).Add(c.Withdrawn, shares[i])
	}

	repaid := rec.OutstandingPrincipal.Sign() == 0
	if repaid {
		rec.Status = StatusRepaid
	}
	if err := e.state.LoanPut(rec); err != nil {
		return err
	}

	if err := e.transfer(rec.Borrower, e.vault, amount); err != nil {
		return err
	}
	poolShare := big.NewInt(0)
	for i := range rec.Contributions {
		if shares[i].Sign() == 0 {
			continue
		}
		contributor := rec.Contributions[i].Contributor
		if err := e.transfer(e.vault, contributor, shares[i]); err != nil {
			return err
		}
		if e.returnsHandler != nil && bytes.Equal(contributor[:], e.returnsAddr[:]) {
			poolShare = new(big.Int).Add(poolShare, shares[i])
		}
	}
	if poolShare.Sign() > 0 {
		if err := e.returnsHandler.HandleLoanReturn(rec.ID, poolShare); err != nil {
			return err
		}
	}

	e.emit(NewPaymentEvent(rec, payment))
	if repaid {
		e.emit(NewRepaidEvent(rec))
	}
	return nil
}

// UpdateMissedPayments recomputes how many installments are overdue past the
// grace period and stores the count. Callable by anyone.
func (e *Engine) UpdateMissedPayments(id uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if err := e.begin(id); err != nil {
		return 0, err
	}
	defer e.end(id)

	rec, err := e.loadLoan(id)
	if err != nil {
		return 0, err
	}
	if rec.Status != StatusActive {
		return 0, statusError("update missed payments", rec.Status)
	}
	missed := e.missedPayments(rec, uint64(e.now()))
	rec.MissedPayments = missed
	if err := e.state.LoanPut(rec); err != nil {
		return 0, err
	}
	return missed, nil
}

// MarkDefaulted transitions an active loan to Defaulted once the missed
// payment count reaches the configured limit. Remaining contributions become
// a realized loss to contributors; no value moves.
func (e *Engine) MarkDefaulted(id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	rec, err := e.loadLoan(id)
	if err != nil {
		return err
	}
	if rec.Status != StatusActive {
		return statusError("default", rec.Status)
	}
	missed := e.missedPayments(rec, uint64(e.now()))
	if missed < e.params.MissedPaymentLimit {
		return errNotDefaultable
	}
	rec.MissedPayments = missed
	rec.Status = StatusDefaulted
	if err := e.state.LoanPut(rec); err != nil {
		return err
	}
	e.emit(NewDefaultedEvent(rec))
	return nil
}

// missedPayments counts due dates that have slipped past their grace period
// without a matching installment. Due date k falls k payment periods after
// activation.
func (e *Engine) missedPayments(rec *Record, now uint64) uint64 {
	period := e.params.PaymentPeriodDays * secondsPerDay
	grace := e.params.GraceDays * secondsPerDay
	var missed uint64
	for k := rec.PaymentsMade + 1; k <= rec.TermMonths; k++ {
		due := rec.ActivatedAt + k*period
		if now <= due+grace {
			break
		}
		missed++
	}
	return missed
}

// IssueRefunds force-closes an approved loan whose deadline elapsed before
// full funding, returning every contributor exactly their recorded
// contribution. Callable by anyone once the deadline has passed.
func (e *Engine) IssueRefunds(id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	rec, err := e.loadLoan(id)
	if err != nil {
		return err
	}
	if rec.Status != StatusApproved {
		return statusError("refund", rec.Status)
	}
	if uint64(e.now()) <= rec.FundingDeadline {
		return errDeadlineNotElapsed
	}

	total := new(big.Int).Set(rec.TotalFunded)
	vaultBalance, err := e.balanceOf(e.vault)
	if err != nil {
		return err
	}
	if vaultBalance.Cmp(total) < 0 {
		return errInsufficientFunds
	}

	type refund struct {
		contributor [20]byte
		amount      *big.Int
	}
	refunds := make([]refund, 0, len(rec.Contributions))
	for i := range rec.Contributions {
		c := &rec.Contributions[i]
		if c.Amount.Sign() == 0 {
			continue
		}
		refunds = append(refunds, refund{contributor: c.Contributor, amount: new(big.Int).Set(c.Amount)})
	}
	for _, ref := range refunds {
		rec.removeContribution(ref.contributor)
	}
	rec.TotalFunded = big.NewInt(0)
	rec.Status = StatusExpired
	if err := e.state.LoanPut(rec); err != nil {
		return err
	}

	for _, ref := range refunds {
		if err := e.transfer(e.vault, ref.contributor, ref.amount); err != nil {
			return err
		}
		if e.returnsHandler != nil && bytes.Equal(ref.contributor[:], e.returnsAddr[:]) {
			if err := e.returnsHandler.HandleLoanRefund(rec.ID, ref.amount); err != nil {
				return err
			}
		}
	}
	e.emit(NewRefundedEvent(rec, total, len(refunds)))
	return nil
}

// Get returns a deep copy of the loan record.
func (e *Engine) Get(id uint64) (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rec, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Status returns the loan's current lifecycle state.
func (e *Engine) Status(id uint64) (Status, error) {
	rec, err := e.Get(id)
	if err != nil {
		return 0, err
	}
	return rec.Status, nil
}

// FundingProgressBps reports funding progress in basis points of principal.
func (e *Engine) FundingProgressBps(id uint64) (uint64, error) {
	rec, err := e.Get(id)
	if err != nil {
		return 0, err
	}
	return fundingProgressBps(rec), nil
}

// Summarize returns the explicit detail view of a loan.
func (e *Engine) Summarize(id uint64) (*Summary, error) {
	rec, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	borrower := crypto.NewAddress(crypto.LendPrefix, append([]byte(nil), rec.Borrower[:]...))
	return &Summary{
		ID:                   rec.ID,
		Borrower:             borrower.String(),
		Principal:            rec.Principal,
		RateBps:              rec.RateBps,
		TermMonths:           rec.TermMonths,
		Purpose:              rec.Purpose,
		Status:               rec.Status.String(),
		TotalFunded:          rec.TotalFunded,
		TotalRepaid:          rec.TotalRepaid,
		OutstandingPrincipal: rec.OutstandingPrincipal,
		MonthlyPayment:       rec.MonthlyPayment,
		FundingDeadline:      rec.FundingDeadline,
		FundingProgressBps:   fundingProgressBps(rec),
		Contributors:         len(rec.Contributions),
		PaymentsMade:         rec.PaymentsMade,
		MissedPayments:       rec.MissedPayments,
	}, nil
}

func fundingProgressBps(rec *Record) uint64 {
	if rec.Principal == nil || rec.Principal.Sign() == 0 {
		return 0
	}
	progress := new(big.Int).Mul(rec.TotalFunded, basisPoints)
	progress.Quo(progress, rec.Principal)
	return progress.Uint64()
}
