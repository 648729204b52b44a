package pool

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

const moduleName = "pool"

var (
	errNilState          = errors.New("pool engine: state not configured")
	errInvalidAmount     = fmt.Errorf("pool engine: amount must be positive: %w", nativecommon.ErrValidation)
	errBelowMinimum      = fmt.Errorf("pool engine: deposit below minimum: %w", nativecommon.ErrValidation)
	errInvalidShares     = fmt.Errorf("pool engine: shares must be positive: %w", nativecommon.ErrValidation)
	errExcessShares      = fmt.Errorf("pool engine: shares exceed balance: %w", nativecommon.ErrValidation)
	errUnknownLender     = fmt.Errorf("pool engine: unknown lender: %w", nativecommon.ErrValidation)
	errRiskOutOfRange    = fmt.Errorf("pool engine: risk tolerance out of range: %w", nativecommon.ErrValidation)
	errUtilisationBounds = fmt.Errorf("pool engine: target utilisation exceeds 100%%: %w", nativecommon.ErrValidation)
	errExposureBounds    = fmt.Errorf("pool engine: exposure cap exceeds 100%%: %w", nativecommon.ErrValidation)
	errFeeBounds         = fmt.Errorf("pool engine: fee exceeds cap: %w", nativecommon.ErrValidation)
	errNotAdmin          = fmt.Errorf("pool engine: caller lacks admin capability: %w", nativecommon.ErrAuthorization)
	errInsufficientCash  = fmt.Errorf("pool engine: withdrawal exceeds available liquidity: %w", nativecommon.ErrCapacity)
	errInsufficientFunds = fmt.Errorf("pool engine: insufficient balance: %w", nativecommon.ErrCapacity)
	errReentrant         = fmt.Errorf("pool engine: %w", nativecommon.ErrReentrancy)
)

type engineState interface {
	PoolGet() (*State, error)
	PoolPut(*State) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	HasRole(role string, addr []byte) bool
	SetPaused(module string, paused bool) error
}

// LoanDirectory enumerates loans and answers approval lookups. The registry
// implements it.
type LoanDirectory interface {
	ListLoans() ([]uint64, error)
	IsApproved(id uint64) (bool, error)
}

// LoanFunder exposes the loan read/fund surface the pool invests through.
// The loan engine implements it.
type LoanFunder interface {
	Get(id uint64) (*loan.Record, error)
	Fund(contributor [20]byte, id uint64, amount *big.Int) error
	Params() loan.Params
}

type poolEvent struct {
	evt *types.Event
}

func (e poolEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e poolEvent) Event() *types.Event { return e.evt }

// Engine owns the pooled share ledger and its auto-investment loop. All
// operations run under a single latch: the pool is one instance, so one
// in-flight operation at a time is the correctness boundary. The sanctioned
// nested call is auto-investment invoking loan.Fund, which transfers from the
// pool's module account into the loan vault without re-entering the pool.
type Engine struct {
	state      engineState
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	moduleAddr [20]byte
	directory  LoanDirectory
	funder     LoanFunder
	nowFn      func() int64
	inFlight   bool
}

// NewEngine constructs a pool engine with a no-op emitter and the wall
// clock. Callers wire state, the module account address, and the loan
// directory/funder pair before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetModuleAddress configures the pool's own ledger account, the address it
// contributes to loans from.
func (e *Engine) SetModuleAddress(addr [20]byte) { e.moduleAddr = addr }

// ModuleAddress returns the pool's ledger account address.
func (e *Engine) ModuleAddress() [20]byte { return e.moduleAddr }

// SetLoanDirectory wires the registry's enumeration surface.
func (e *Engine) SetLoanDirectory(d LoanDirectory) { e.directory = d }

// SetLoanFunder wires the loan engine's read/fund surface.
func (e *Engine) SetLoanFunder(f LoanFunder) { e.funder = f }

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

// SetNowFunc overrides the time source, primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(poolEvent{evt: event})
}

func (e *Engine) begin() error {
	if e.inFlight {
		return errReentrant
	}
	e.inFlight = true
	return nil
}

func (e *Engine) end() { e.inFlight = false }

func (e *Engine) loadState() (*State, error) {
	s, err := e.state.PoolGet()
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = NewState(DefaultSettings())
	}
	s.EnsureDefaults()
	return s, nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		acc = &types.Account{}
	}
	acc.EnsureDefaults()
	return acc
}

func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
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

// Deposit accepts capital from a lender, mints shares at the current price,
// registers first-time lenders, and, when auto-investment is enabled, sweeps
// idle capital into suitable loans before returning.
func (e *Engine) Deposit(lender [20]byte, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()

	s, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if amount.Cmp(s.Settings.MinDeposit) < 0 {
		return nil, errBelowMinimum
	}
	lenderAcc, err := e.state.GetAccount(lender[:])
	if err != nil {
		return nil, err
	}
	if ensureAccount(lenderAcc).Balance.Cmp(amount) < 0 {
		return nil, errInsufficientFunds
	}

	// shares = amount at price 1.0, else amount × totalShares / TPV, floor.
	var shares *big.Int
	if s.TotalShares.Sign() == 0 {
		shares = new(big.Int).Set(amount)
	} else {
		shares = new(big.Int).Mul(amount, s.TotalShares)
		shares.Quo(shares, s.TotalPoolValue)
	}
	if shares.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	idx := s.lenderIndex(lender)
	if idx < 0 {
		s.Lenders = append(s.Lenders, LenderInfo{
			Addr:           lender,
			TotalDeposited: big.NewInt(0),
			TotalWithdrawn: big.NewInt(0),
			ShareBalance:   big.NewInt(0),
			RiskTolerance:  defaultRiskTolerance,
			AutoInvest:     true,
		})
		idx = len(s.Lenders) - 1
	}
	entry := &s.Lenders[idx]
	entry.TotalDeposited = new(big.Int).Add(entry.TotalDeposited, amount)
	entry.ShareBalance = new(big.Int).Add(entry.ShareBalance, shares)
	entry.LastDepositTime = uint64(e.nowFn())

	s.TotalShares = new(big.Int).Add(s.TotalShares, shares)
	s.TotalPoolValue = new(big.Int).Add(s.TotalPoolValue, amount)
	s.AvailableBalance = new(big.Int).Add(s.AvailableBalance, amount)

	if err := e.state.PoolPut(s); err != nil {
		return nil, err
	}
	if err := e.transfer(lender, e.moduleAddr, amount); err != nil {
		return nil, err
	}
	e.emit(NewDepositEvent(s, lender, amount, shares))

	if s.Settings.AutoInvestEnabled && entry.AutoInvest {
		if err := e.autoInvest(s, entry.RiskTolerance); err != nil {
			return nil, err
		}
	}
	return shares, nil
}

// Withdraw burns the lender's shares at the current price and pays out of
// available liquidity only; the pool never liquidates loan positions to
// satisfy a withdrawal. Lenders redeeming their full balance are evicted
// from the active set.
func (e *Engine) Withdraw(lender [20]byte, shares *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()

	s, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, errInvalidShares
	}
	idx := s.lenderIndex(lender)
	if idx < 0 {
		return nil, errUnknownLender
	}
	entry := &s.Lenders[idx]
	if shares.Cmp(entry.ShareBalance) > 0 {
		return nil, errExcessShares
	}

	// amount = shares × TPV / totalShares, floor.
	amount := new(big.Int).Mul(shares, s.TotalPoolValue)
	amount.Quo(amount, s.TotalShares)
	if amount.Cmp(s.AvailableBalance) > 0 {
		return nil, errInsufficientCash
	}

	entry.ShareBalance = new(big.Int).Sub(entry.ShareBalance, shares)
	entry.TotalWithdrawn = new(big.Int).Add(entry.TotalWithdrawn, amount)
	if entry.ShareBalance.Sign() == 0 {
		s.removeLender(idx)
	}
	s.TotalShares = new(big.Int).Sub(s.TotalShares, shares)
	s.TotalPoolValue = new(big.Int).Sub(s.TotalPoolValue, amount)
	s.AvailableBalance = new(big.Int).Sub(s.AvailableBalance, amount)

	if err := e.state.PoolPut(s); err != nil {
		return nil, err
	}
	if err := e.transfer(e.moduleAddr, lender, amount); err != nil {
		return nil, err
	}
	e.emit(NewWithdrawEvent(s, lender, shares, amount))
	return amount, nil
}

// autoInvest sweeps idle capital toward the target utilisation. The caller
// holds the latch and has already persisted the deposit; each allocation is
// persisted before the nested loan.Fund call so the loan engine observes the
// pool's committed balance. riskCeiling is the depositing lender's tolerance
// and tightens the pool-level filter when lower.
func (e *Engine) autoInvest(s *State, riskCeiling uint64) error {
	if e.directory == nil || e.funder == nil {
		return nil
	}
	target := new(big.Int).Mul(s.TotalPoolValue, new(big.Int).SetUint64(s.Settings.TargetUtilisationBps))
	target.Quo(target, big.NewInt(basisPoints))
	needed := new(big.Int).Sub(target, s.TotalInvested)
	if needed.Sign() <= 0 {
		return nil
	}
	if s.AvailableBalance.Cmp(needed) < 0 {
		return nil
	}
	ids, err := e.directory.ListLoans()
	if err != nil {
		return err
	}
	maxRisk := s.Settings.MaxRiskLevel
	if riskCeiling > 0 && riskCeiling < maxRisk {
		maxRisk = riskCeiling
	}
	floor := e.funder.Params().MinContribution
	capPerLoan := new(big.Int).Mul(s.TotalPoolValue, new(big.Int).SetUint64(s.Settings.MaxExposureBps))
	capPerLoan.Quo(capPerLoan, big.NewInt(basisPoints))

	for _, id := range ids {
		if needed.Sign() <= 0 {
			break
		}
		ok, err := e.suitable(id, maxRisk)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		rec, err := e.funder.Get(id)
		if err != nil {
			return err
		}
		remaining := new(big.Int).Sub(rec.Principal, rec.TotalFunded)
		headroom := new(big.Int).Sub(capPerLoan, s.investedIn(id))
		amount := minBig(remaining, headroom, needed, s.AvailableBalance)
		if amount.Sign() <= 0 {
			continue
		}
		if floor != nil && amount.Cmp(floor) < 0 {
			continue
		}

		s.AvailableBalance = new(big.Int).Sub(s.AvailableBalance, amount)
		s.TotalInvested = new(big.Int).Add(s.TotalInvested, amount)
		s.recordInvestment(id, amount)
		if err := e.state.PoolPut(s); err != nil {
			return err
		}
		if err := e.funder.Fund(e.moduleAddr, id, amount); err != nil {
			// The loan engine may still reject an allocation the
			// suitability filter let through. Release it and move on;
			// one unfundable loan must not abort the deposit.
			s.AvailableBalance = new(big.Int).Add(s.AvailableBalance, amount)
			s.TotalInvested = new(big.Int).Sub(s.TotalInvested, amount)
			s.releaseInvestment(id, amount)
			if putErr := e.state.PoolPut(s); putErr != nil {
				return putErr
			}
			continue
		}
		needed.Sub(needed, amount)
		e.emit(NewInvestedEvent(s, id, amount))
	}
	return nil
}

// suitable reports whether the pool may invest in the loan: approved by the
// registry, still in the funding window, not fully funded, and within the
// effective risk ceiling when the loan carries a recognised grade.
func (e *Engine) suitable(id uint64, maxRisk uint64) (bool, error) {
	approved, err := e.directory.IsApproved(id)
	if err != nil {
		return false, err
	}
	if !approved {
		return false, nil
	}
	rec, err := e.funder.Get(id)
	if err != nil {
		return false, err
	}
	if rec.Status != loan.StatusApproved {
		return false, nil
	}
	if rec.FundingDeadline != 0 && uint64(e.nowFn()) > rec.FundingDeadline {
		return false, nil
	}
	if rec.TotalFunded.Cmp(rec.Principal) >= 0 {
		return false, nil
	}
	if level := riskLevel(rec.RiskGrade); level > 0 && level > maxRisk {
		return false, nil
	}
	return true, nil
}

// riskLevel maps the off-ledger scorer's letter grades onto the 1-10
// tolerance scale. Unknown grades return 0 and are not filtered.
func riskLevel(grade string) uint64 {
	switch grade {
	case "A":
		return 2
	case "B":
		return 4
	case "C":
		return 6
	case "D":
		return 8
	case "E":
		return 10
	default:
		return 0
	}
}

// HandleLoanReturn credits a repayment distribution that the loan engine has
// already transferred to the pool's module account. Pool value, lifetime
// returns and available liquidity all rise by the credited amount, which is
// what lifts the share price for every holder.
func (e *Engine) HandleLoanReturn(loanID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	s, err := e.loadState()
	if err != nil {
		return err
	}
	s.TotalPoolValue = new(big.Int).Add(s.TotalPoolValue, amount)
	s.TotalReturns = new(big.Int).Add(s.TotalReturns, amount)
	s.AvailableBalance = new(big.Int).Add(s.AvailableBalance, amount)
	if err := e.state.PoolPut(s); err != nil {
		return err
	}
	e.emit(NewReturnsEvent(s, loanID, amount))
	return nil
}

// HandleLoanRefund credits a funding refund back into available liquidity
// and releases the corresponding invested exposure. Pool value is unchanged:
// the capital was already counted, it just moves back from invested to idle.
func (e *Engine) HandleLoanRefund(loanID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	s, err := e.loadState()
	if err != nil {
		return err
	}
	s.AvailableBalance = new(big.Int).Add(s.AvailableBalance, amount)
	s.TotalInvested = new(big.Int).Sub(s.TotalInvested, amount)
	if s.TotalInvested.Sign() < 0 {
		return fmt.Errorf("pool engine: invested balance underflow: %w", nativecommon.ErrArithmetic)
	}
	s.releaseInvestment(loanID, amount)
	if err := e.state.PoolPut(s); err != nil {
		return err
	}
	e.emit(NewRefundEvent(s, loanID, amount))
	return nil
}

// UpdatePoolSettings replaces the pool configuration. Admin only; bounds are
// validated before anything persists.
func (e *Engine) UpdatePoolSettings(caller [20]byte, settings Settings) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if !e.state.HasRole(nativecommon.RoleLoanAdmin, caller[:]) {
		return errNotAdmin
	}
	settings.EnsureDefaults()
	if settings.MaxRiskLevel < minRiskTolerance || settings.MaxRiskLevel > maxRiskTolerance {
		return errRiskOutOfRange
	}
	if settings.TargetUtilisationBps > basisPoints {
		return errUtilisationBounds
	}
	if settings.MaxExposureBps > basisPoints {
		return errExposureBounds
	}
	if settings.ManagementFeeBps > maxFeeBps || settings.PerformanceFeeBps > maxFeeBps {
		return errFeeBounds
	}

	s, err := e.loadState()
	if err != nil {
		return err
	}
	s.Settings = settings.Clone()
	if err := e.state.PoolPut(s); err != nil {
		return err
	}
	e.emit(NewSettingsUpdatedEvent(s))
	return nil
}

// ToggleAutoInvestment flips the pool-wide auto-investment switch. Admin
// only.
func (e *Engine) ToggleAutoInvestment(caller [20]byte, enabled bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if !e.state.HasRole(nativecommon.RoleLoanAdmin, caller[:]) {
		return errNotAdmin
	}
	s, err := e.loadState()
	if err != nil {
		return err
	}
	s.Settings.AutoInvestEnabled = enabled
	if err := e.state.PoolPut(s); err != nil {
		return err
	}
	e.emit(NewSettingsUpdatedEvent(s))
	return nil
}

// UpdateLenderPreferences lets a lender tune their own risk tolerance and
// auto-invest opt-in.
func (e *Engine) UpdateLenderPreferences(lender [20]byte, riskTolerance uint64, autoInvest bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if riskTolerance < minRiskTolerance || riskTolerance > maxRiskTolerance {
		return errRiskOutOfRange
	}
	s, err := e.loadState()
	if err != nil {
		return err
	}
	idx := s.lenderIndex(lender)
	if idx < 0 {
		return errUnknownLender
	}
	s.Lenders[idx].RiskTolerance = riskTolerance
	s.Lenders[idx].AutoInvest = autoInvest
	return e.state.PoolPut(s)
}

// Pause engages the pool circuit breaker. Admin only.
func (e *Engine) Pause(caller [20]byte) error {
	return e.setPaused(caller, true)
}

// Unpause releases the pool circuit breaker. Admin only.
func (e *Engine) Unpause(caller [20]byte) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller [20]byte, paused bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(nativecommon.RoleLoanAdmin, caller[:]) {
		return errNotAdmin
	}
	if err := e.state.SetPaused(moduleName, paused); err != nil {
		return err
	}
	s, err := e.loadState()
	if err != nil {
		return err
	}
	if paused {
		e.emit(NewPausedEvent(s))
	} else {
		e.emit(NewUnpausedEvent(s))
	}
	return nil
}

// Snapshot returns a deep copy of the pool state for queries.
func (e *Engine) Snapshot() (*State, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	s, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// LenderOf returns a copy of the lender's entry.
func (e *Engine) LenderOf(lender [20]byte) (*LenderInfo, error) {
	s, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	idx := s.lenderIndex(lender)
	if idx < 0 {
		return nil, errUnknownLender
	}
	info := s.Lenders[idx]
	return &info, nil
}

func minBig(values ...*big.Int) *big.Int {
	min := values[0]
	for _, v := range values[1:] {
		if v.Cmp(min) < 0 {
			min = v
		}
	}
	return new(big.Int).Set(min)
}
