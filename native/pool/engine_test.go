package pool

import (
	"errors"
	"math/big"
	"sort"
	"testing"

	"peerlend/core/types"
	nativecommon "peerlend/native/common"
	"peerlend/native/loan"
)

type mockState struct {
	pool     *State
	loans    map[uint64]*loan.Record
	accounts map[[20]byte]*types.Account
	roles    map[string]map[[20]byte]bool
	paused   map[string]bool
}

func newMockState() *mockState {
	return &mockState{
		loans:    make(map[uint64]*loan.Record),
		accounts: make(map[[20]byte]*types.Account),
		roles:    make(map[string]map[[20]byte]bool),
		paused:   make(map[string]bool),
	}
}

func (m *mockState) PoolGet() (*State, error) { return m.pool.Clone(), nil }

func (m *mockState) PoolPut(s *State) error {
	m.pool = s.Clone()
	return nil
}

func (m *mockState) LoanGet(id uint64) (*loan.Record, error) {
	rec, ok := m.loans[id]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (m *mockState) LoanPut(rec *loan.Record) error {
	m.loans[rec.ID] = rec.Clone()
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	acc, ok := m.accounts[key]
	if !ok {
		return &types.Account{}, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = account.Clone()
	return nil
}

func (m *mockState) HasRole(role string, addr []byte) bool {
	members, ok := m.roles[role]
	if !ok {
		return false
	}
	var key [20]byte
	copy(key[:], addr)
	return members[key]
}

func (m *mockState) SetPaused(module string, paused bool) error {
	m.paused[module] = paused
	return nil
}

func (m *mockState) IsPaused(module string) bool { return m.paused[module] }

func (m *mockState) grantRole(role string, addr [20]byte) {
	if m.roles[role] == nil {
		m.roles[role] = make(map[[20]byte]bool)
	}
	m.roles[role][addr] = true
}

func (m *mockState) setBalance(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(t *testing.T, addr [20]byte) *big.Int {
	t.Helper()
	acc, err := m.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acc.Balance
}

// stubDirectory serves the registry surface straight off the mock state.
type stubDirectory struct{ state *mockState }

func (d stubDirectory) ListLoans() ([]uint64, error) {
	ids := make([]uint64, 0, len(d.state.loans))
	for id := range d.state.loans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (d stubDirectory) IsApproved(id uint64) (bool, error) {
	rec, ok := d.state.loans[id]
	if !ok {
		return false, nil
	}
	return rec.Status != loan.StatusCreated, nil
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

var (
	admin    = addr(0x01)
	borrower = addr(0x02)
	lenderA  = addr(0x03)
	lenderB  = addr(0x04)
	poolAddr = addr(0xf2)
	vault    = addr(0xf0)
	treasury = addr(0xf1)
)

func newTestEngine(t *testing.T, state *mockState) *Engine {
	t.Helper()
	state.pool = NewState(DefaultSettings())
	engine := NewEngine()
	engine.SetState(state)
	engine.SetModuleAddress(poolAddr)
	engine.SetPauses(state)
	engine.SetNowFunc(func() int64 { return 1_000_000 })
	return engine
}

// newLoanStack wires a real loan engine over the shared mock state so
// auto-investment exercises the actual nested Fund call.
func newLoanStack(t *testing.T, state *mockState, engine *Engine) *loan.Engine {
	t.Helper()
	loans := loan.NewEngine(loan.DefaultParams())
	loans.SetState(state)
	loans.SetPauses(state)
	loans.SetVault(vault)
	loans.SetFeeTreasury(treasury)
	loans.SetNowFunc(func() int64 { return 1_000_000 })
	loans.SetReturnsHandler(poolAddr, engine)
	engine.SetLoanFunder(loans)
	engine.SetLoanDirectory(stubDirectory{state: state})
	state.grantRole(nativecommon.RoleVerified, poolAddr)
	return loans
}

func seedApprovedLoan(t *testing.T, state *mockState, loans *loan.Engine, id uint64, principal int64) {
	t.Helper()
	rec := &loan.Record{
		ID:         id,
		Borrower:   borrower,
		Principal:  big.NewInt(principal),
		RateBps:    1200,
		TermMonths: 12,
		Purpose:    "inventory",
		Status:     loan.StatusCreated,
	}
	rec.EnsureDefaults()
	if err := state.LoanPut(rec); err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	state.grantRole(nativecommon.RoleLoanAdmin, admin)
	if err := loans.Approve(admin, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func TestDepositMintsSharesAtParity(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	state.setBalance(lenderA, 1_000)

	shares, err := engine.Deposit(lenderA, big.NewInt(500))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if shares.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("minted %s shares, want 500", shares)
	}
	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if s.TotalShares.Cmp(big.NewInt(500)) != 0 || s.TotalPoolValue.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("pool totals = %s shares / %s value", s.TotalShares, s.TotalPoolValue)
	}
	if s.AvailableBalance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("available = %s", s.AvailableBalance)
	}
	if got := state.balance(t, poolAddr); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("pool account balance = %s", got)
	}
	info, err := engine.LenderOf(lenderA)
	if err != nil {
		t.Fatalf("lender: %v", err)
	}
	if info.RiskTolerance != defaultRiskTolerance || !info.AutoInvest {
		t.Fatalf("lender defaults = %d/%v", info.RiskTolerance, info.AutoInvest)
	}
}

func TestDepositMintsProportionalShares(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	state.setBalance(lenderA, 1_000)
	state.setBalance(lenderB, 1_000)

	if _, err := engine.Deposit(lenderA, big.NewInt(1_000)); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	shares, err := engine.Deposit(lenderB, big.NewInt(250))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if shares.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("minted %s shares, want 250", shares)
	}
	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	num, den := s.SharePrice()
	if num.Cmp(big.NewInt(1_250)) != 0 || den.Cmp(big.NewInt(1_250)) != 0 {
		t.Fatalf("share price = %s/%s, want unchanged 1.0", num, den)
	}
}

func TestDepositRejections(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	settings := DefaultSettings()
	settings.MinDeposit = big.NewInt(100)
	state.pool = NewState(settings)
	state.setBalance(lenderA, 50)

	if _, err := engine.Deposit(lenderA, big.NewInt(99)); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("below minimum: expected validation error, got %v", err)
	}
	if _, err := engine.Deposit(lenderA, big.NewInt(100)); !errors.Is(err, nativecommon.ErrCapacity) {
		t.Fatalf("insufficient balance: expected capacity error, got %v", err)
	}
	if _, err := engine.Deposit(lenderA, big.NewInt(0)); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("zero amount: expected validation error, got %v", err)
	}
}

func TestWithdrawBurnsSharesAndEvicts(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	state.setBalance(lenderA, 1_000)
	if _, err := engine.Deposit(lenderA, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := engine.Withdraw(lenderA, big.NewInt(2_000)); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("excess shares: expected validation error, got %v", err)
	}

	amount, err := engine.Withdraw(lenderA, big.NewInt(400))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("paid %s, want 400", amount)
	}
	if got := state.balance(t, lenderA); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("lender balance = %s", got)
	}

	if _, err := engine.Withdraw(lenderA, big.NewInt(600)); err != nil {
		t.Fatalf("full withdraw: %v", err)
	}
	if _, err := engine.LenderOf(lenderA); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected evicted lender, got %v", err)
	}
	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if s.TotalShares.Sign() != 0 || s.TotalPoolValue.Sign() != 0 {
		t.Fatalf("pool not drained: %s shares / %s value", s.TotalShares, s.TotalPoolValue)
	}
}

func TestWithdrawRequiresLiquidity(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	loans := newLoanStack(t, state, engine)
	seedApprovedLoan(t, state, loans, 1, 10_000)
	state.setBalance(lenderA, 100_000)

	if _, err := engine.Deposit(lenderA, big.NewInt(100_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// 10_000 is invested in the loan, so only 90_000 is liquid.
	if _, err := engine.Withdraw(lenderA, big.NewInt(95_000)); !errors.Is(err, nativecommon.ErrCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if _, err := engine.Withdraw(lenderA, big.NewInt(90_000)); err != nil {
		t.Fatalf("liquid withdraw: %v", err)
	}
}

func TestAutoInvestRespectsExposureCap(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	loans := newLoanStack(t, state, engine)
	seedApprovedLoan(t, state, loans, 1, 50_000)
	state.setBalance(lenderA, 100_000)

	if _, err := engine.Deposit(lenderA, big.NewInt(100_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// Exposure cap is 10% of a 100_000 pool: 10_000 of the 50_000 loan.
	if s.TotalInvested.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("invested = %s, want 10000", s.TotalInvested)
	}
	if s.AvailableBalance.Cmp(big.NewInt(90_000)) != 0 {
		t.Fatalf("available = %s, want 90000", s.AvailableBalance)
	}
	if got := s.investedIn(1); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("per-loan investment = %s", got)
	}
	rec, err := loans.Get(1)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if rec.TotalFunded.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("loan funded = %s", rec.TotalFunded)
	}
	if rec.Status != loan.StatusApproved {
		t.Fatalf("loan status = %s", rec.Status)
	}
}

func TestAutoInvestActivatesSmallLoan(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	loans := newLoanStack(t, state, engine)
	seedApprovedLoan(t, state, loans, 1, 5_000)
	state.setBalance(lenderA, 100_000)

	if _, err := engine.Deposit(lenderA, big.NewInt(100_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	rec, err := loans.Get(1)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if rec.Status != loan.StatusActive {
		t.Fatalf("loan status = %s, want active", rec.Status)
	}
	if got := state.balance(t, vault); got.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("vault = %s", got)
	}
}

func TestAutoInvestDisabled(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	loans := newLoanStack(t, state, engine)
	settings := DefaultSettings()
	settings.AutoInvestEnabled = false
	state.pool = NewState(settings)
	seedApprovedLoan(t, state, loans, 1, 5_000)
	state.setBalance(lenderA, 100_000)

	if _, err := engine.Deposit(lenderA, big.NewInt(100_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if s.TotalInvested.Sign() != 0 {
		t.Fatalf("invested = %s, want 0", s.TotalInvested)
	}
}

func TestAutoInvestSkipsStaleFundingWindow(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	loans := newLoanStack(t, state, engine)
	seedApprovedLoan(t, state, loans, 1, 10_000)

	// Deadline elapsed but refunds not yet issued: the loan is still
	// Approved yet no longer fundable.
	late := int64(1_000_000) + 31*int64(86_400)
	engine.SetNowFunc(func() int64 { return late })
	loans.SetNowFunc(func() int64 { return late })
	state.setBalance(lenderA, 20_000)

	shares, err := engine.Deposit(lenderA, big.NewInt(20_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if shares.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("minted %s shares, want 20000", shares)
	}
	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if s.TotalInvested.Sign() != 0 {
		t.Fatalf("invested = %s, want 0", s.TotalInvested)
	}
	if s.AvailableBalance.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("available = %s, want 20000", s.AvailableBalance)
	}
	if len(s.Investments) != 0 {
		t.Fatalf("investments = %d, want 0", len(s.Investments))
	}
}

func TestAutoInvestUnwindsRejectedAllocation(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	loans := newLoanStack(t, state, engine)
	seedApprovedLoan(t, state, loans, 1, 50_000)
	// Lending paused while the pool is not: the nested fund is rejected
	// after the allocation has been persisted.
	if err := state.SetPaused("lending", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	state.setBalance(lenderA, 100_000)

	shares, err := engine.Deposit(lenderA, big.NewInt(100_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if shares.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("minted %s shares, want 100000", shares)
	}
	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if s.TotalInvested.Sign() != 0 {
		t.Fatalf("invested = %s, want 0", s.TotalInvested)
	}
	if s.AvailableBalance.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("available = %s, want 100000", s.AvailableBalance)
	}
	if len(s.Investments) != 0 {
		t.Fatalf("investments = %d, want 0", len(s.Investments))
	}
	rec, err := loans.Get(1)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if rec.TotalFunded.Sign() != 0 {
		t.Fatalf("loan funded = %s, want 0", rec.TotalFunded)
	}
}

func TestAutoInvestSkipsBelowContributionFloor(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	params := loan.DefaultParams()
	params.MinContribution = big.NewInt(5_000)
	loans := loan.NewEngine(params)
	loans.SetState(state)
	loans.SetVault(vault)
	loans.SetFeeTreasury(treasury)
	loans.SetNowFunc(func() int64 { return 1_000_000 })
	loans.SetReturnsHandler(poolAddr, engine)
	engine.SetLoanFunder(loans)
	engine.SetLoanDirectory(stubDirectory{state: state})
	state.grantRole(nativecommon.RoleVerified, poolAddr)
	seedApprovedLoan(t, state, loans, 1, 50_000)
	state.setBalance(lenderA, 20_000)

	// Exposure cap allows 2_000, below the loan's 5_000 floor: the
	// allocation never leaves the pool.
	if _, err := engine.Deposit(lenderA, big.NewInt(20_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if s.TotalInvested.Sign() != 0 {
		t.Fatalf("invested = %s, want 0", s.TotalInvested)
	}
	if s.AvailableBalance.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("available = %s, want 20000", s.AvailableBalance)
	}
}

func TestAutoInvestHonoursLenderPreferences(t *testing.T) {
	t.Run("opted out", func(t *testing.T) {
		state := newMockState()
		engine := newTestEngine(t, state)
		loans := newLoanStack(t, state, engine)
		state.setBalance(lenderA, 100_000)

		if _, err := engine.Deposit(lenderA, big.NewInt(1_000)); err != nil {
			t.Fatalf("register deposit: %v", err)
		}
		if err := engine.UpdateLenderPreferences(lenderA, 5, false); err != nil {
			t.Fatalf("update preferences: %v", err)
		}
		seedApprovedLoan(t, state, loans, 1, 50_000)

		if _, err := engine.Deposit(lenderA, big.NewInt(99_000)); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		s, err := engine.Snapshot()
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if s.TotalInvested.Sign() != 0 {
			t.Fatalf("invested = %s, want 0", s.TotalInvested)
		}
	})

	t.Run("risk tolerance tightens filter", func(t *testing.T) {
		state := newMockState()
		engine := newTestEngine(t, state)
		loans := newLoanStack(t, state, engine)
		state.setBalance(lenderA, 100_000)

		if _, err := engine.Deposit(lenderA, big.NewInt(1_000)); err != nil {
			t.Fatalf("register deposit: %v", err)
		}
		if err := engine.UpdateLenderPreferences(lenderA, 2, true); err != nil {
			t.Fatalf("update preferences: %v", err)
		}
		rec := &loan.Record{
			ID:         1,
			Borrower:   borrower,
			Principal:  big.NewInt(50_000),
			RateBps:    1200,
			TermMonths: 12,
			Purpose:    "inventory",
			RiskGrade:  "C",
			Status:     loan.StatusCreated,
		}
		rec.EnsureDefaults()
		if err := state.LoanPut(rec); err != nil {
			t.Fatalf("seed loan: %v", err)
		}
		state.grantRole(nativecommon.RoleLoanAdmin, admin)
		if err := loans.Approve(admin, 1); err != nil {
			t.Fatalf("approve: %v", err)
		}

		// Grade C maps above the depositor's tolerance of 2.
		if _, err := engine.Deposit(lenderA, big.NewInt(99_000)); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		s, err := engine.Snapshot()
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if s.TotalInvested.Sign() != 0 {
			t.Fatalf("invested = %s, want 0", s.TotalInvested)
		}
	})
}

func TestLoanReturnsLiftSharePrice(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	state.setBalance(lenderA, 1_000)
	if _, err := engine.Deposit(lenderA, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.HandleLoanReturn(1, big.NewInt(100)); err != nil {
		t.Fatalf("handle return: %v", err)
	}
	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if s.TotalPoolValue.Cmp(big.NewInt(1_100)) != 0 {
		t.Fatalf("pool value = %s, want 1100", s.TotalPoolValue)
	}
	if s.TotalReturns.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("returns = %s", s.TotalReturns)
	}
	num, den := s.SharePrice()
	if num.Cmp(big.NewInt(1_100)) != 0 || den.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("share price = %s/%s, want 1100/1000", num, den)
	}
}

func TestLoanRefundRestoresLiquidity(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	loans := newLoanStack(t, state, engine)
	seedApprovedLoan(t, state, loans, 1, 50_000)
	state.setBalance(lenderA, 100_000)
	if _, err := engine.Deposit(lenderA, big.NewInt(100_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Deadline passes before full funding; the loan refunds the pool.
	loans.SetNowFunc(func() int64 { return 10_000_000 })
	if err := loans.IssueRefunds(1); err != nil {
		t.Fatalf("issue refunds: %v", err)
	}

	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if s.TotalInvested.Sign() != 0 {
		t.Fatalf("invested = %s, want 0", s.TotalInvested)
	}
	if s.AvailableBalance.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("available = %s, want 100000", s.AvailableBalance)
	}
	if s.TotalPoolValue.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("pool value = %s, want 100000", s.TotalPoolValue)
	}
	if len(s.Investments) != 0 {
		t.Fatalf("investments not cleared: %d", len(s.Investments))
	}
}

func TestUpdatePoolSettings(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)

	settings := DefaultSettings()
	settings.TargetUtilisationBps = 9_000
	if err := engine.UpdatePoolSettings(lenderA, settings); !errors.Is(err, nativecommon.ErrAuthorization) {
		t.Fatalf("non-admin: expected authorization error, got %v", err)
	}

	state.grantRole(nativecommon.RoleLoanAdmin, admin)
	bad := DefaultSettings()
	bad.TargetUtilisationBps = 10_001
	if err := engine.UpdatePoolSettings(admin, bad); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("utilisation bound: expected validation error, got %v", err)
	}
	bad = DefaultSettings()
	bad.ManagementFeeBps = maxFeeBps + 1
	if err := engine.UpdatePoolSettings(admin, bad); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("fee bound: expected validation error, got %v", err)
	}

	if err := engine.UpdatePoolSettings(admin, settings); err != nil {
		t.Fatalf("update: %v", err)
	}
	s, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if s.Settings.TargetUtilisationBps != 9_000 {
		t.Fatalf("utilisation = %d", s.Settings.TargetUtilisationBps)
	}
}

func TestUpdateLenderPreferences(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	state.setBalance(lenderA, 1_000)
	if _, err := engine.Deposit(lenderA, big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := engine.UpdateLenderPreferences(lenderA, 11, false); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("risk bound: expected validation error, got %v", err)
	}
	if err := engine.UpdateLenderPreferences(lenderB, 3, false); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("unknown lender: expected validation error, got %v", err)
	}
	if err := engine.UpdateLenderPreferences(lenderA, 3, false); err != nil {
		t.Fatalf("update: %v", err)
	}
	info, err := engine.LenderOf(lenderA)
	if err != nil {
		t.Fatalf("lender: %v", err)
	}
	if info.RiskTolerance != 3 || info.AutoInvest {
		t.Fatalf("preferences = %d/%v", info.RiskTolerance, info.AutoInvest)
	}
}

func TestPauseBlocksDeposits(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state)
	state.grantRole(nativecommon.RoleLoanAdmin, admin)
	state.setBalance(lenderA, 1_000)

	if err := engine.Pause(lenderA); !errors.Is(err, nativecommon.ErrAuthorization) {
		t.Fatalf("non-admin pause: expected authorization error, got %v", err)
	}
	if err := engine.Pause(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := engine.Deposit(lenderA, big.NewInt(500)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := engine.Unpause(admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := engine.Deposit(lenderA, big.NewInt(500)); err != nil {
		t.Fatalf("deposit after unpause: %v", err)
	}
}
