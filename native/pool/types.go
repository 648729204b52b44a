package pool

import "math/big"

const (
	basisPoints = 10_000

	defaultRiskTolerance = 5
	minRiskTolerance     = 1
	maxRiskTolerance     = 10

	// maxFeeBps caps management and performance fees at 20%.
	maxFeeBps = 2_000
)

// Settings carries the admin-tunable pool parameters.
type Settings struct {
	MinDeposit           *big.Int `toml:"MinDeposit"`
	MaxRiskLevel         uint64   `toml:"MaxRiskLevel"`
	TargetUtilisationBps uint64   `toml:"TargetUtilisationBps"`
	MaxExposureBps       uint64   `toml:"MaxExposureBps"`
	ManagementFeeBps     uint64   `toml:"ManagementFeeBps"`
	PerformanceFeeBps    uint64   `toml:"PerformanceFeeBps"`
	AutoInvestEnabled    bool     `toml:"AutoInvestEnabled"`
}

// DefaultSettings returns the pool's standard configuration: 80% target
// utilisation, 10% single-loan exposure cap, auto-investment on.
func DefaultSettings() Settings {
	return Settings{
		MinDeposit:           big.NewInt(1),
		MaxRiskLevel:         maxRiskTolerance,
		TargetUtilisationBps: 8_000,
		MaxExposureBps:       1_000,
		ManagementFeeBps:     0,
		PerformanceFeeBps:    0,
		AutoInvestEnabled:    true,
	}
}

// EnsureDefaults populates zero-valued fields so persisted settings round
// trip safely.
func (s *Settings) EnsureDefaults() {
	if s == nil {
		return
	}
	if s.MinDeposit == nil || s.MinDeposit.Sign() <= 0 {
		s.MinDeposit = big.NewInt(1)
	}
	if s.MaxRiskLevel == 0 {
		s.MaxRiskLevel = maxRiskTolerance
	}
	if s.TargetUtilisationBps == 0 {
		s.TargetUtilisationBps = 8_000
	}
	if s.MaxExposureBps == 0 {
		s.MaxExposureBps = 1_000
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.MinDeposit = cloneBig(s.MinDeposit)
	return out
}

// LenderInfo tracks one pool participant. A lender entry exists exactly while
// its share balance is positive.
type LenderInfo struct {
	Addr            [20]byte
	TotalDeposited  *big.Int
	TotalWithdrawn  *big.Int
	ShareBalance    *big.Int
	RiskTolerance   uint64
	AutoInvest      bool
	LastDepositTime uint64
}

// Investment records the pool's cumulative stake in one loan.
type Investment struct {
	LoanID uint64
	Amount *big.Int
}

// State is the singleton pool ledger. Lender entries and investments are
// ordered slices so the persisted encoding is canonical.
type State struct {
	TotalPoolValue   *big.Int
	TotalShares      *big.Int
	AvailableBalance *big.Int
	TotalInvested    *big.Int
	TotalReturns     *big.Int
	Settings         Settings
	Lenders          []LenderInfo
	Investments      []Investment
}

// NewState returns an empty pool with the given settings.
func NewState(settings Settings) *State {
	settings.EnsureDefaults()
	return &State{
		TotalPoolValue:   big.NewInt(0),
		TotalShares:      big.NewInt(0),
		AvailableBalance: big.NewInt(0),
		TotalInvested:    big.NewInt(0),
		TotalReturns:     big.NewInt(0),
		Settings:         settings.Clone(),
	}
}

// EnsureDefaults populates nil big.Int fields so RLP handling is safe.
func (s *State) EnsureDefaults() {
	if s == nil {
		return
	}
	if s.TotalPoolValue == nil {
		s.TotalPoolValue = big.NewInt(0)
	}
	if s.TotalShares == nil {
		s.TotalShares = big.NewInt(0)
	}
	if s.AvailableBalance == nil {
		s.AvailableBalance = big.NewInt(0)
	}
	if s.TotalInvested == nil {
		s.TotalInvested = big.NewInt(0)
	}
	if s.TotalReturns == nil {
		s.TotalReturns = big.NewInt(0)
	}
	s.Settings.EnsureDefaults()
	for i := range s.Lenders {
		l := &s.Lenders[i]
		if l.TotalDeposited == nil {
			l.TotalDeposited = big.NewInt(0)
		}
		if l.TotalWithdrawn == nil {
			l.TotalWithdrawn = big.NewInt(0)
		}
		if l.ShareBalance == nil {
			l.ShareBalance = big.NewInt(0)
		}
	}
	for i := range s.Investments {
		if s.Investments[i].Amount == nil {
			s.Investments[i].Amount = big.NewInt(0)
		}
	}
}

// Clone returns a deep copy of the pool state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		TotalPoolValue:   cloneBig(s.TotalPoolValue),
		TotalShares:      cloneBig(s.TotalShares),
		AvailableBalance: cloneBig(s.AvailableBalance),
		TotalInvested:    cloneBig(s.TotalInvested),
		TotalReturns:     cloneBig(s.TotalReturns),
		Settings:         s.Settings.Clone(),
	}
	if len(s.Lenders) > 0 {
		out.Lenders = make([]LenderInfo, len(s.Lenders))
		for i, l := range s.Lenders {
			out.Lenders[i] = LenderInfo{
				Addr:            l.Addr,
				TotalDeposited:  cloneBig(l.TotalDeposited),
				TotalWithdrawn:  cloneBig(l.TotalWithdrawn),
				ShareBalance:    cloneBig(l.ShareBalance),
				RiskTolerance:   l.RiskTolerance,
				AutoInvest:      l.AutoInvest,
				LastDepositTime: l.LastDepositTime,
			}
		}
	}
	if len(s.Investments) > 0 {
		out.Investments = make([]Investment, len(s.Investments))
		for i, inv := range s.Investments {
			out.Investments[i] = Investment{LoanID: inv.LoanID, Amount: cloneBig(inv.Amount)}
		}
	}
	return out
}

func (s *State) lenderIndex(addr [20]byte) int {
	for i := range s.Lenders {
		if s.Lenders[i].Addr == addr {
			return i
		}
	}
	return -1
}

// removeLender drops the lender entry with a swap-with-last so eviction stays
// constant time.
func (s *State) removeLender(idx int) {
	last := len(s.Lenders) - 1
	s.Lenders[idx] = s.Lenders[last]
	s.Lenders = s.Lenders[:last]
}

func (s *State) investmentIndex(loanID uint64) int {
	for i := range s.Investments {
		if s.Investments[i].LoanID == loanID {
			return i
		}
	}
	return -1
}

// investedIn returns the pool's cumulative investment in the loan, zero when
// none exists.
func (s *State) investedIn(loanID uint64) *big.Int {
	if idx := s.investmentIndex(loanID); idx >= 0 {
		return s.Investments[idx].Amount
	}
	return big.NewInt(0)
}

func (s *State) recordInvestment(loanID uint64, amount *big.Int) {
	if idx := s.investmentIndex(loanID); idx >= 0 {
		s.Investments[idx].Amount = new(big.Int).Add(s.Investments[idx].Amount, amount)
		return
	}
	s.Investments = append(s.Investments, Investment{LoanID: loanID, Amount: new(big.Int).Set(amount)})
}

// releaseInvestment reduces the recorded exposure to a loan, dropping the
// entry with a swap-with-last once it reaches zero.
func (s *State) releaseInvestment(loanID uint64, amount *big.Int) {
	idx := s.investmentIndex(loanID)
	if idx < 0 {
		return
	}
	s.Investments[idx].Amount = new(big.Int).Sub(s.Investments[idx].Amount, amount)
	if s.Investments[idx].Amount.Sign() <= 0 {
		last := len(s.Investments) - 1
		s.Investments[idx] = s.Investments[last]
		s.Investments = s.Investments[:last]
	}
}

// SharePrice returns the current price of one share as a numerator and
// denominator pair; price is 1/1 while the pool is empty.
func (s *State) SharePrice() (*big.Int, *big.Int) {
	if s == nil || s.TotalShares == nil || s.TotalShares.Sign() == 0 {
		return big.NewInt(1), big.NewInt(1)
	}
	return cloneBig(s.TotalPoolValue), cloneBig(s.TotalShares)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
