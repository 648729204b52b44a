package rpc

import (
	"math/big"
	"net/http"

	"peerlend/native/pool"
)

type poolAmountParams struct {
	Lender string `json:"lender"`
	Amount string `json:"amount"`
}

type poolSharesParams struct {
	Lender string `json:"lender"`
	Shares string `json:"shares"`
}

type poolSettingsParams struct {
	Caller               string `json:"caller"`
	MinDeposit           string `json:"minDeposit"`
	MaxRiskLevel         uint64 `json:"maxRiskLevel"`
	TargetUtilisationBps uint64 `json:"targetUtilisationBps"`
	MaxExposureBps       uint64 `json:"maxExposureBps"`
	ManagementFeeBps     uint64 `json:"managementFeeBps"`
	PerformanceFeeBps    uint64 `json:"performanceFeeBps"`
	AutoInvestEnabled    bool   `json:"autoInvestEnabled"`
}

type poolToggleParams struct {
	Caller  string `json:"caller"`
	Enabled bool   `json:"enabled"`
}

type poolPreferencesParams struct {
	Lender        string `json:"lender"`
	RiskTolerance uint64 `json:"riskTolerance"`
	AutoInvest    bool   `json:"autoInvest"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type lenderParams struct {
	Lender string `json:"lender"`
}

type poolStateResult struct {
	TotalPoolValue   *big.Int           `json:"totalPoolValue"`
	TotalShares      *big.Int           `json:"totalShares"`
	AvailableBalance *big.Int           `json:"availableBalance"`
	TotalInvested    *big.Int           `json:"totalInvested"`
	TotalReturns     *big.Int           `json:"totalReturns"`
	Lenders          int                `json:"lenders"`
	Investments      []investmentResult `json:"investments"`
	Settings         poolSettingsResult `json:"settings"`
}

type investmentResult struct {
	LoanID uint64   `json:"loanId"`
	Amount *big.Int `json:"amount"`
}

type poolSettingsResult struct {
	MinDeposit           *big.Int `json:"minDeposit"`
	MaxRiskLevel         uint64   `json:"maxRiskLevel"`
	TargetUtilisationBps uint64   `json:"targetUtilisationBps"`
	MaxExposureBps       uint64   `json:"maxExposureBps"`
	ManagementFeeBps     uint64   `json:"managementFeeBps"`
	PerformanceFeeBps    uint64   `json:"performanceFeeBps"`
	AutoInvestEnabled    bool     `json:"autoInvestEnabled"`
}

type lenderResult struct {
	Lender          string   `json:"lender"`
	TotalDeposited  *big.Int `json:"totalDeposited"`
	TotalWithdrawn  *big.Int `json:"totalWithdrawn"`
	ShareBalance    *big.Int `json:"shareBalance"`
	RiskTolerance   uint64   `json:"riskTolerance"`
	AutoInvest      bool     `json:"autoInvest"`
	LastDepositTime uint64   `json:"lastDepositTime"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params poolAmountParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	lender, err := decodeAddr(params.Lender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lender address", err.Error())
		return
	}
	amount, err := decodeAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	shares, err := s.pool.Deposit(lender, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"lender": params.Lender,
		"amount": amount,
		"shares": shares,
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params poolSharesParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	lender, err := decodeAddr(params.Lender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lender address", err.Error())
		return
	}
	shares, err := decodeAmount(params.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid shares", err.Error())
		return
	}
	amount, err := s.pool.Withdraw(lender, shares)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"lender": params.Lender,
		"shares": shares,
		"amount": amount,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, req *RPCRequest) {
	var params poolSettingsParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	minDeposit, err := decodeAmount(params.MinDeposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid minDeposit", err.Error())
		return
	}
	settings := pool.Settings{
		MinDeposit:           minDeposit,
		MaxRiskLevel:         params.MaxRiskLevel,
		TargetUtilisationBps: params.TargetUtilisationBps,
		MaxExposureBps:       params.MaxExposureBps,
		ManagementFeeBps:     params.ManagementFeeBps,
		PerformanceFeeBps:    params.PerformanceFeeBps,
		AutoInvestEnabled:    params.AutoInvestEnabled,
	}
	if err := s.pool.UpdatePoolSettings(caller, settings); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writePoolState(w, req)
}

func (s *Server) handleToggleAutoInvest(w http.ResponseWriter, req *RPCRequest) {
	var params poolToggleParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.pool.ToggleAutoInvestment(caller, params.Enabled); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writePoolState(w, req)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, req *RPCRequest) {
	var params poolPreferencesParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	lender, err := decodeAddr(params.Lender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lender address", err.Error())
		return
	}
	if err := s.pool.UpdateLenderPreferences(lender, params.RiskTolerance, params.AutoInvest); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writeLender(w, req, lender, params.Lender)
}

func (s *Server) handlePause(w http.ResponseWriter, req *RPCRequest) {
	s.handleSetPaused(w, req, true)
}

func (s *Server) handleUnpause(w http.ResponseWriter, req *RPCRequest) {
	s.handleSetPaused(w, req, false)
}

func (s *Server) handleSetPaused(w http.ResponseWriter, req *RPCRequest, paused bool) {
	var params callerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if paused {
		err = s.pool.Pause(caller)
	} else {
		err = s.pool.Unpause(caller)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"paused": paused})
}

func (s *Server) handleGetPoolState(w http.ResponseWriter, req *RPCRequest) {
	s.writePoolState(w, req)
}

func (s *Server) handleGetLender(w http.ResponseWriter, req *RPCRequest) {
	var params lenderParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	lender, err := decodeAddr(params.Lender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lender address", err.Error())
		return
	}
	s.writeLender(w, req, lender, params.Lender)
}

func (s *Server) writeLender(w http.ResponseWriter, req *RPCRequest, lender [20]byte, display string) {
	info, err := s.pool.LenderOf(lender)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lenderResult{
		Lender:          display,
		TotalDeposited:  info.TotalDeposited,
		TotalWithdrawn:  info.TotalWithdrawn,
		ShareBalance:    info.ShareBalance,
		RiskTolerance:   info.RiskTolerance,
		AutoInvest:      info.AutoInvest,
		LastDepositTime: info.LastDepositTime,
	})
}

func (s *Server) writePoolState(w http.ResponseWriter, req *RPCRequest) {
	snapshot, err := s.pool.Snapshot()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	investments := make([]investmentResult, 0, len(snapshot.Investments))
	for _, inv := range snapshot.Investments {
		investments = append(investments, investmentResult{LoanID: inv.LoanID, Amount: inv.Amount})
	}
	writeResult(w, req.ID, poolStateResult{
		TotalPoolValue:   snapshot.TotalPoolValue,
		TotalShares:      snapshot.TotalShares,
		AvailableBalance: snapshot.AvailableBalance,
		TotalInvested:    snapshot.TotalInvested,
		TotalReturns:     snapshot.TotalReturns,
		Lenders:          len(snapshot.Lenders),
		Investments:      investments,
		Settings: poolSettingsResult{
			MinDeposit:           snapshot.Settings.MinDeposit,
			MaxRiskLevel:         snapshot.Settings.MaxRiskLevel,
			TargetUtilisationBps: snapshot.Settings.TargetUtilisationBps,
			MaxExposureBps:       snapshot.Settings.MaxExposureBps,
			ManagementFeeBps:     snapshot.Settings.ManagementFeeBps,
			PerformanceFeeBps:    snapshot.Settings.PerformanceFeeBps,
			AutoInvestEnabled:    snapshot.Settings.AutoInvestEnabled,
		},
	})
}
