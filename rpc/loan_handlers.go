package rpc

import (
	"net/http"

	"peerlend/native/loan"
	"peerlend/native/registry"
)

type createLoanParams struct {
	Borrower         string `json:"borrower"`
	Principal        string `json:"principal"`
	RateBps          uint64 `json:"rateBps"`
	TermMonths       uint64 `json:"termMonths"`
	Purpose          string `json:"purpose"`
	Collateral       string `json:"collateral,omitempty"`
	RiskGrade        string `json:"riskGrade,omitempty"`
	SuggestedRateBps uint64 `json:"suggestedRateBps,omitempty"`
}

type loanIDParams struct {
	Caller string `json:"caller,omitempty"`
	LoanID uint64 `json:"loanId"`
}

type loanAmountParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
	Amount string `json:"amount"`
}

type listLoansParams struct {
	Status   string `json:"status,omitempty"`
	Borrower string `json:"borrower,omitempty"`
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, req *RPCRequest) {
	var params createLoanParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	borrower, err := decodeAddr(params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower address", err.Error())
		return
	}
	principal, err := decodeAmount(params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid principal", err.Error())
		return
	}
	rec, err := s.registry.CreateLoan(registry.CreateRequest{
		Borrower:         borrower,
		Principal:        principal,
		RateBps:          params.RateBps,
		TermMonths:       params.TermMonths,
		Purpose:          params.Purpose,
		Collateral:       params.Collateral,
		RiskGrade:        params.RiskGrade,
		SuggestedRateBps: params.SuggestedRateBps,
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"loanId": rec.ID,
		"status": rec.Status.String(),
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.loans.Approve(caller, params.LoanID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writeLoanSummary(w, req, params.LoanID)
}

func (s *Server) handleFund(w http.ResponseWriter, req *RPCRequest) {
	var params loanAmountParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	contributor, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid contributor address", err.Error())
		return
	}
	amount, err := decodeAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.loans.Fund(contributor, params.LoanID, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writeLoanSummary(w, req, params.LoanID)
}

func (s *Server) handleWithdrawFunds(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.loans.WithdrawFunds(caller, params.LoanID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writeLoanSummary(w, req, params.LoanID)
}

func (s *Server) handleMakePayment(w http.ResponseWriter, req *RPCRequest) {
	var params loanAmountParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := decodeAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.loans.MakePayment(caller, params.LoanID, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writeLoanSummary(w, req, params.LoanID)
}

func (s *Server) handlePayoff(w http.ResponseWriter, req *RPCRequest) {
	var params loanAmountParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := decodeAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.loans.PayoffLoan(caller, params.LoanID, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writeLoanSummary(w, req, params.LoanID)
}

func (s *Server) handleUpdateMissedPayments(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	missed, err := s.loans.UpdateMissedPayments(params.LoanID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"loanId":         params.LoanID,
		"missedPayments": missed,
	})
}

func (s *Server) handleMarkDefaulted(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	if err := s.loans.MarkDefaulted(params.LoanID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writeLoanSummary(w, req, params.LoanID)
}

func (s *Server) handleIssueRefunds(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	if err := s.loans.IssueRefunds(params.LoanID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.writeLoanSummary(w, req, params.LoanID)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	s.writeLoanSummary(w, req, params.LoanID)
}

func (s *Server) handleListLoans(w http.ResponseWriter, req *RPCRequest) {
	var params listLoansParams
	if len(req.Params) > 0 {
		if err := singleParam(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
			return
		}
	}

	var (
		ids []uint64
		err error
	)
	switch {
	case params.Borrower != "":
		var borrower [20]byte
		borrower, err = decodeAddr(params.Borrower)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower address", err.Error())
			return
		}
		ids, err = s.registry.ListByBorrower(borrower)
	case params.Status != "":
		status, ok := parseStatus(params.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown status", params.Status)
			return
		}
		ids, err = s.registry.ListByStatus(status)
	default:
		ids, err = s.registry.ListLoans()
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"loanIds": ids})
}

func (s *Server) writeLoanSummary(w http.ResponseWriter, req *RPCRequest, id uint64) {
	summary, err := s.loans.Summarize(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, summary)
}

func parseStatus(value string) (loan.Status, bool) {
	for _, status := range []loan.Status{
		loan.StatusCreated,
		loan.StatusApproved,
		loan.StatusActive,
		loan.StatusRepaid,
		loan.StatusDefaulted,
		loan.StatusExpired,
	} {
		if status.String() == value {
			return status, true
		}
	}
	return 0, false
}
