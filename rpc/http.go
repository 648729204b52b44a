package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"peerlend/crypto"
	nativecommon "peerlend/native/common"
	"peerlend/native/loan"
	"peerlend/native/pool"
	"peerlend/native/registry"
	"peerlend/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// AuthTokenEnv names the environment variable carrying the bearer token
	// required by mutating methods.
	AuthTokenEnv = "PEERLEND_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000

	codeValidation    = -32021
	codeAuthorization = -32022
	codeState         = -32023
	codeCapacity      = -32024
	codeTiming        = -32025
	codeArithmetic    = -32026
	codePaused        = -32027
)

// Server exposes the lending engines over JSON-RPC 2.0. Mutating methods
// require a bearer token; reads are open.
type Server struct {
	loans     *loan.Engine
	pool      *pool.Engine
	registry  *registry.Registry
	authToken string
	log       *slog.Logger
}

// NewServer wires the engines behind the RPC surface. The auth token is read
// from the environment.
func NewServer(loans *loan.Engine, poolEngine *pool.Engine, reg *registry.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		loans:     loans,
		pool:      poolEngine,
		registry:  reg,
		authToken: strings.TrimSpace(os.Getenv(AuthTokenEnv)),
		log:       log,
	}
}

// Handler returns the HTTP routing surface: JSON-RPC on POST /, Prometheus
// metrics on GET /metrics, liveness on GET /healthz.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the RPC surface on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError maps the engine error taxonomy onto JSON-RPC error codes.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	code := codeServerError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		code, status = codePaused, http.StatusServiceUnavailable
	case errors.Is(err, nativecommon.ErrValidation):
		code, status = codeValidation, http.StatusBadRequest
	case errors.Is(err, nativecommon.ErrAuthorization):
		code, status = codeAuthorization, http.StatusForbidden
	case errors.Is(err, nativecommon.ErrState):
		code, status = codeState, http.StatusConflict
	case errors.Is(err, nativecommon.ErrCapacity):
		code, status = codeCapacity, http.StatusConflict
	case errors.Is(err, nativecommon.ErrTiming):
		code, status = codeTiming, http.StatusConflict
	case errors.Is(err, nativecommon.ErrArithmetic):
		code, status = codeArithmetic, http.StatusConflict
	}
	writeError(w, status, id, code, err.Error(), nil)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

type handlerFunc func(http.ResponseWriter, *RPCRequest)

type route struct {
	module   string
	needAuth bool
	fn       handlerFunc
}

func (s *Server) routes() map[string]route {
	return map[string]route{
		"lend_createLoan":           {"registry", true, s.handleCreateLoan},
		"lend_approve":              {"lending", true, s.handleApprove},
		"lend_fund":                 {"lending", true, s.handleFund},
		"lend_withdrawFunds":        {"lending", true, s.handleWithdrawFunds},
		"lend_makePayment":          {"lending", true, s.handleMakePayment},
		"lend_payoff":               {"lending", true, s.handlePayoff},
		"lend_updateMissedPayments": {"lending", true, s.handleUpdateMissedPayments},
		"lend_markDefaulted":        {"lending", true, s.handleMarkDefaulted},
		"lend_issueRefunds":         {"lending", true, s.handleIssueRefunds},
		"lend_getLoan":              {"lending", false, s.handleGetLoan},
		"lend_listLoans":            {"registry", false, s.handleListLoans},
		"pool_deposit":              {"pool", true, s.handleDeposit},
		"pool_withdraw":             {"pool", true, s.handleWithdraw},
		"pool_updateSettings":       {"pool", true, s.handleUpdateSettings},
		"pool_toggleAutoInvest":     {"pool", true, s.handleToggleAutoInvest},
		"pool_updatePreferences":    {"pool", true, s.handleUpdatePreferences},
		"pool_pause":                {"pool", true, s.handlePause},
		"pool_unpause":              {"pool", true, s.handleUnpause},
		"pool_getState":             {"pool", false, s.handleGetPoolState},
		"pool_getLender":            {"pool", false, s.handleGetLender},
	}
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	rt, ok := s.routes()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
		return
	}
	if rt.needAuth {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	rt.fn(recorder, req)
	observability.ModuleMetrics().Observe(rt.module, req.Method, recorder.status, time.Since(started))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func singleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object, got %d", len(req.Params))
	}
	return json.Unmarshal(req.Params[0], out)
}

func decodeAddr(value string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(value)
	if err != nil {
		return out, err
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func decodeAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func encodeAddr(addr [20]byte) string {
	return crypto.NewAddress(crypto.LendPrefix, append([]byte(nil), addr[:]...)).String()
}
