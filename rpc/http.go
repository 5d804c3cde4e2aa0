package rpc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stablecore/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
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

// Server dispatches JSON-RPC requests to the engine module.
type Server struct {
	engine  *modules.EngineModule
	logger  *slog.Logger
	methods map[string]handlerFunc
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

// NewServer constructs the RPC server over the supplied engine module.
func NewServer(engineModule *modules.EngineModule, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engineModule, logger: logger}
	s.methods = map[string]handlerFunc{
		"engine_depositCollateral":     s.handleDepositCollateral,
		"engine_mintSusd":              s.handleMintSusd,
		"engine_depositAndMint":        s.handleDepositAndMint,
		"engine_redeemCollateral":      s.handleRedeemCollateral,
		"engine_burnSusd":              s.handleBurnSusd,
		"engine_burnAndRedeem":         s.handleBurnAndRedeem,
		"engine_liquidate":             s.handleLiquidate,
		"engine_getAccount":            s.handleGetAccount,
		"engine_getUsdValue":           s.handleGetUsdValue,
		"engine_getAssetAmountFromUsd": s.handleGetAssetAmountFromUsd,
		"engine_getHealthFactor":       s.handleGetHealthFactor,
		"engine_getCollateral":         s.handleGetCollateral,
		"engine_getParameters":         s.handleGetParameters,
		"engine_getTokenBalance":       s.handleGetTokenBalance,
		"engine_setOraclePrice":        s.handleSetOraclePrice,
	}
	return s
}

// Router mounts the RPC endpoint alongside the health and metrics handlers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handleRPC)
	return r
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}
	handler, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	s.logger.Debug("rpc request", "method", req.Method)
	handler(w, r, &req)
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

func writeModuleError(w http.ResponseWriter, id interface{}, moduleErr *modules.ModuleError) {
	writeError(w, moduleErr.HTTPStatus, id, moduleErr.Code, moduleErr.Message, moduleErr.Data)
}
