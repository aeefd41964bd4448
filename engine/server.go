package engine

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/luxfi/execd/internal/metrics"
	"github.com/luxfi/execd/internal/xlog"
)

// request/response mirror the public rpc package's JSON-RPC 2.0 envelopes;
// kept as a second small copy rather than shared, for the same reason
// engine/hex.go's wire types are: this is an independent, authenticated
// surface with its own error-code space (spec §6/§7).
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Server serves the authenticated Engine API over plain HTTP POST, per
// spec §6's --authrpc.* flags: every request must carry a valid HS256
// bearer token signed with the shared secret before it reaches the method
// table.
type Server struct {
	backend *Backend
	secret  []byte
	log     *xlog.Logger
	metrics *metrics.Registry
}

// NewServer builds a Server dispatching against backend, authenticating
// every request against secret.
func NewServer(backend *Backend, secret []byte, log *xlog.Logger, reg *metrics.Registry) *Server {
	return &Server{backend: backend, secret: secret, log: log, metrics: reg}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := VerifyAuthHeader(r.Header.Get("Authorization"), s.secret, now()); err != nil {
		s.log.Warn("engine: auth failed", "err", err)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errorResponse(nil, newError(codeInvalidParams, err.Error())))
		return
	}

	var req request
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		json.NewEncoder(w).Encode(errorResponse(nil, newError(codeParseError, "invalid JSON")))
		return
	}
	resp := s.dispatch(req)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) dispatch(req request) response {
	handler, ok := Methods[req.Method]
	if !ok {
		return errorResponse(req.ID, newError(codeInvalidParams, "the method "+req.Method+" does not exist/is not available"))
	}
	start := time.Now()
	result, rpcErr := handler(s.backend, req.Params)
	if s.metrics != nil {
		s.metrics.RPCDuration.Observe(time.Since(start).Seconds())
	}
	if rpcErr != nil {
		s.log.Debug("engine: call failed", "method", req.Method, "err", rpcErr.Message)
		return errorResponse(req.ID, rpcErr)
	}
	return successResponse(req.ID, result)
}

func successResponse(id json.RawMessage, result any) response {
	return response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, err *Error) response {
	return response{JSONRPC: "2.0", ID: id, Error: err}
}
