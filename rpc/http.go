package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"soliver/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// authTokenEnv names the environment variable carrying the break-glass
	// static ops token.
	authTokenEnv = "SOLIVER_RPC_TOKEN"
	// jwtSecretEnv names the environment variable carrying the HS256 secret
	// for caller tokens.
	jwtSecretEnv = "SOLIVER_JWT_SECRET"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Mutating calls are throttled per source address.
const (
	defaultRateLimit = rate.Limit(1)
	defaultRateBurst = 5
)

type Server struct {
	vault *modules.VaultModule

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rateLimit rate.Limit
	rateBurst int
	authToken string
	jwtSecret []byte
}

// ServerOption customises server construction.
type ServerOption func(*Server)

// WithAuthToken overrides the static ops token (normally sourced from the
// environment).
func WithAuthToken(token string) ServerOption {
	return func(s *Server) { s.authToken = strings.TrimSpace(token) }
}

// WithJWTSecret overrides the HS256 secret for caller tokens.
func WithJWTSecret(secret []byte) ServerOption {
	return func(s *Server) { s.jwtSecret = append([]byte(nil), secret...) }
}

// WithRateLimit overrides the per-source throttle for mutating calls.
func WithRateLimit(limit rate.Limit, burst int) ServerOption {
	return func(s *Server) {
		if limit > 0 {
			s.rateLimit = limit
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

func NewServer(vault *modules.VaultModule, opts ...ServerOption) *Server {
	server := &Server{
		vault:     vault,
		limiters:  make(map[string]*rate.Limiter),
		rateLimit: defaultRateLimit,
		rateBurst: defaultRateBurst,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		jwtSecret: []byte(strings.TrimSpace(os.Getenv(jwtSecretEnv))),
	}
	if len(server.jwtSecret) == 0 {
		server.jwtSecret = nil
	}
	for _, opt := range opts {
		opt(server)
	}
	return server
}

// Handler returns the HTTP router serving the JSON-RPC endpoint and health
// probe.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Post("/", s.handle)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return router
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

	switch req.Method {
	case "vault_borrow":
		s.handleMutation(w, r, req, s.handleVaultBorrow)
	case "vault_repay":
		s.handleMutation(w, r, req, s.handleVaultRepay)
	case "vault_liquidate":
		s.handleMutation(w, r, req, s.handleVaultLiquidate)
	case "vault_get":
		s.handleVaultGet(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

type mutationHandler func(http.ResponseWriter, *RPCRequest, identity)

// handleMutation applies the shared auth and throttling policy before
// dispatching to a mutating method handler.
func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request, req *RPCRequest, next mutationHandler) {
	caller, authErr := s.requireAuth(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	if !s.allowSource(requestSource(r, caller)) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	next(w, req, caller)
}

func requestSource(r *http.Request, caller identity) string {
	if caller.Subject != "" {
		return caller.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(s.rateLimit, s.rateBurst)
		s.limiters[source] = limiter
	}
	return limiter.Allow()
}
