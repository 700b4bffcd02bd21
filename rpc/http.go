package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solsavings/rpc/modules"
)

const (
	maxRequestBytes = 1 << 20

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// RPCRequest is a JSON-RPC 2.0 call envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCResponse is a JSON-RPC 2.0 reply envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is the wire error shape.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ServerConfig carries the transport-level settings for the RPC server.
type ServerConfig struct {
	// AuthToken, when non-empty, is required as a bearer token on every
	// mutating method. Read-only methods stay open.
	AuthToken string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server exposes the lending ledger over JSON-RPC 2.0. All calls are POSTs to
// the root path; health and metrics ride alongside on their own routes.
type Server struct {
	lending *modules.LendingModule
	cfg     ServerConfig
	httpSrv *http.Server
}

// NewServer constructs an RPC server around the lending module.
func NewServer(lending *modules.LendingModule, cfg ServerConfig) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	return &Server{lending: lending, cfg: cfg}
}

// Router builds the HTTP handler. Exposed separately so tests can drive the
// server through httptest without binding a socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)

	return r
}

// Start serves RPC on the given address until the context is cancelled.
func (s *Server) Start(ctx context.Context, listenAddr string) error {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("rpc: listen on %s: %w", listenAddr, err)
	}

	s.httpSrv = &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Serve(listener)
	}()
	slog.Info("rpc server listening", "address", listener.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// mutatingMethods require bearer authentication when a token is configured.
var mutatingMethods = map[string]bool{
	"lending_deposit":   true,
	"lending_withdraw":  true,
	"lending_originate": true,
	"lending_repay":     true,
	"lending_liquidate": true,
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, scheme)) == s.cfg.AuthToken
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeRPCError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method is required", nil)
		return
	}

	if mutatingMethods[req.Method] && !s.authorized(r) {
		writeRPCError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token", nil)
		return
	}

	slog.Debug("rpc request", "method", req.Method, "remote", r.RemoteAddr)

	switch req.Method {
	case "lending_getPosition":
		s.handleLendingGetPosition(w, &req)
	case "lending_listTiers":
		s.handleLendingListTiers(w, &req)
	case "lending_deposit":
		s.handleLendingDeposit(w, &req)
	case "lending_withdraw":
		s.handleLendingWithdraw(w, &req)
	case "lending_originate":
		s.handleLendingOriginate(w, &req)
	case "lending_repay":
		s.handleLendingRepay(w, &req)
	case "lending_liquidate":
		s.handleLendingLiquidate(w, &req)
	default:
		writeRPCError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

func writeRPCResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(&RPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

func writeModuleError(w http.ResponseWriter, id interface{}, err *modules.ModuleError) {
	status := err.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeRPCError(w, status, id, err.Code, err.Message, err.Data)
}
