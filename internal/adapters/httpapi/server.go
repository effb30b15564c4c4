// Package httpapi exposes the session over HTTP: a read-only view, the
// command endpoint, live trade preparation and the websocket channel.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const maxBodyBytes = 8 << 10

// Session is the controller surface served over HTTP.
type Session interface {
	View() domain.SessionView
	Dispatch(ctx context.Context, cmd domain.Command) error
}

// Trader prepares and executes live trades. Optional.
type Trader interface {
	Prepare(ctx context.Context, fromKey, toKey string, usdValue float64) (domain.PendingTrade, error)
	Execute(ctx context.Context, tradeID string) (domain.Trade, error)
}

// Handlers are mounted as-is. Nil handlers are not routed.
type Handlers struct {
	WS      http.Handler
	Metrics http.Handler
}

// Server is the HTTP surface of the process.
type Server struct {
	httpServer *http.Server
	session    Session
	trader     Trader
}

// NewServer builds the server bound to addr. trader may be nil when live
// trading is not configured.
func NewServer(addr string, session Session, trader Trader, h Handlers) *Server {
	s := &Server{session: session, trader: trader}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("POST /api/commands", s.handleCommand)
	if trader != nil {
		mux.HandleFunc("POST /api/live/prepare", s.handlePrepare)
		mux.HandleFunc("POST /api/live/execute", s.handleExecute)
	}
	if h.WS != nil {
		mux.Handle("GET /ws", h.WS)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("httpapi: listening", "addr", ln.Addr().String())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("httpapi: serve", "err", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type commandResponse struct {
	OK      bool           `json:"ok"`
	Session domain.Session `json:"session"`
}

type prepareRequest struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	USDValue float64 `json:"usdValue"`
}

type executeRequest struct {
	TradeID string `json:"tradeId"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/session
func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.View())
}

// POST /api/commands
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	cmd, err := domain.DecodeCommand(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.session.Dispatch(r.Context(), cmd); err != nil {
		slog.Warn("httpapi: command failed", "command", cmd.Type(), "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{OK: true, Session: s.session.View().Session})
}

// POST /api/live/prepare
func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req prepareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pending, err := s.trader.Prepare(r.Context(), req.From, req.To, req.USDValue)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// POST /api/live/execute
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	trade, err := s.trader.Execute(r.Context(), req.TradeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("httpapi: encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict, "invalid_state_transition"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, "persistence_failure"
	}
	return http.StatusInternalServerError, "internal_error"
}
