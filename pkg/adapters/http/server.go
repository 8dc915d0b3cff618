package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/agentloop"
	"github.com/aretw0/agentloop/internal/logging"
	"github.com/aretw0/agentloop/internal/sanitize"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/wire"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultRetryAfter is advertised to callers rejected with 409.
const DefaultRetryAfter = time.Second

// Engine is what the transport needs from the agent engine.
type Engine interface {
	Begin(ctx context.Context, sessionID, query string) (*agentloop.Turn, error)
	History(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error)
	Graph() *domain.GraphSpec
}

// Server exposes an Engine over HTTP and Server-Sent Events.
type Server struct {
	engine     Engine
	input      sanitize.Policy
	retryAfter time.Duration
	metrics    http.Handler
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInputPolicy sets the query validation policy.
func WithInputPolicy(p sanitize.Policy) Option {
	return func(s *Server) {
		s.input = p
	}
}

// WithRetryAfter sets the Retry-After hint sent with 409 responses.
func WithRetryAfter(d time.Duration) Option {
	return func(s *Server) {
		s.retryAfter = d
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		engine:     engine,
		input:      sanitize.FromEnv(),
		retryAfter: DefaultRetryAfter,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/agent/invoke", s.Invoke)
	r.Get("/agent/history/{session_id}", s.GetHistory)
	r.Get("/graph", s.GetGraph)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Invoke handles POST /agent/invoke.
// The session is claimed before any byte is written, so a busy session is
// answered with 409 instead of an empty stream.
func (s *Server) Invoke(w http.ResponseWriter, r *http.Request) {
	var body wire.InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "", body.SessionID)
		s.logger.Warn("Invoke: Invalid request body", "err", err)
		return
	}
	if strings.TrimSpace(body.SessionID) == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required", "", "")
		return
	}

	query, err := s.input.Clean(body.Query)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid query: "+err.Error(), "", body.SessionID)
		s.logger.Warn("Invoke: Query rejected", "err", err, "size", len(body.Query), "session_id", body.SessionID)
		return
	}

	turn, err := s.engine.Begin(r.Context(), body.SessionID, query)
	if err != nil {
		if errors.Is(err, domain.ErrSessionBusy) {
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(s.retryAfter.Seconds()))))
		}
		s.writeError(w, StatusFor(err), err.Error(), domain.ErrorKind(err), body.SessionID)
		s.logger.Info("Invoke: Run rejected", "err", err, "session_id", body.SessionID)
		return
	}

	if !body.Streaming() {
		s.invokeJSON(w, turn, body.SessionID)
		return
	}
	s.invokeStream(w, turn, body.SessionID)
}

func (s *Server) invokeStream(w http.ResponseWriter, turn *agentloop.Turn, sessionID string) {
	if _, ok := w.(http.Flusher); !ok {
		turn.Close()
		s.writeError(w, http.StatusInternalServerError, "streaming not supported", "", sessionID)
		s.logger.Error("Invoke: Streaming not supported")
		return
	}

	stream := wire.NewWriter(w)
	w.WriteHeader(http.StatusOK)

	for ev := range turn.Events() {
		if err := stream.Send(wire.FromEvent(sessionID, ev)); err != nil {
			// Leaving the loop ends the run and discards its working log.
			s.logger.Info("SSE client disconnected", "session_id", sessionID, "err", err)
			return
		}
	}
	if err := stream.Close(); err != nil {
		s.logger.Debug("SSE terminator not delivered", "session_id", sessionID, "err", err)
	}
}

func (s *Server) invokeJSON(w http.ResponseWriter, turn *agentloop.Turn, sessionID string) {
	final, err := agentloop.Collect(turn.Events())
	if err != nil {
		s.writeError(w, StatusFor(err), err.Error(), domain.ErrorKind(err), sessionID)
		return
	}
	s.writeJSON(w, http.StatusOK, wire.InvokeResponse{SessionID: sessionID, Result: final.Content})
}

// GetHistory handles GET /agent/history/{session_id}.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	history, err := s.engine.History(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, StatusFor(err), err.Error(), domain.ErrorKind(err), sessionID)
		s.logger.Error("History failed", "err", err, "session_id", sessionID)
		return
	}
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	s.writeJSON(w, http.StatusOK, wire.HistoryResponse{SessionID: sessionID, History: history})
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.engine.Graph()
	s.writeJSON(w, http.StatusOK, wire.GraphResponse{
		Entry: string(g.Entry()),
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "agentloop-http",
		"version": strings.TrimSpace(agentloop.Version),
	})
}

// StatusFor maps a run error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrModelUnavailable),
		errors.Is(err, domain.ErrMalformedResponse),
		errors.Is(err, domain.ErrToolNotFound),
		errors.Is(err, domain.ErrToolExecution),
		errors.Is(err, domain.ErrLoopLimitExceeded):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrAbandoned),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, kind, sessionID string) {
	s.writeJSON(w, status, wire.ErrorResponse{Error: msg, Kind: kind, SessionID: sessionID})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
