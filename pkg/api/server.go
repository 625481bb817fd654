// Package api exposes the daemon's poll state over a local HTTP API.
// Surfaces (the TUI, the MCP server, scripts) read from here instead of
// talking to providers directly.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nyxkrage/quotabar/pkg/dashboard"
	"github.com/nyxkrage/quotabar/pkg/engine"
	"github.com/nyxkrage/quotabar/pkg/provider"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// Interfaces for dependencies to enable mocking

type EngineInterface interface {
	State() map[provider.ID]engine.ProviderState
	Credits() engine.CreditsState
	Refresh(ctx context.Context)
	SetInterval(d time.Duration)
}

type DashboardInterface interface {
	View() dashboard.View
}

// Server encapsulates the HTTP API server
type Server struct {
	engine    EngineInterface
	dashboard DashboardInterface
	log       zerolog.Logger
	server    *http.Server
}

// NewServer creates a new API server instance. dash may be nil when the
// dashboard feature is disabled.
func NewServer(eng EngineInterface, dash DashboardInterface, addr string, log zerolog.Logger) *Server {
	s := &Server{
		engine:    eng,
		dashboard: dash,
		log:       log.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/usage", s.handleUsage)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/credits", s.handleCredits)
	mux.HandleFunc("/v1/dashboard", s.handleDashboard)
	mux.HandleFunc("/v1/refresh", s.handleRefresh)
	mux.HandleFunc("/v1/interval", s.handleInterval)

	handler := s.withLogging(s.withRecovery(mux))

	if addr == "" {
		addr = "127.0.0.1:8590"
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start runs the HTTP server (blocking).
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("server starting")
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("server stopping")
	return s.server.Shutdown(ctx)
}

// handleUsage returns every provider's current usage view.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.engine.State())
}

// handleStatus returns only the status-page classifications, keyed by
// provider. Providers without a classification are omitted.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	out := make(map[provider.ID]any)
	for id, st := range s.engine.State() {
		if st.Status != nil {
			out[id] = st.Status
		}
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

// handleCredits returns the auxiliary credit balance view.
func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.engine.Credits())
}

// handleDashboard returns the reconciled dashboard view.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.dashboard == nil {
		http.Error(w, `{"error":"dashboard_disabled"}`, http.StatusNotFound)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.dashboard.View())
}

// handleRefresh kicks off a poll cycle. The cycle runs in the
// background; a cycle already in flight makes this a no-op.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	go s.engine.Refresh(context.Background())
	s.writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

// handleInterval changes the automatic refresh period. "0s" switches to
// manual mode.
func (s *Server) handleInterval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Interval string `json:"interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	d, err := time.ParseDuration(req.Interval)
	if err != nil || d < 0 {
		http.Error(w, `{"error":"invalid_interval","example":"60s"}`, http.StatusBadRequest)
		return
	}
	s.engine.SetInterval(d)
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "interval": d.String()})
}

// handleHealth returns simple status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Str("trace_id", getTraceID(r.Context())).Err(err).Msg("failed to encode response")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
}

// Middleware: Panic Recovery
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error().Interface("panic", err).Str("path", r.URL.Path).Msg("panic recovered")
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("trace_id", traceID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
