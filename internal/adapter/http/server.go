package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/tank-level-service/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReadinessFunc adapts a function to ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

func (f ReadinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

// AllReady is ready only when every non-nil checker is.
func AllReady(checkers ...ReadinessChecker) ReadinessChecker {
	return ReadinessFunc(func(ctx context.Context) error {
		for _, c := range checkers {
			if c == nil {
				continue
			}
			if err := c.CheckReadiness(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// TankEvaluator computes metrics on demand.
type TankEvaluator interface {
	EvaluateFleet(ctx context.Context) (domain.FleetReport, error)
	EvaluateTank(ctx context.Context, tankID string) (domain.TankMetrics, error)
}

// SnapshotReader returns the last streamed metrics of a tank.
type SnapshotReader interface {
	Get(ctx context.Context, tankID string) (domain.TankMetrics, error)
}

// Server exposes health, readiness, Prometheus metrics and the tank metrics API.
type Server struct {
	httpServer *http.Server
	tanks      TankEvaluator
	snapshots  SnapshotReader
	logger     *slog.Logger
}

// NewServer creates an HTTP server. A nil snapshots reader leaves the
// snapshot route unregistered.
func NewServer(addr string, ready ReadinessChecker, tanks TankEvaluator, snapshots SnapshotReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		tanks:     tanks,
		snapshots: snapshots,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/tanks/metrics", s.handleFleet)
	mux.HandleFunc("GET /v1/tanks/{id}/metrics", s.handleTank)
	if snapshots != nil {
		mux.HandleFunc("GET /v1/tanks/{id}/snapshot", s.handleSnapshot)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	report, err := s.tanks.EvaluateFleet(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTank(w http.ResponseWriter, r *http.Request) {
	m, err := s.tanks.EvaluateTank(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	m, err := s.snapshots.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// writeError maps domain errors onto status codes. A geometry error is a
// configuration defect of that tank, so it is reported as 422.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var gerr *domain.GeometryError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrTankNotFound), errors.Is(err, domain.ErrNoSnapshot):
		status = http.StatusNotFound
	case errors.As(err, &gerr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
