// Package api provides the HTTP server for Vitals.
// It exposes the incident-response engine as a small JSON API under /api/v1.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/app/responder"
	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/healing"
	"github.com/tutu-network/vitals/internal/infra/learning"
)

// Version is reported by /api/version.
var Version = "0.1.0"

// Engine is the responder surface the API serves.
type Engine interface {
	PerformHealthCheck(ctx context.Context, req responder.HealthCheckRequest) (responder.HealingResponse, error)
	StartAutonomousHealing(ctx context.Context, opts responder.AutonomousOptions) error
	StopAutonomousHealing() error
	GetHealthDashboard(ctx context.Context) (responder.Dashboard, error)
	ExecuteHealingAction(ctx context.Context, id string, opts healing.ExecuteOptions) (domain.HealingAction, error)
	Action(id string) (domain.HealingAction, error)
	Profile(ctx context.Context, id string) (domain.HealingProfile, error)
	LearningSnapshot(ctx context.Context) (learning.Snapshot, error)
}

// Server is the Vitals HTTP API server.
type Server struct {
	engine         Engine
	checkDefaults  responder.HealthCheckRequest
	metricsEnabled bool
	log            *zap.Logger
}

// NewServer creates a new API server.
func NewServer(engine Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		engine:        engine,
		checkDefaults: responder.HealthCheckRequest{Scope: domain.ScopeFull},
		log:           log.Named("api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetCheckDefaults sets the request used for fields a health-check body omits.
func (s *Server) SetCheckDefaults(req responder.HealthCheckRequest) { s.checkDefaults = req }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": Version,
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/health-check", s.handleHealthCheck)
		r.Get("/dashboard", s.handleDashboard)

		r.Post("/autonomous/start", s.handleAutonomousStart)
		r.Post("/autonomous/stop", s.handleAutonomousStop)

		r.Get("/actions/{id}", s.handleGetAction)
		r.Post("/actions/{id}/execute", s.handleExecuteAction)

		r.Get("/profiles/{id}", s.handleGetProfile)
		r.Get("/learning", s.handleLearning)
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// accessLog logs one line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrActionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrVerificationFailed),
		errors.Is(err, domain.ErrAlreadyRunning),
		errors.Is(err, domain.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrHealingFailed), errors.Is(err, domain.ErrHealingRolledBack):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrMetricsUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "healing_failed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "error"
	}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
