// Package api provides the HTTP server for the mesh simulator.
// It exposes status, path and fault-injection endpoints, a websocket
// status stream and the Prometheus /metrics endpoint.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tutu-network/wgsim/internal/domain"
	"github.com/tutu-network/wgsim/internal/health"
)

// Simulator is the mesh surface served over HTTP.
type Simulator interface {
	Status() domain.NetworkStatus
	FindPath(src, dst string) ([]string, bool)
	PathLatency(path []string) float64
	SimulateFailure(name string) error
	SimulateRecovery(name string) error
}

// Server is the simulator HTTP API server.
type Server struct {
	sim            Simulator
	hub            *StatusHub
	health         *health.Checker
	metricsEnabled bool
	corsOrigins    []string
	logger         *slog.Logger
}

// NewServer creates a new API server. The status hub pushes a fresh status
// every interval once started.
func NewServer(sim Simulator, interval time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		sim:         sim,
		corsOrigins: []string{"*"},
		logger:      logger,
	}
	s.hub = NewStatusHub(sim.Status, interval, logger, s.originAllowed)
	return s
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth sets the health checker served at /api/health/checks.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetCORSOrigins replaces the allowed origins; "*" allows any.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// Hub returns the websocket status hub.
func (s *Server) Hub() *StatusHub { return s.hub }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		// Upgraded connections outlive the request timeout.
		r.Get("/ws/status", s.hub.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/status", s.handleStatus)
			r.Get("/path", s.handlePath)
			r.Route("/nodes/{name}", func(r chi.Router) {
				r.Get("/", s.handleNode)
				r.Post("/fail", s.handleFail)
				r.Post("/recover", s.handleRecover)
			})
			if s.health != nil {
				r.Get("/health/checks", s.handleHealthChecks)
			}
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	return slices.Contains(s.corsOrigins, "*") || slices.Contains(s.corsOrigins, origin)
}

// corsMiddleware adds CORS headers for allowed origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case slices.Contains(s.corsOrigins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && s.originAllowed(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
