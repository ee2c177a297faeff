// Package http exposes the outage schedule API plus the operational
// health, readiness, and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mirado-dev/delestage/internal/adapter/sqlite"
	"github.com/mirado-dev/delestage/internal/observability"
	"github.com/mirado-dev/delestage/internal/scheduling"
)

// Server exposes the outage API over HTTP.
type Server struct {
	httpServer *http.Server
	service    *scheduling.Service
	store      *sqlite.Store
	logger     *slog.Logger
	metrics    *observability.Metrics
	validate   *validator.Validate
}

// NewServer wires all routes. Reads are public; mutations live under
// /api/admin.
func NewServer(addr string, service *scheduling.Service, store *sqlite.Store, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		service:  service,
		store:    store,
		logger:   logger,
		metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /api/neighborhoods", s.handleListNeighborhoods},
		{"GET /api/neighborhoods/{id}", s.handleGetNeighborhood},
		{"GET /api/outages", s.handleListOutages},
		{"GET /api/outages/neighborhood/{id}", s.handleListNeighborhoodOutages},
		{"GET /api/schedules", s.handleSchedules},
		{"GET /api/stats", s.handleStats},
		{"GET /api/dates", s.handleDates},

		{"POST /api/admin/neighborhoods", s.handleCreateNeighborhood},
		{"PATCH /api/admin/neighborhoods/{id}", s.handleUpdateNeighborhood},
		{"DELETE /api/admin/neighborhoods/{id}", s.handleDeleteNeighborhood},
		{"POST /api/admin/outages", s.handleCreateOutage},
		{"PATCH /api/admin/outages/bulk", s.handleBulkUpdateOutages},
		{"PATCH /api/admin/outages/{id}", s.handleUpdateOutage},
		{"DELETE /api/admin/outages/{id}", s.handleDeleteOutage},
	}
	for _, r := range routes {
		mux.Handle(r.pattern, s.instrument(r.pattern, r.handler))
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

// instrument records request duration per route pattern.
func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.metrics.RequestDuration.
			WithLabelValues(pattern, r.Method).
			Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}
