// Package api exposes the coordinator over HTTP: workflow CRUD and
// control, the template catalog, aggregate metrics, health, and the
// Prometheus scrape endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/eduflow-ai/eduflow/internal/config"
	"github.com/eduflow-ai/eduflow/internal/coordinator"
	"github.com/eduflow-ai/eduflow/internal/logging"
)

// Server is the HTTP front end over the coordinator.
type Server struct {
	coordinator *coordinator.Coordinator
	logger      *logging.Logger
	httpServer  *http.Server
	shutdownTO  time.Duration
}

// NewServer builds the server with its router mounted.
func NewServer(cfg config.ServerConfig, coord *coordinator.Coordinator, gatherer prometheus.Gatherer, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		coordinator: coord,
		logger:      logger,
		shutdownTO:  cfg.ShutdownTimeout,
	}
	if s.shutdownTO <= 0 {
		s.shutdownTO = 10 * time.Second
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}).Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/workflows", s.handleCreateWorkflow)
		r.Get("/workflows", s.handleListWorkflows)
		r.Get("/workflows/{id}", s.handleGetWorkflow)
		r.Post("/workflows/{id}/cancel", s.handleCancelWorkflow)
		r.Post("/workflows/{id}/pause", s.handlePauseWorkflow)
		r.Post("/workflows/{id}/resume", s.handleResumeWorkflow)
		r.Get("/templates", s.handleListTemplates)
		r.Get("/metrics", s.handleAggregateMetrics)
	})
	r.Get("/health", s.handleHealth)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTO)
		defer cancel()
		s.logger.Info("http server shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
