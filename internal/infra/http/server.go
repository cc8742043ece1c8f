// Package http wires the HTTP transport: routing, middleware, and the
// server lifecycle.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leekyio/api/internal/config"
	"github.com/leekyio/api/internal/infra/http/handler"
	"github.com/leekyio/api/internal/infra/http/middleware"
	"github.com/leekyio/api/pkg/logger"
)

// Handlers groups the request handlers the server routes to.
type Handlers struct {
	Scan       *handler.ScanHandler
	Credential *handler.CredentialHandler
	Health     *handler.HealthHandler
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	config     *config.Config
	logger     *logger.Logger
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg *config.Config, log *logger.Logger, h Handlers) *Server {
	r := chi.NewRouter()

	r.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		middleware.Recovery(log, cfg.App.IsProduction()),
		middleware.Metrics(),
		middleware.Logger(log),
		chimiddleware.Timeout(cfg.Server.ReadTimeout+cfg.Server.WriteTimeout),
	)

	// Public endpoints.
	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated API.
	authCfg := middleware.AuthConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.JWTIssuer,
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg, log))

		r.Route("/scans", func(r chi.Router) {
			r.Post("/", h.Scan.Create)
			r.Get("/", h.Scan.List)
			r.Get("/{id}", h.Scan.Get)
			r.Get("/{id}/findings", h.Scan.Findings)
			r.Post("/{id}/cancel", h.Scan.Cancel)
		})

		r.Route("/credentials", func(r chi.Router) {
			r.Post("/", h.Credential.Save)
			r.Get("/", h.Credential.List)
			r.Delete("/{service}", h.Credential.Delete)
		})
	})

	s := &Server{
		router: r,
		config: cfg,
		logger: log,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      http.MaxBytesHandler(r, cfg.Server.MaxBodySize),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}
	return s
}

// Router returns the underlying router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.config.Server.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
