// Package core provides the API chassis for the gateway.
// It creates a chi router and enforces cross-cutting concerns -- security,
// logging, rate limiting, and error handling -- before requests reach
// domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutorgate/internal/config"
)

// RouteRegistrar mounts a group of domain handler routes onto the router.
// Populated by the application entry point; this indirection avoids import
// cycles between core and handler packages.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the API, allowing for easy
// injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	RateLimiter  *RateLimiter
	HealthProbes []HealthProbe

	// APIRouteRegistrars are mounted under /api by MountRoutes.
	APIRouteRegistrars []RouteRegistrar

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. The caller is responsible for appending route
// registrars and calling MountRoutes afterwards; this separation allows
// tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:      cfg,
		Logger:      logger,
		Validator:   NewValidator(logger),
		RateLimiter: NewRateLimiter(),
		router:      chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources.
// The in-memory stores (usage ledger, verification codes, rate limit
// windows) hold no durable state, so there is nothing to flush; this hook
// exists for symmetry with the http.Server shutdown in main.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	s.RateLimiter.Stop()
	s.Logger.Info("server shutdown complete")
	return nil
}
