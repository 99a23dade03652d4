package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tutorgate/internal/types"
)

// defaultRequestTimeout is the soft deadline applied to request contexts.
// It must exceed the completion provider timeout (60s) so that slow model
// responses are surfaced by the upstream client, not cut off mid-flight by
// the router.
const defaultRequestTimeout = 90 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// Per-route request budgets, keyed per client IP. Mutating endpoints that
// trigger upstream spend (email, Stripe, model inference) get hourly
// budgets; cheap read endpoints get per-minute ones.
var (
	PolicyIndex        = RatePolicy{Limit: 10, Window: time.Minute}
	PolicyHealth       = RatePolicy{Limit: 30, Window: time.Minute}
	PolicyVerifyEmail  = RatePolicy{Limit: 5, Window: time.Hour}
	PolicyConfirmEmail = RatePolicy{Limit: 10, Window: time.Hour}
	PolicyCheckout     = RatePolicy{Limit: 10, Window: time.Hour}
	PolicySubscription = RatePolicy{Limit: 30, Window: time.Minute}
	PolicyChat         = RatePolicy{Limit: 100, Window: time.Hour}
)

// MountRoutes defines the top-level routing hierarchy.
// It registers the global middleware chain, the service descriptor and
// health endpoints, and the domain handler routes under /api.
func (s *Server) MountRoutes() {
	// Global Middleware Registration (strict order matters).
	s.registerGlobalMiddleware()

	// Service descriptor at the root.
	s.router.With(s.Limit("index", PolicyIndex)).Get("/", s.HandleIndex)

	// Domain routes live under /api.
	s.router.Route("/api", func(r chi.Router) {
		r.With(s.Limit("health", PolicyHealth)).Get("/health", s.HandleHealth)
		for _, registrar := range s.APIRouteRegistrars {
			registrar(r)
		}
	})
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering Rationale:
//  1. Recoverer       - Catches panics; outermost to catch all failures.
//  2. ContextTimeout  - Sets a soft deadline on every request.
//  3. RequestID       - Generates/propagates correlation ID for tracing.
//  4. SecurityHeaders - Ensures all responses include security headers.
//  5. RequestScope    - Injects a request-scoped logger into the context.
//  6. RequestLogger   - Structured logging (redacted headers).
//  7. CORS            - Browser security headers and preflight handling.
//
// Rate limiting is applied per route via Limit, not globally, because each
// endpoint carries its own budget.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(s.RequestScopeMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
}

// corsAllowedOrigins returns the CORS allowed origins from configuration.
func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}

// ContextTimeoutMiddleware sets a deadline on the request context.
// If the deadline is exceeded, downstream handlers receive a cancelled
// context; the response is controlled by the handler's behavior on context
// cancellation.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware generates or propagates a unique request ID for
// correlation across logs. If the incoming request contains an X-Request-Id
// header, that value is reused; otherwise, a new random ID is generated.
//
// The request ID is stored in the context via types.WithRequestID and set as
// the X-Request-Id response header for client correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Store in context for downstream access.
		ctx := types.WithRequestID(r.Context(), requestID)

		// Set the response header so clients can correlate responses.
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestScopeMiddleware stores a logger pre-enriched with request-scoped
// fields in the context, so domain code can log with correlation data via
// types.LoggerFromContext without threading a logger through every call.
func (s *Server) RequestScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.Logger
		if reqID := types.GetRequestID(r.Context()); reqID != "" {
			logger = logger.With("request_id", reqID)
		}
		ctx := types.WithLogger(r.Context(), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces a cryptographically random hex string suitable
// for use as a request correlation ID. It generates 16 random bytes encoded
// as 32 hex characters.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// If crypto/rand fails, we still need a non-empty ID for correlation.
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
