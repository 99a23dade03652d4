package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout is the maximum time allowed for all health probes to complete.
// If any probe exceeds this deadline, the health check returns 503 Service Unavailable.
const healthCheckTimeout = 2 * time.Second

// HealthProbe defines the interface for a subsystem health check.
// Each probe represents a dependency (completion provider, billing) whose
// degradation is worth surfacing on the health endpoint.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe (e.g., "completion", "billing").
	Name() string

	// Check performs the health check against the subsystem.
	// It should respect the context deadline and return an error if the subsystem
	// is unhealthy or unreachable.
	Check(ctx context.Context) error
}

// Probe adapts a name and a check function into a HealthProbe, so callers
// can register probes without declaring a type per subsystem.
type Probe struct {
	ProbeName string
	CheckFunc func(ctx context.Context) error
}

func (p Probe) Name() string { return p.ProbeName }

func (p Probe) Check(ctx context.Context) error {
	if p.CheckFunc == nil {
		return nil
	}
	return p.CheckFunc(ctx)
}

// componentStatus represents the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status     string                     `json:"status"`
	Service    string                     `json:"service"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleIndex serves the service descriptor at the root path. Clients use
// it as a liveness probe and to discover the API surface.
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]any{
		"message": "Tutor Gateway API",
		"status":  "ok",
		"version": s.Config.Build.Version,
		"endpoints": map[string]string{
			"GET /api/health":              "Service health",
			"POST /api/verify-email":       "Send a verification code by email",
			"POST /api/confirm-email":      "Confirm a verification code",
			"POST /api/create-checkout":    "Create a subscription checkout session",
			"POST /api/check-subscription": "Subscription and remaining-quota status",
			"POST /api/chat":               "Chat completion",
		},
	})
}

// HandleHealth executes all registered health probes concurrently with a short timeout.
// Returns 200 OK if all probes report healthy, 503 Service Unavailable if any
// probe fails or the global timeout is exceeded. With no probes registered it
// reports healthy, which is the normal configuration: the gateway holds no
// durable state, so process-up means serving.
//
// This endpoint is public and is mounted at GET /api/health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy", Service: s.serviceName()})
		return
	}

	type probeResult struct {
		name string
		err  error
	}

	var (
		mu      sync.Mutex
		results = make([]probeResult, 0, len(probes))
		wg      sync.WaitGroup
	)

	for _, probe := range probes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("probe panicked: %v", r)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			results = append(results, probeResult{name: p.Name(), err: err})
			mu.Unlock()
		}(probe)
	}

	// Wait for all probes to complete or context to expire.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// All probes completed within the timeout.
	case <-ctx.Done():
		// Timeout expired before all probes completed. Build a partial
		// response with whatever results we have; missing probes are marked
		// as timed out.
	}

	mu.Lock()
	collectedResults := make([]probeResult, len(results))
	copy(collectedResults, results)
	mu.Unlock()

	completed := make(map[string]probeResult, len(collectedResults))
	for _, r := range collectedResults {
		completed[r.name] = r
	}

	components := make(map[string]componentStatus, len(probes))
	allHealthy := true

	for _, probe := range probes {
		name := probe.Name()
		if result, ok := completed[name]; ok {
			if result.err != nil {
				allHealthy = false
				components[name] = componentStatus{
					Status:  "unhealthy",
					Message: result.err.Error(),
				}
			} else {
				components[name] = componentStatus{
					Status: "healthy",
				}
			}
		} else {
			// Probe did not complete before timeout.
			allHealthy = false
			components[name] = componentStatus{
				Status:  "unhealthy",
				Message: "health check timed out",
			}
		}
	}

	resp := healthResponse{
		Service:    s.serviceName(),
		Components: components,
	}

	if allHealthy {
		resp.Status = "healthy"
		JSON(w, r, http.StatusOK, resp)
	} else {
		resp.Status = "unhealthy"
		JSON(w, r, http.StatusServiceUnavailable, resp)
	}
}

func (s *Server) serviceName() string {
	if s.Config != nil && s.Config.Service != "" {
		return s.Config.Service
	}
	return "tutorgate-api"
}
