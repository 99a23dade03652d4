package core

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tutorgate/internal/types"
)

// RatePolicy describes a fixed-window request budget for a route.
type RatePolicy struct {
	// Limit is the maximum number of requests per window.
	Limit int
	// Window is the length of the fixed window.
	Window time.Duration
}

// RateLimitResult contains the outcome of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates whether the request is within the rate limit.
	Allowed bool
	// Remaining is the number of requests remaining in the current window.
	Remaining int
	// ResetAt is the time when the current rate limit window resets.
	ResetAt time.Time
}

// rateWindow tracks the request count for one (route, client) key within
// the current fixed window. The window length is recorded so the sweeper
// can tell a live window from an expired one without knowing the policy.
type rateWindow struct {
	start  time.Time
	window time.Duration
	count  int
}

// sweepInterval is how often expired windows are evicted. Only windows
// whose own length has elapsed are removed, so eviction is pure memory
// hygiene: a live hourly window survives every sweep until it expires,
// and Allow resets an expired window on access regardless.
const sweepInterval = 10 * time.Minute

// RateLimiter enforces per-key fixed-window limits in memory.
// Counters reset when a window elapses; state does not survive restarts,
// which matches the availability-over-strictness posture of the quota
// ledger itself.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRateLimiter creates a RateLimiter and starts its background sweeper.
func NewRateLimiter() *RateLimiter {
	l := &RateLimiter{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow atomically increments the counter for key and checks it against the
// policy. The first request after a window elapses starts a fresh window.
func (l *RateLimiter) Allow(key string, policy RatePolicy) RateLimitResult {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= policy.Window {
		w = &rateWindow{start: now, window: policy.Window}
		l.windows[key] = w
	}

	resetAt := w.start.Add(policy.Window)
	if w.count >= policy.Limit {
		return RateLimitResult{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	w.count++
	return RateLimitResult{
		Allowed:   true,
		Remaining: policy.Limit - w.count,
		ResetAt:   resetAt,
	}
}

// Stop terminates the background sweeper. Safe to call more than once.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep evicts windows whose own length has elapsed. Live windows are
// never touched: evicting one would restart its counter mid-window.
func (l *RateLimiter) sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		if now.Sub(w.start) >= w.window {
			delete(l.windows, key)
		}
	}
}

// Limit returns a middleware enforcing the given policy per client IP for
// one route. Each route gets its own counter space, so exhausting the chat
// budget does not block health checks from the same address.
//
// On every response the middleware sets:
//   - X-RateLimit-Limit: maximum requests in the window.
//   - X-RateLimit-Remaining: requests remaining.
//   - X-RateLimit-Reset: Unix timestamp when the window resets.
//
// When limited, it responds 429 with a Retry-After header and an
// {error, message} body.
func (s *Server) Limit(route string, policy RatePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ClientIP(r)
			result := s.RateLimiter.Allow(route+"|"+clientIP, policy)

			setRateLimitHeaders(w, policy.Limit, result)

			if !result.Allowed {
				s.Logger.Warn("rate limit exceeded",
					slog.String("route", route),
					slog.String("client_ip", clientIP),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)

				retryAfter := int(time.Until(result.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				Error(w, r, types.NewAppErrorWithDetails(
					types.ErrCodeRateLimit,
					"Rate limit exceeded",
					nil,
					map[string]any{
						"message": "Too many requests. Please try again later.",
					},
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders writes the standard X-RateLimit-* headers to the response.
func setRateLimitHeaders(w http.ResponseWriter, limit int, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// ClientIP extracts the originating client address. Behind a proxy the
// first entry of X-Forwarded-For is the client; otherwise the connection's
// remote address is used.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			first = xff[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
