package api

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"

	apperrors "github.com/creator-analytics/internal/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// ClientIDHeader lets callers behind a trusted proxy identify themselves
const ClientIDHeader = "X-Client-ID"

// DefaultMaxClients bounds how many per-client limiters are kept
const DefaultMaxClients = 10000

// RateLimiter manages per-client rate limiting for API requests. The least
// recently seen clients are evicted once maxClients is reached; an evicted
// client starts again with a full bucket.
type RateLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	mu       sync.Mutex

	limit        rate.Limit
	burstSize    int
	trustHeaders bool
}

// NewRateLimiter creates a new rate limiter. A non-positive rps disables
// limiting. Client headers are only honoured when trustHeaders is set, i.e.
// when a proxy in front of the server overwrites them.
func NewRateLimiter(rps float64, burst, maxClients int, trustHeaders bool) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	// Only fails for a non-positive size
	limiters, _ := lru.New[string, *rate.Limiter](maxClients)
	return &RateLimiter{
		limiters:     limiters,
		limit:        limit,
		burstSize:    burst,
		trustHeaders: trustHeaders,
	}
}

// getLimiter returns the rate limiter for a client
func (rl *RateLimiter) getLimiter(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters.Get(clientID); ok {
		return limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burstSize)
	rl.limiters.Add(clientID, limiter)
	return limiter
}

// Clients returns the number of tracked clients
func (rl *RateLimiter) Clients() int {
	return rl.limiters.Len()
}

// clientKey identifies the caller. Without trusted headers only the
// connection's peer address counts.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	if rl.trustHeaders {
		if id := strings.TrimSpace(r.Header.Get(ClientIDHeader)); id != "" {
			return "id:" + id
		}
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return "ip:" + ip
			}
		}
	}
	return "ip:" + remoteHost(r)
}

// retryAfterSeconds is the whole-second wait until one token is available
func (rl *RateLimiter) retryAfterSeconds() int {
	if rl.limit == rate.Inf || rl.limit <= 0 {
		return 1
	}
	return int(math.Ceil(1 / float64(rl.limit)))
}

// RateLimitMiddleware creates a middleware that enforces rate limiting.
// The health endpoint is never limited.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.getLimiter(rl.clientKey(r)).Allow() {
				respondServiceError(w, r, apperrors.NewRateLimitError(rl.retryAfterSeconds()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// remoteHost returns the connection's peer address without the port
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
