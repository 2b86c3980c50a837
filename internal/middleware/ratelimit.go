package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/commune/backend/internal/logging"
)

const visitorIdleTimeout = 3 * time.Minute

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests by the client IP resolved by RealIPMiddleware.
func ByClientIP(r *http.Request) string {
	return logging.ExtractClientIP(r)
}

// ByUser keys authenticated requests by user id and falls back to the
// client IP. Must run after AuthMiddleware to see the user.
func ByUser(r *http.Request) string {
	if claims := GetClaims(r.Context()); claims != nil {
		return "user:" + claims.UserID()
	}
	return ByClientIP(r)
}

// visitor tracks rate limiting state for a single key.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements keyed rate limiting using a token bucket algorithm.
// Visitors idle for visitorIdleTimeout are dropped by Run.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	key      KeyFunc
	now      func() time.Time
}

// NewRateLimiter creates a rate limiter allowing requestsPerMinute per key.
func NewRateLimiter(requestsPerMinute int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ByClientIP
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    requestsPerMinute,
		key:      key,
		now:      time.Now,
	}
}

// allow reports whether the visitor identified by key may proceed.
func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweep removes visitors that have been idle too long.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-visitorIdleTimeout)
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
		}
	}
}

// Run sweeps idle visitors every minute until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// Middleware returns the HTTP middleware that enforces rate limiting.
// Returns 429 Too Many Requests when the limit is exceeded.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(rl.key(r)) {
			logging.LogSecurityEvent(r.Context(), logging.SecurityEventRateLimited, "rate limit exceeded")
			w.Header().Set("Retry-After", "60")
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
