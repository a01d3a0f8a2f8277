package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterTTL      = 10 * time.Minute
	cleanupInterval = 5 * time.Minute
)

type timedLimiter struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*timedLimiter
	perSec   rate.Limit
	burst    int
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*timedLimiter),
		perSec:   rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	rl.mu.RLock()
	if tl, ok := rl.limiters[key]; ok {
		tl.lastUsed.Store(now)
		lim := tl.limiter
		rl.mu.RUnlock()
		return lim
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	// Double-check after acquiring write lock
	if tl, ok := rl.limiters[key]; ok {
		tl.lastUsed.Store(now)
		return tl.limiter
	}
	tl := &timedLimiter{limiter: rate.NewLimiter(rl.perSec, rl.burst)}
	tl.lastUsed.Store(now)
	rl.limiters[key] = tl
	return tl.limiter
}

// Reserve takes a token for key. ok is false when the request must be
// rejected; retryAfter tells the client how long to back off.
func (rl *RateLimiter) Reserve(key string) (ok bool, retryAfter time.Duration) {
	r := rl.get(key).Reserve()
	if !r.OK() {
		return false, time.Minute
	}
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d
	}
	return true, 0
}

// CleanupStale drops limiters unused for longer than ttl.
func (rl *RateLimiter) CleanupStale(ttl time.Duration) int {
	cut := time.Now().Add(-ttl).UnixNano()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for key, tl := range rl.limiters {
		if tl.lastUsed.Load() < cut {
			delete(rl.limiters, key)
			n++
		}
	}
	return n
}

// Run removes idle limiters until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupStale(limiterTTL)
		}
	}
}

// RateLimitMiddleware rejects clients that exceed their bucket with 429.
// Probe endpoints are never limited.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/ready", "/live":
				next.ServeHTTP(w, r)
				return
			}

			ok, retry := limiter.Reserve(ClientIP(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP prefers the first X-Forwarded-For hop, then RemoteAddr without port.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
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
