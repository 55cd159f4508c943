package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultLimiterCacheSize bounds how many per-key limiters are kept.
const DefaultLimiterCacheSize = 10000

// RateLimiter applies a token bucket per authenticated user, falling back to
// the client address. Idle keys are evicted least-recently-used.
type RateLimiter struct {
	limiters *lru.Cache
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	logger   *zap.Logger
}

func NewRateLimiter(requestsPerSecond float64, burst, cacheSize int, logger *zap.Logger) (*RateLimiter, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultLimiterCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("limiter cache: %w", err)
	}
	return &RateLimiter{
		limiters: cache,
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   logger,
	}, nil
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters.Add(key, limiter)
	return limiter
}

// Handler rejects requests over the limit with 429. Mount it after
// RequireAuth so authenticated callers are keyed by user.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.getLimiter(key).Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many requests.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if id, ok := UserID(r.Context()); ok {
		return fmt.Sprintf("user:%d", id)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
