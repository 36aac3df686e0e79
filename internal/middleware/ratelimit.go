package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/forgo/nemesis/api/internal/metrics"
	"github.com/forgo/nemesis/api/internal/model"
)

// RateLimiter implements token bucket rate limiting per caller within a scope
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	scope    string
	rate     int           // Requests per window
	window   time.Duration // Time window
	burst    int           // Max burst size
	cleanup  time.Duration // Cleanup interval for expired buckets
	now      func() time.Time
	stopOnce sync.Once
	stopChan chan struct{}
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// RateLimitConfig holds rate limiter configuration
type RateLimitConfig struct {
	Scope   string        // Metric label and log field (default "default")
	Rate    int           // Requests per window (default 100)
	Window  time.Duration // Time window (default 1 minute)
	Burst   int           // Max burst (default 20)
	Cleanup time.Duration // Cleanup interval (default 5 minutes)
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Scope == "" {
		cfg.Scope = "default"
	}
	if cfg.Rate == 0 {
		cfg.Rate = 100
	}
	if cfg.Window == 0 {
		cfg.Window = time.Minute
	}
	if cfg.Burst == 0 {
		cfg.Burst = 20
	}
	if cfg.Cleanup == 0 {
		cfg.Cleanup = 5 * time.Minute
	}

	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		scope:    cfg.Scope,
		rate:     cfg.Rate,
		window:   cfg.Window,
		burst:    cfg.Burst,
		cleanup:  cfg.Cleanup,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop stops the rate limiter cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupExpired()
		case <-rl.stopChan:
			return
		}
	}
}

// cleanupExpired drops buckets idle long enough to have refilled completely
func (rl *RateLimiter) cleanupExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window * 2)
	for key, b := range rl.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Allow takes one token from key's bucket. A new bucket starts full at
// rate+burst; tokens refill at rate per window.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, resetTime time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	capacity := rl.rate + rl.burst

	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: capacity, lastRefill: now}
		rl.buckets[key] = b
	} else if elapsed := now.Sub(b.lastRefill); elapsed >= rl.window {
		b.tokens = capacity
		b.lastRefill = now
	} else if add := int(float64(rl.rate) * float64(elapsed) / float64(rl.window)); add > 0 {
		b.tokens = min(b.tokens+add, capacity)
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true, b.tokens, b.lastRefill.Add(rl.window)
	}
	return false, 0, b.lastRefill.Add(rl.window)
}

// clientKey is the user id when authenticated, otherwise the remote IP
func clientKey(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return id
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimit returns a middleware that applies rate limiting
func RateLimit(limiter *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			allowed, remaining, resetTime := limiter.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.rate))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				retryAfter := int(resetTime.Sub(limiter.now()).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				metrics.RateLimited.WithLabelValues(limiter.scope).Inc()
				slog.Warn("rate limited",
					slog.String("scope", limiter.scope),
					slog.String("key", key),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				model.NewRateLimitError(retryAfter).WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
