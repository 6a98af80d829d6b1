package httpapi

// Rate limiting with a token bucket per principal, following the reference
// server's pattern: burst capacity absorbs interactive traffic, a steady
// refill rate bounds sustained throughput, and inactive buckets are swept
// periodically so the map doesn't grow unbounded.
//
// Production note: this is in-memory and per-process. A distributed
// deployment would replace it with a Redis-backed limiter.

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/oceanic-wellbeing/sync-core/internal/auth"
	"github.com/oceanic-wellbeing/sync-core/internal/config"
	"github.com/rs/zerolog/log"
)

// TokenBucket implements a token bucket rate limiter.
type TokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     float64(capacity),
		capacity:   float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a token is available and consumes it if so. Returns
// (allowed, tokensRemaining, nextTokenTime, fullResetTime).
func (tb *TokenBucket) Allow() (bool, int, time.Time, time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	tokensNeeded := tb.capacity - tb.tokens
	fullResetTime := now.Add(time.Duration(tokensNeeded/tb.refillRate) * time.Second)

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, int(tb.tokens), now, fullResetTime
	}

	tokensUntilNext := 1.0 - tb.tokens
	secondsUntilNext := tokensUntilNext / tb.refillRate
	nextTokenTime := now.Add(time.Duration(secondsUntilNext) * time.Second)
	return false, 0, nextTokenTime, fullResetTime
}

// RateLimiter manages per-principal token buckets.
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  config.RateLimitConfig
	mu      sync.RWMutex
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{buckets: make(map[string]*TokenBucket), config: cfg}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) getBucket(key string) *TokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[key]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	refillRate := float64(rl.config.RequestsPerMinute) / 60
	bucket = newTokenBucket(rl.config.Burst, refillRate)
	rl.buckets[key] = bucket
	return bucket
}

// Allow checks if the caller identified by key may make a request.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time, time.Time) {
	return rl.getBucket(key).Allow()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for key, bucket := range rl.buckets {
			bucket.mu.Lock()
			if time.Since(bucket.lastRefill) > time.Hour {
				delete(rl.buckets, key)
			}
			bucket.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware enforces rate limiting keyed on the authenticated
// principal's {tenant, user} pair, so one user's burst can't starve another
// tenant's crew even when they share a process.
func RateLimitMiddleware(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			key := principal.TenantID.String() + ":" + principal.UserID.String()

			allowed, remaining, nextTokenTime, fullResetTime := limiter.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(fullResetTime.Unix(), 10))
			w.Header().Set("X-RateLimit-Burst", strconv.Itoa(cfg.Burst))

			if !allowed {
				retryAfter := int(time.Until(nextTokenTime).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn().Str("principal", key).Str("path", r.URL.Path).Int("retry_after", retryAfter).Msg("rate limit exceeded")
				writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
