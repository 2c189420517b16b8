// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the edge rate limiter: an in-memory token bucket per
// identity, sitting in front of the store-backed submission window so cheap
// floods never reach the database. Buckets are garbage-collected
// opportunistically to bound memory in a single-process deployment.
//
// Notes:
//   - The limiter is process-local. Horizontally scaled deployments should
//     front it with a shared limiter; here only the allow/deny decisions are
//     mirrored out (see DecisionRecorder) for fleet-wide visibility.
//   - Idempotent replays (marked by IdempotencyValidator) bypass limiting so
//     retries of already-completed submissions are always served.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyBySessionOrIP returns a keyFunc that prefers the chat widget's session
// identifier (X-Session-ID header) and falls back to the client IP address.
// Keys are prefixed to keep the two namespaces from colliding.
func KeyBySessionOrIP() keyFunc {
	return func(c *gin.Context) string {
		if sid := c.GetHeader("X-Session-ID"); sid != "" {
			return "session:" + sid
		}
		return "ip:" + c.ClientIP()
	}
}

// DecisionRecorder receives every allow/deny decision the limiter makes.
// Implementations must be non-blocking; the limiter calls Record inline.
type DecisionRecorder interface {
	Record(key string, allowed bool)
}

// visitor holds one bucket and the last time it was seen, for idle eviction.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a per-key token-bucket rate limiter.
//
// Buckets are created on demand in a mutex-guarded map; idle buckets are
// evicted after a TTL during lookups. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	recorder DecisionRecorder

	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a RateLimiter with the given tokens-per-second
// and burst size, keyed by keyFn. A burst <= 0 is coerced to 1. The recorder
// is optional.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, recorder DecisionRecorder) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		recorder: recorder,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns (and refreshes) the limiter for key, creating it if
// absent. GC runs before the lookup so an idle bucket can be evicted even
// when it is the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay of a previously completed submission. Replays skip limiting.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns a Gin middleware that enforces per-key token-bucket limits.
//
// Denied requests receive 429 with a compact JSON body and a minimal
// Retry-After header. Every decision is forwarded to the recorder when one is
// configured.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		key := rl.keyFn(c)
		allowed := rl.getVisitor(key).Allow()
		if rl.recorder != nil {
			rl.recorder.Record(key, allowed)
		}

		if allowed {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
