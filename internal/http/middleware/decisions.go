// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file mirrors edge limiter decisions into Redis so a small fleet of
// instances shares visibility into who is being throttled. Mirroring is
// strictly best-effort: Redis being down must never slow a request.
package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	decisionHashAllowed = "ratelimit:allowed"
	decisionHashLimited = "ratelimit:limited"

	decisionTimeout = 250 * time.Millisecond
)

// RedisDecisions records limiter decisions as per-key counters in two Redis
// hashes, one for allowed and one for limited requests.
type RedisDecisions struct {
	Client *redis.Client
	Logger zerolog.Logger
}

// NewRedisDecisions constructs a RedisDecisions recorder.
func NewRedisDecisions(client *redis.Client, logger zerolog.Logger) *RedisDecisions {
	return &RedisDecisions{Client: client, Logger: logger}
}

// Record increments the counter for key in the matching hash. The write runs
// in its own goroutine with a short timeout and failures are only logged.
func (r *RedisDecisions) Record(key string, allowed bool) {
	if r == nil || r.Client == nil {
		return
	}
	hash := decisionHashLimited
	if allowed {
		hash = decisionHashAllowed
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), decisionTimeout)
		defer cancel()
		if err := r.Client.HIncrBy(ctx, hash, key, 1).Err(); err != nil {
			r.Logger.Debug().Err(err).Str("key", key).Msg("limiter decision not mirrored")
		}
	}()
}
