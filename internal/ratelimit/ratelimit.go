// Package ratelimit throttles credential-guessing on the public auth
// endpoints with a fixed-window counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter reports whether a caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RedisLimiter is a fixed-window limiter: up to limit calls per window and
// key. It fails open on Redis errors so an outage never locks users out.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Rate limiter unavailable, allowing request")
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to set rate limit window expiry")
		}
	}
	return count <= int64(l.limit)
}

// NoopLimiter allows everything; used when no Redis address is configured.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) bool { return true }

var (
	_ Limiter = (*RedisLimiter)(nil)
	_ Limiter = NoopLimiter{}
)
