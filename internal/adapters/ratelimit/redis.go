// Package ratelimit provides fixed-window per-identity request
// counters: a Redis-backed implementation for multi-process
// deployments and an in-memory fallback.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultWindow = time.Minute

// Redis counts requests with INCR and sets the window expiry on the
// first hit. INCR is atomic on the server, so concurrent callers for
// the same key cannot lose updates.
type Redis struct {
	client *redis.Client
	window time.Duration
}

func NewRedis(client *redis.Client, window time.Duration) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, window: window}
}

func (r *Redis) Allow(ctx context.Context, key string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	redisKey := "rl:" + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("incr rate counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return false, fmt.Errorf("set rate counter expiry: %w", err)
		}
	}
	return count <= int64(limit), nil
}
