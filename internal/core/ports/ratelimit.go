package ports

import "context"

// RateLimiter is a per-identity fixed-window counter. Allow reports
// whether key may make another request under limit within the current
// window. Implementations must not lose updates under concurrent
// callers for the same key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int) (bool, error)
}
