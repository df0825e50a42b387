package redis

import (
	"context"
	"fmt"
	"time"
)

// Counter is the subset of RedisClient a fixed-window limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RateLimiter is a fixed-window counter shared by every instance.
type RateLimiter struct {
	client Counter
	limit  int
	window time.Duration
}

func NewRateLimiter(client Counter, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow counts one call against key. A non-positive limit disables limiting.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window); err != nil {
			return false, err
		}
	}

	return count <= int64(r.limit), nil
}

func ChatKey(userID string) string {
	return fmt.Sprintf("rate_limit:chat:%s", userID)
}
