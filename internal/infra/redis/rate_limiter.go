package redis

import (
	"context"
	"strings"
	"time"
)

// RateLimiter counts hits per key in fixed windows that start at the first hit.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow records one hit on key and reports whether it is still within limit.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	hits, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if hits == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	} else if ttl, err := r.client.TTL(ctx, key); err == nil && ttl < 0 {
		// counter survived a failed Expire; give it a window again
		_ = r.client.Expire(ctx, key, window)
	}
	return hits <= int64(limit), nil
}

// LoginAttemptKey throttles per client address and normalized email.
func LoginAttemptKey(remoteIP, email string) string {
	return "rate_limit:login:" + remoteIP + ":" + strings.ToLower(strings.TrimSpace(email))
}
