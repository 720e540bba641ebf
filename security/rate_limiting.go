package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a caller exceeds its request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter throttles scan traffic per operator with a fixed-window Redis
// counter. Redis being unavailable fails open: a human-operated scanning
// session must not stall because the limiter store is down.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Allow consumes one request from the window budget for the given key.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) error {
	if r.redis == nil || limit <= 0 {
		return nil
	}

	counterKey := fmt.Sprintf("ratelimit:%s", key)
	count, err := r.redis.Incr(ctx, counterKey).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		r.redis.Expire(ctx, counterKey, window)
	}
	if count > int64(limit) {
		return ErrRateLimited
	}
	return nil
}
