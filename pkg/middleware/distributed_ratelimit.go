package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter is a fixed window counter in Redis, shared by every
// replica of the service
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = AnonymousRateLimitConfig()
	}
	if prefix == "" {
		prefix = "roster:ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Config returns the limiter's configuration
func (rl *DistributedRateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Allow increments key's counter for the current window
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	// The first hit opens the window
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return true, fmt.Errorf("redis error: %w", err)
		}
	}

	return count <= int64(rl.config.RequestsPerWindow+rl.config.BurstSize), nil
}

// Exhausted reports whether key's counter has used up the current window
func (rl *DistributedRateLimiter) Exhausted(ctx context.Context, key string) (bool, error) {
	count, err := rl.redis.Get(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return count >= int64(rl.config.RequestsPerWindow+rl.config.BurstSize), nil
}

// Reset clears the counter for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}
