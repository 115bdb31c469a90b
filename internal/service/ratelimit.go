package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/authentic/backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a fixed-window per-IP request budget on the auth
// surface, backed by Redis counters. An empty REDIS_URL disables it.
type RateLimiter struct {
	redis  redis.UniversalClient
	max    int64
	window time.Duration
}

func NewRateLimiter(cfg config.RateLimitConfig) (*RateLimiter, error) {
	max, err := strconv.ParseInt(cfg.MaxRequests, 10, 64)
	if err != nil || max <= 0 {
		return nil, fmt.Errorf("%w: invalid RATE_LIMIT_MAX", ErrMisconfigured)
	}
	window, err := time.ParseDuration(cfg.Window)
	if err != nil || window <= 0 {
		return nil, fmt.Errorf("%w: invalid RATE_LIMIT_WINDOW", ErrMisconfigured)
	}

	l := &RateLimiter{max: max, window: window}
	if cfg.RedisURL == "" {
		return l, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid REDIS_URL", ErrMisconfigured)
	}
	l.redis = redis.NewClient(opts)
	return l, nil
}

// NewRateLimiterWithClient is for callers that manage the Redis client
// themselves.
func NewRateLimiterWithClient(client redis.UniversalClient, max int64, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: client, max: max, window: window}
}

func (l *RateLimiter) IsConfigured() bool {
	return l != nil && l.redis != nil
}

// Allow counts the request against the address's current window and reports
// whether it is within budget. The window TTL starts at the first hit.
func (l *RateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	if !l.IsConfigured() || ip == "" {
		return true, nil
	}

	key := "rl:ip:" + ip
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return true, err
		}
	}
	return count <= l.max, nil
}
