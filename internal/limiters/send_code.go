package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultSendCodeMaxRequests = 3
	defaultSendCodeCooldown    = 10 * time.Minute
)

var (
	ErrSendCodeRateLimited = errors.New("send code rate limited")
	ErrSendCodeUnavailable = errors.New("send code limiter unavailable")
)

// SendCodeConfig holds the request budget for emailed codes.
type SendCodeConfig struct {
	Prefix      string
	MaxRequests int
	Cooldown    time.Duration
}

// SendCodeLimiter counts every send-code request, successful or not.
type SendCodeLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxRequests int64
	cooldown    time.Duration
}

// NewSendCodeLimiter creates a limiter. Zero-value fields fall back to
// 3 requests per 10 minutes.
func NewSendCodeLimiter(redisClient redis.UniversalClient, cfg SendCodeConfig) *SendCodeLimiter {
	max := cfg.MaxRequests
	if max <= 0 {
		max = defaultSendCodeMaxRequests
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultSendCodeCooldown
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "sndc"
	}
	return &SendCodeLimiter{redis: redisClient, prefix: prefix, maxRequests: int64(max), cooldown: cd}
}

// Allow consumes one request from the window. The request that exceeds the
// budget is rejected with ErrSendCodeRateLimited.
func (l *SendCodeLimiter) Allow(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	key := l.prefix + ":" + identifier
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendCodeUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrSendCodeUnavailable, err)
		}
	}
	if count > l.maxRequests {
		return ErrSendCodeRateLimited
	}
	return nil
}
