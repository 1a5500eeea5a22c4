package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultVerificationMaxAttempts = 5
	defaultVerificationCooldown    = 15 * time.Minute
)

var (
	ErrVerificationRateLimited = errors.New("verification rate limited")
	ErrVerificationUnavailable = errors.New("verification limiter unavailable")
)

// VerificationConfig holds the thresholds for one verification scope.
type VerificationConfig struct {
	// Prefix namespaces the keys, e.g. "la:otpv".
	Prefix      string
	MaxAttempts int
	Cooldown    time.Duration
}

// VerificationLimiter counts failed verifications per identifier.
type VerificationLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int64
	cooldown    time.Duration
}

// NewVerificationLimiter creates a limiter. Zero-value fields fall back to
// 5 attempts per 15 minutes.
func NewVerificationLimiter(redisClient redis.UniversalClient, cfg VerificationConfig) *VerificationLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultVerificationMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultVerificationCooldown
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "otpv"
	}
	return &VerificationLimiter{redis: redisClient, prefix: prefix, maxAttempts: int64(max), cooldown: cd}
}

func (l *VerificationLimiter) key(identifier string) string {
	return l.prefix + ":" + identifier
}

// Check reports ErrVerificationRateLimited once MaxAttempts failures were
// recorded in the current window.
func (l *VerificationLimiter) Check(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrVerificationRateLimited
	}
	return nil
}

// RecordFailure counts one failed attempt and reports whether the budget is
// now spent.
func (l *VerificationLimiter) RecordFailure(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Incr(ctx, l.key(identifier)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(identifier), l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
		}
	}
	if count >= l.maxAttempts {
		return ErrVerificationRateLimited
	}
	return nil
}

// Reset clears the window after a successful verification.
func (l *VerificationLimiter) Reset(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	return nil
}
