package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestVerificationLimiterBudget(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	l := NewVerificationLimiter(rdb, VerificationConfig{Prefix: "la:otpv", MaxAttempts: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		if err := l.Check(ctx, "a@example.com"); err != nil {
			t.Fatalf("attempt %d: unexpected check error %v", i, err)
		}
		if err := l.RecordFailure(ctx, "a@example.com"); err != nil {
			t.Fatalf("attempt %d: unexpected record error %v", i, err)
		}
	}
	if err := l.RecordFailure(ctx, "a@example.com"); !errors.Is(err, ErrVerificationRateLimited) {
		t.Fatalf("expected limit on third failure, got %v", err)
	}
	if err := l.Check(ctx, "a@example.com"); !errors.Is(err, ErrVerificationRateLimited) {
		t.Fatalf("expected check to block, got %v", err)
	}
	if !mr.Exists("la:otpv:a@example.com") {
		t.Fatal("expected prefixed key")
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "a@example.com"); err != nil {
		t.Fatalf("expected window expiry, got %v", err)
	}
}

func TestVerificationLimiterResetAndScopes(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	codes := NewVerificationLimiter(rdb, VerificationConfig{Prefix: "la:otpv", MaxAttempts: 1, Cooldown: time.Minute})
	recovery := NewVerificationLimiter(rdb, VerificationConfig{Prefix: "la:rcv", MaxAttempts: 1, Cooldown: time.Minute})

	_ = codes.RecordFailure(ctx, "a@example.com")
	if err := codes.Check(ctx, "a@example.com"); !errors.Is(err, ErrVerificationRateLimited) {
		t.Fatalf("expected block, got %v", err)
	}
	if err := recovery.Check(ctx, "a@example.com"); err != nil {
		t.Fatalf("scopes must not share counters, got %v", err)
	}
	if err := codes.Reset(ctx, "a@example.com"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := codes.Check(ctx, "a@example.com"); err != nil {
		t.Fatalf("expected reset to clear, got %v", err)
	}
}

func TestSendCodeLimiterAllow(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	l := NewSendCodeLimiter(rdb, SendCodeConfig{Prefix: "la:sndc", MaxRequests: 3, Cooldown: 10 * time.Minute})

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "a@example.com"); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}
	if err := l.Allow(ctx, "a@example.com"); !errors.Is(err, ErrSendCodeRateLimited) {
		t.Fatalf("expected fourth request to be limited, got %v", err)
	}
	if ttl := mr.TTL("la:sndc:a@example.com"); ttl != 10*time.Minute {
		t.Fatalf("expected 10m window, got %v", ttl)
	}
}

func TestNilLimitersAreNoOps(t *testing.T) {
	var v *VerificationLimiter
	var s *SendCodeLimiter
	ctx := context.Background()
	if v.Check(ctx, "x") != nil || v.RecordFailure(ctx, "x") != nil || v.Reset(ctx, "x") != nil || s.Allow(ctx, "x") != nil {
		t.Fatal("nil limiters must be no-ops")
	}
}

func TestVerificationLimiterDefaults(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewVerificationLimiter(rdb, VerificationConfig{})
	if l.maxAttempts != 5 || l.cooldown != 15*time.Minute || l.prefix != "otpv" {
		t.Fatalf("unexpected defaults %+v", l)
	}
}
