package stores

import (
	"context"
	"errors"
	"sync"
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

func TestChallengeSaveGetDelete(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	s := NewChallengeStore(rdb, "la:lac")

	rec := &LoginChallenge{AccountID: "acc-1", OrganizationID: "org-1", ExpiresAt: time.Now().Add(time.Minute).Unix()}
	if err := s.Save(ctx, "c1", rec, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccountID != "acc-1" || got.OrganizationID != "org-1" || got.Attempts != 0 {
		t.Fatalf("unexpected record %+v", got)
	}

	deleted, err := s.Delete(ctx, "c1")
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v err=%v", deleted, err)
	}
	deleted, err = s.Delete(ctx, "c1")
	if err != nil || deleted {
		t.Fatalf("second delete must report false, got %v err=%v", deleted, err)
	}
	if _, err := s.Get(ctx, "c1"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestChallengeExpiryUsesClock(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	now := time.Unix(1_700_000_000, 0)
	s := NewChallengeStore(rdb, "la:lac").WithClock(func() time.Time { return now })

	_ = s.Save(ctx, "c1", &LoginChallenge{AccountID: "acc-1", ExpiresAt: now.Add(time.Minute).Unix()}, time.Hour)
	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "c1"); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("expected ErrChallengeExpired, got %v", err)
	}
	if _, err := s.Get(ctx, "c1"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expired challenge should be deleted, got %v", err)
	}
}

func TestChallengeRecordFailureExhausts(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := NewChallengeStore(rdb, "la:lac")

	_ = s.Save(ctx, "c1", &LoginChallenge{AccountID: "acc-1", ExpiresAt: time.Now().Add(time.Minute).Unix()}, time.Minute)

	for i := 1; i < 3; i++ {
		exceeded, err := s.RecordFailure(ctx, "c1", 3)
		if err != nil || exceeded {
			t.Fatalf("failure %d: exceeded=%v err=%v", i, exceeded, err)
		}
	}
	got, _ := s.Get(ctx, "c1")
	if got == nil || got.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %+v", got)
	}

	exceeded, err := s.RecordFailure(ctx, "c1", 3)
	if err != nil || !exceeded {
		t.Fatalf("expected exhaustion, exceeded=%v err=%v", exceeded, err)
	}
	if mr.Exists("la:lac:c1") {
		t.Fatal("exhausted challenge must be deleted")
	}
	if _, err := s.RecordFailure(ctx, "c1", 3); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestChallengeConcurrentFailuresCountOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	s := NewChallengeStore(rdb, "la:lac")
	_ = s.Save(ctx, "c1", &LoginChallenge{AccountID: "acc-1", ExpiresAt: time.Now().Add(time.Minute).Unix()}, time.Minute)

	const workers = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	exceededCount := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exceeded, err := s.RecordFailure(ctx, "c1", workers)
			if err == nil && exceeded {
				mu.Lock()
				exceededCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if exceededCount > 1 {
		t.Fatalf("exhaustion must be observed at most once, got %d", exceededCount)
	}
}

func TestChallengeDecodeRejectsUnknownVersion(t *testing.T) {
	if _, err := decodeChallenge([]byte{9, 0, 0}); err == nil {
		t.Fatal("expected version error")
	}
}

func TestDenyList(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	d := NewDenyList(rdb, "la:deny")

	revoked, err := d.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected not revoked, got %v err=%v", revoked, err)
	}
	if err := d.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if revoked, _ := d.IsRevoked(ctx, "jti-1"); !revoked {
		t.Fatal("expected revoked")
	}
	if ttl := mr.TTL("la:deny:jti-1"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}

	if err := d.Revoke(ctx, "jti-2", 0); err != nil {
		t.Fatalf("expired token revoke should be a no-op, got %v", err)
	}
	if mr.Exists("la:deny:jti-2") {
		t.Fatal("expired token must not be written")
	}

	mr.FastForward(2 * time.Minute)
	if revoked, _ := d.IsRevoked(ctx, "jti-1"); revoked {
		t.Fatal("entry should expire with the token")
	}
}
