package redisstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/ledgerAuth/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	clock := time.Unix(1_700_000_000, 0)
	return New(rdb, "t").WithClock(func() time.Time { return clock }), mr
}

func createAccount(t *testing.T, s *Store, id, email, org string) store.Account {
	t.Helper()
	acc, err := s.CreateAccount(context.Background(), store.CreateAccountInput{
		AccountID:      id,
		Email:          email,
		Name:           "Test",
		OrganizationID: org,
		PasswordHash:   "$argon2id$stub",
		Role:           "staff",
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return acc
}

func digest(s string) [32]byte { return sha256.Sum256([]byte(s)) }

func TestCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	acc := createAccount(t, s, "acc-1", "a@example.com", "org-1")
	if !acc.Active || acc.TOTPEnabled || acc.TOTPSecret != nil {
		t.Fatalf("unexpected new account state %+v", acc)
	}
	if !mr.Exists("t:acct:acc-1") || !mr.Exists("t:acct:email:a@example.com") {
		t.Fatal("expected account and email index keys")
	}

	byEmail, err := s.GetAccountByEmail(ctx, "a@example.com")
	if err != nil || byEmail.AccountID != "acc-1" || byEmail.PasswordHash != "$argon2id$stub" {
		t.Fatalf("GetAccountByEmail = %+v, %v", byEmail, err)
	}
	if _, err := s.GetAccountByEmail(ctx, "A@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("email lookup must be case sensitive, got %v", err)
	}
	if _, err := s.GetAccountByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	s, _ := newTestStore(t)
	createAccount(t, s, "acc-1", "a@example.com", "org-1")

	_, err := s.CreateAccount(context.Background(), store.CreateAccountInput{
		AccountID: "acc-2", Email: "a@example.com", OrganizationID: "org-2", Role: "staff",
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := s.GetAccountByID(context.Background(), "acc-2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("losing writer must not create a document, got %v", err)
	}
}

func TestTOTPLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	createAccount(t, s, "acc-1", "a@example.com", "org-1")

	if err := s.SetPendingTOTPSecret(ctx, "acc-1", []byte("secret-a")); err != nil {
		t.Fatalf("SetPendingTOTPSecret failed: %v", err)
	}
	if err := s.SetPendingTOTPSecret(ctx, "acc-1", []byte("secret-b")); err != nil {
		t.Fatalf("SetPendingTOTPSecret failed: %v", err)
	}

	codes := [][32]byte{digest("c1"), digest("c2")}
	if err := s.EnableTOTP(ctx, "acc-1", []byte("secret-a"), codes); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for a replaced secret, got %v", err)
	}
	if err := s.EnableTOTP(ctx, "acc-1", []byte("secret-b"), codes); err != nil {
		t.Fatalf("EnableTOTP failed: %v", err)
	}

	acc, _ := s.GetAccountByID(ctx, "acc-1")
	if !acc.TOTPEnabled || string(acc.TOTPSecret) != "secret-b" || len(acc.RecoveryCodes) != 2 {
		t.Fatalf("unexpected enabled state %+v", acc)
	}

	if err := s.EnableTOTP(ctx, "acc-1", []byte("secret-b"), [][32]byte{digest("c9")}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for an already enabled account, got %v", err)
	}
	acc, _ = s.GetAccountByID(ctx, "acc-1")
	if len(acc.RecoveryCodes) != 2 || acc.RecoveryCodes[0] != digest("c1") || acc.RecoveryCodes[1] != digest("c2") {
		t.Fatalf("expected recovery codes to survive a second enable, got %x", acc.RecoveryCodes)
	}

	if err := s.DisableTOTP(ctx, "acc-1"); err != nil {
		t.Fatalf("DisableTOTP failed: %v", err)
	}
	acc, _ = s.GetAccountByID(ctx, "acc-1")
	if acc.TOTPEnabled || acc.TOTPSecret != nil || len(acc.RecoveryCodes) != 0 {
		t.Fatalf("expected cleared 2FA state, got %+v", acc)
	}
}

func TestConsumeRecoveryCodeOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	createAccount(t, s, "acc-1", "a@example.com", "org-1")
	_ = s.SetPendingTOTPSecret(ctx, "acc-1", []byte("secret"))
	_ = s.EnableTOTP(ctx, "acc-1", []byte("secret"), [][32]byte{digest("c1"), digest("c2"), digest("c3")})

	ok, err := s.ConsumeRecoveryCode(ctx, "acc-1", digest("c2"))
	if err != nil || !ok {
		t.Fatalf("first consume = %v, %v", ok, err)
	}
	ok, err = s.ConsumeRecoveryCode(ctx, "acc-1", digest("c2"))
	if err != nil || ok {
		t.Fatalf("second consume = %v, %v", ok, err)
	}
	acc, _ := s.GetAccountByID(ctx, "acc-1")
	if len(acc.RecoveryCodes) != 2 || acc.RecoveryCodes[0] != digest("c1") || acc.RecoveryCodes[1] != digest("c3") {
		t.Fatalf("unexpected remaining codes %x", acc.RecoveryCodes)
	}
}

func TestConsumeRecoveryCodeConcurrent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	createAccount(t, s, "acc-1", "a@example.com", "org-1")
	_ = s.SetPendingTOTPSecret(ctx, "acc-1", []byte("secret"))
	_ = s.EnableTOTP(ctx, "acc-1", []byte("secret"), [][32]byte{digest("c1")})

	const workers = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ConsumeRecoveryCode(ctx, "acc-1", digest("c1"))
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestRoleStatusAndMembers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	createAccount(t, s, "acc-1", "a@example.com", "org-1")
	createAccount(t, s, "acc-2", "b@example.com", "org-1")
	createAccount(t, s, "acc-3", "c@example.com", "org-2")

	if err := s.UpdateRole(ctx, "acc-2", "manager", "acc-1"); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}
	if err := s.SetActive(ctx, "acc-2", false, "acc-1"); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	acc, _ := s.GetAccountByID(ctx, "acc-2")
	if acc.Role != "manager" || acc.Active || acc.UpdatedBy != "acc-1" {
		t.Fatalf("unexpected account %+v", acc)
	}
	if err := s.UpdateRole(ctx, "ghost", "admin", "acc-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	members, err := s.ListAccountsByOrganization(ctx, "org-1")
	if err != nil {
		t.Fatalf("ListAccountsByOrganization failed: %v", err)
	}
	if len(members) != 2 || members[0].AccountID != "acc-1" || members[1].AccountID != "acc-2" {
		t.Fatalf("unexpected members %+v", members)
	}
	empty, err := s.ListAccountsByOrganization(ctx, "org-none")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v %v", empty, err)
	}
}

func TestBackendFailure(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()
	if _, err := s.GetAccountByID(context.Background(), "acc-1"); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}
