package flows

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/ledgerAuth/store"
)

var (
	errNotReady       = errors.New("not ready")
	errValidation     = errors.New("validation")
	errInvalidCreds   = errors.New("invalid credentials")
	errLoginLimited   = errors.New("login limited")
	errVerifyLimited  = errors.New("verify limited")
	errInvalidCode    = errors.New("invalid code")
	errInvalidRecover = errors.New("invalid recovery")
	errNotEnabled     = errors.New("not enabled")
	errNotFound       = errors.New("not found")
	errStore          = errors.New("store")
	errForbidden      = errors.New("forbidden")
	errRoleInvalid    = errors.New("role invalid")
)

func testCommon() Common {
	return Common{Errors: Errors{
		EngineNotReady:          errNotReady,
		Validation:              errValidation,
		InvalidCredentials:      errInvalidCreds,
		LoginRateLimited:        errLoginLimited,
		VerificationRateLimited: errVerifyLimited,
		InvalidCode:             errInvalidCode,
		InvalidRecoveryCode:     errInvalidRecover,
		TOTPNotEnabled:          errNotEnabled,
		AccountNotFound:         errNotFound,
		StoreUnavailable:        errStore,
		Forbidden:               errForbidden,
		AccountRoleInvalid:      errRoleInvalid,
	}}
}

func TestGenerateRecoveryCodesFormatAndDigests(t *testing.T) {
	plain, digests, err := GenerateRecoveryCodes("acct-1", 5, 10)
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes failed: %v", err)
	}
	if len(plain) != 5 || len(digests) != 5 {
		t.Fatalf("expected 5 codes, got %d/%d", len(plain), len(digests))
	}
	for i, code := range plain {
		if len(code) != 11 || code[5] != '-' {
			t.Fatalf("unexpected display format %q", code)
		}
		canonical := CanonicalRecoveryCode(code)
		for _, r := range canonical {
			if !strings.ContainsRune(recoveryAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		if RecoveryCodeDigest("acct-1", canonical) != digests[i] {
			t.Fatalf("digest mismatch for %q", code)
		}
		if RecoveryCodeDigest("acct-2", canonical) == digests[i] {
			t.Fatal("digest must be bound to the account")
		}
	}
}

func TestCanonicalRecoveryCode(t *testing.T) {
	if got := CanonicalRecoveryCode(" abcde-fgh23 "); got != "ABCDEFGH23" {
		t.Fatalf("got %q", got)
	}
}

func loginDeps(acc store.Account, verifyOK bool) LoginDeps {
	return LoginDeps{
		Common: testCommon(),
		GetAccountByEmail: func(_ context.Context, email string) (store.Account, error) {
			if email != acc.Email {
				return store.Account{}, store.ErrNotFound
			}
			return acc, nil
		},
		VerifyPassword: func(string, string) (bool, error) { return verifyOK, nil },
		IssueToken: func(a store.Account, verified bool) (string, error) {
			if verified {
				return "verified:" + a.AccountID, nil
			}
			return "pending:" + a.AccountID, nil
		},
	}
}

func TestRunLoginIssuesVerifiedTokenWithoutSecondFactor(t *testing.T) {
	acc := store.Account{AccountID: "a1", Email: "a@example.com", Active: true}
	res, err := RunLogin(context.Background(), " a@example.com ", "pw", loginDeps(acc, true))
	if err != nil {
		t.Fatalf("RunLogin failed: %v", err)
	}
	if res.Requires2FA || res.Token != "verified:a1" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunLoginSecondFactorPending(t *testing.T) {
	acc := store.Account{AccountID: "a1", Email: "a@example.com", Active: true, TOTPEnabled: true, TOTPSecret: []byte("s")}
	deps := loginDeps(acc, true)
	sent := false
	deps.SendLoginCode = func(context.Context, store.Account) error {
		sent = true
		return errors.New("smtp down")
	}
	deps.CreateChallenge = func(context.Context, store.Account) (string, error) { return "ch-1", nil }

	res, err := RunLogin(context.Background(), "a@example.com", "pw", deps)
	if err != nil {
		t.Fatalf("delivery failure must not fail login: %v", err)
	}
	if !res.Requires2FA || res.Token != "pending:a1" || res.ChallengeID != "ch-1" || !sent {
		t.Fatalf("unexpected result %+v sent=%v", res, sent)
	}
}

func TestRunLoginFailuresAreGeneric(t *testing.T) {
	acc := store.Account{AccountID: "a1", Email: "a@example.com", Active: true}

	dummyChecked := false
	deps := loginDeps(acc, false)
	deps.DummyHash = "dummy"
	deps.VerifyPassword = func(_, hash string) (bool, error) {
		if hash == "dummy" {
			dummyChecked = true
		}
		return false, nil
	}
	if _, err := RunLogin(context.Background(), "nobody@example.com", "pw", deps); !errors.Is(err, errInvalidCreds) {
		t.Fatalf("unknown email: expected invalid credentials, got %v", err)
	}
	if !dummyChecked {
		t.Fatal("expected dummy hash verification for unknown email")
	}
	if _, err := RunLogin(context.Background(), "a@example.com", "pw", deps); !errors.Is(err, errInvalidCreds) {
		t.Fatalf("wrong password: expected invalid credentials, got %v", err)
	}

	inactive := acc
	inactive.Active = false
	if _, err := RunLogin(context.Background(), "a@example.com", "pw", loginDeps(inactive, true)); !errors.Is(err, errInvalidCreds) {
		t.Fatalf("inactive: expected invalid credentials, got %v", err)
	}
	if _, err := RunLogin(context.Background(), "", "pw", deps); !errors.Is(err, errValidation) {
		t.Fatalf("empty email: expected validation, got %v", err)
	}
}

func TestRunLoginLimiterBlocks(t *testing.T) {
	acc := store.Account{AccountID: "a1", Email: "a@example.com", Active: true}
	deps := loginDeps(acc, false)
	deps.IncrementLoginRate = func(context.Context, string, string) error { return errLoginLimited }
	if _, err := RunLogin(context.Background(), "a@example.com", "pw", deps); !errors.Is(err, errLoginLimited) {
		t.Fatalf("expected login limited, got %v", err)
	}
}

func TestRunVerifyRecoveryCodeFailureCountsAgainstLimiter(t *testing.T) {
	acc := store.Account{AccountID: "a1", Email: "a@example.com", Active: true, TOTPEnabled: true,
		RecoveryCodes: [][32]byte{RecoveryCodeDigest("a1", "AAAAABBBBB")}}

	failures := 0
	deps := SecondFactorDeps{
		Common:            testCommon(),
		GetAccountByEmail: func(context.Context, string) (store.Account, error) { return acc, nil },
		ConsumeRecoveryCode: func(_ context.Context, _ string, d [32]byte) (bool, error) {
			return d == acc.RecoveryCodes[0], nil
		},
		IssueToken: func(store.Account, bool) (string, error) { return "tok", nil },
		RecordVerificationFail: func(context.Context, string, string) error {
			failures++
			if failures >= 2 {
				return errVerifyLimited
			}
			return nil
		},
	}

	if _, err := RunVerifyRecoveryCode(context.Background(), "a@example.com", "ZZZZZ-ZZZZZ", "", deps); !errors.Is(err, errInvalidRecover) {
		t.Fatalf("expected invalid recovery code, got %v", err)
	}
	if _, err := RunVerifyRecoveryCode(context.Background(), "a@example.com", "ZZZZZ-ZZZZZ", "", deps); !errors.Is(err, errVerifyLimited) {
		t.Fatalf("expected limiter to trip, got %v", err)
	}
	res, err := RunVerifyRecoveryCode(context.Background(), "a@example.com", "aaaaa-bbbbb", "", deps)
	if err != nil || res.Token != "tok" {
		t.Fatalf("expected success with lower-case code, got %v", err)
	}
}

func TestRunVerifyRecoveryCodeClaimsChallengeFirst(t *testing.T) {
	errChallenge := errors.New("challenge spent")
	acc := store.Account{AccountID: "a1", Email: "a@example.com", Active: true, TOTPEnabled: true,
		RecoveryCodes: [][32]byte{RecoveryCodeDigest("a1", "AAAAABBBBB")}}

	var calls []string
	claimErr := errChallenge
	deps := SecondFactorDeps{
		Common:            testCommon(),
		RequireChallenge:  true,
		GetAccountByEmail: func(context.Context, string) (store.Account, error) { return acc, nil },
		CheckChallenge:    func(context.Context, string, string) error { return nil },
		FailChallenge: func(context.Context, string) error {
			calls = append(calls, "fail")
			return nil
		},
		CompleteChallenge: func(context.Context, string) error {
			calls = append(calls, "claim")
			return claimErr
		},
		ConsumeRecoveryCode: func(context.Context, string, [32]byte) (bool, error) {
			calls = append(calls, "consume")
			return true, nil
		},
		IssueToken: func(store.Account, bool) (string, error) { return "tok", nil },
	}

	// A challenge lost to another request leaves the code unspent.
	if _, err := RunVerifyRecoveryCode(context.Background(), "a@example.com", "AAAAA-BBBBB", "ch-1", deps); !errors.Is(err, errChallenge) {
		t.Fatalf("expected challenge error, got %v", err)
	}
	if strings.Join(calls, ",") != "claim" {
		t.Fatalf("expected only the claim, got %v", calls)
	}

	// A wrong code keeps the challenge for a retry and spends nothing.
	calls = nil
	if _, err := RunVerifyRecoveryCode(context.Background(), "a@example.com", "ZZZZZ-ZZZZZ", "ch-1", deps); !errors.Is(err, errInvalidRecover) {
		t.Fatalf("expected invalid recovery code, got %v", err)
	}
	if strings.Join(calls, ",") != "fail" {
		t.Fatalf("expected only a recorded failure, got %v", calls)
	}

	calls = nil
	claimErr = nil
	res, err := RunVerifyRecoveryCode(context.Background(), "a@example.com", "AAAAA-BBBBB", "ch-1", deps)
	if err != nil || res.Token != "tok" {
		t.Fatalf("expected success, got %v", err)
	}
	if strings.Join(calls, ",") != "claim,consume" {
		t.Fatalf("expected claim before consume, got %v", calls)
	}
}

func TestRunChangeRoleHidesOtherOrganizations(t *testing.T) {
	target := store.Account{AccountID: "t1", OrganizationID: "org-b", Role: "staff", Active: true}
	updated := false
	deps := AuthzDeps{
		Common:         testCommon(),
		GetAccountByID: func(context.Context, string) (store.Account, error) { return target, nil },
		UpdateRole: func(context.Context, string, string, string) error {
			updated = true
			return nil
		},
		RoleExists: func(r string) bool { return r == "manager" },
	}

	if err := RunChangeRole(context.Background(), "actor", "org-a", "t1", "manager", deps); !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found across organizations, got %v", err)
	}
	if err := RunChangeRole(context.Background(), "actor", "org-b", "t1", "owner", deps); !errors.Is(err, errRoleInvalid) {
		t.Fatalf("expected invalid role, got %v", err)
	}
	if updated {
		t.Fatal("no update expected yet")
	}
	if err := RunChangeRole(context.Background(), "actor", "org-b", "t1", "manager", deps); err != nil || !updated {
		t.Fatalf("expected update, err=%v updated=%v", err, updated)
	}
}

func TestRunAuthorizePermissionUnknownIsDenied(t *testing.T) {
	warned := false
	deps := AuthzDeps{
		Common: testCommon(),
		GetAccountByID: func(context.Context, string) (store.Account, error) {
			return store.Account{AccountID: "a1", Role: "admin", Active: true}, nil
		},
		RoleHas: func(string, string) (bool, bool) { return false, false },
	}
	deps.Warn = func(string, ...any) { warned = true }

	if err := RunAuthorizePermission(context.Background(), "a1", "nope:nope", deps); !errors.Is(err, errForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if !warned {
		t.Fatal("expected a warning for the unknown permission")
	}
}
