package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/ledgerAuth/store"
)

// LoginResult is the flow-local login response.
type LoginResult struct {
	Token       string
	Account     store.Account
	Requires2FA bool
	ChallengeID string
}

// LoginDeps captures password login dependencies. Optional hooks are nil
// when the matching feature is off.
type LoginDeps struct {
	Common

	UpgradeOnLogin bool
	// DummyHash is verified against when the email is unknown so both paths
	// pay for one hash.
	DummyHash string

	ClientIP func(context.Context) string

	CheckLoginRate     func(ctx context.Context, email, ip string) error
	IncrementLoginRate func(ctx context.Context, email, ip string) error
	ResetLoginRate     func(ctx context.Context, email string) error

	GetAccountByEmail  func(context.Context, string) (store.Account, error)
	UpdatePasswordHash func(ctx context.Context, accountID, hash string) error

	VerifyPassword func(password, hash string) (bool, error)
	NeedsUpgrade   func(hash string) (bool, error)
	HashPassword   func(string) (string, error)

	CreateChallenge func(context.Context, store.Account) (string, error)
	SendLoginCode   func(context.Context, store.Account) error
	IssueToken      func(acc store.Account, verified bool) (string, error)
}

// RunLogin verifies the password and issues a session token. Accounts with a
// second factor receive an unverified token and must step up.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	deps.fill()
	if deps.GetAccountByEmail == nil || deps.VerifyPassword == nil || deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.ClientIP == nil {
		deps.ClientIP = func(context.Context) string { return "" }
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, deps.Errors.Validation
	}
	ip := deps.ClientIP(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, email, ip); err != nil {
			return nil, loginRateLimited(ctx, deps, "", err)
		}
	}

	acc, err := deps.GetAccountByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, storeError(err, deps.Errors)
		}
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(password, deps.DummyHash)
		}
		return nil, loginFailed(ctx, deps, email, ip, "", "unknown_email")
	}

	ok, err := deps.VerifyPassword(password, acc.PasswordHash)
	if err != nil || !ok {
		return nil, loginFailed(ctx, deps, email, ip, acc.AccountID, "password_mismatch")
	}
	if !acc.Active {
		return nil, loginFailed(ctx, deps, email, ip, acc.AccountID, "inactive")
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, email); err != nil {
			deps.Warn("login limiter reset failed", "error", err)
		}
	}

	if deps.UpgradeOnLogin {
		upgradePasswordHash(ctx, deps, acc, password)
	}

	if !acc.TOTPEnabled {
		token, err := deps.IssueToken(acc, true)
		if err != nil {
			return nil, err
		}
		deps.MetricInc(deps.Metrics.LoginSuccess)
		deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, acc.AccountID, acc.OrganizationID, nil, nil)
		return &LoginResult{Token: token, Account: acc}, nil
	}

	result := &LoginResult{Account: acc, Requires2FA: true}
	if deps.CreateChallenge != nil {
		challengeID, err := deps.CreateChallenge(ctx, acc)
		if err != nil {
			return nil, err
		}
		result.ChallengeID = challengeID
	}

	token, err := deps.IssueToken(acc, false)
	if err != nil {
		return nil, err
	}
	result.Token = token

	if deps.SendLoginCode != nil {
		if err := deps.SendLoginCode(ctx, acc); err != nil {
			deps.Warn("login code delivery failed", "account_id", acc.AccountID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.LoginSecondFactorRequired)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, acc.AccountID, acc.OrganizationID, nil, func() map[string]string {
		return map[string]string{"second_factor": "pending"}
	})
	return result, nil
}

func loginFailed(ctx context.Context, deps LoginDeps, email, ip, accountID, why string) error {
	if deps.IncrementLoginRate != nil {
		if err := deps.IncrementLoginRate(ctx, email, ip); err != nil {
			return loginRateLimited(ctx, deps, accountID, err)
		}
	}
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, accountID, "", deps.Errors.InvalidCredentials, reason(why))
	return deps.Errors.InvalidCredentials
}

// loginRateLimited maps a limiter error. Anything other than a spent budget
// is a backend failure and fails closed.
func loginRateLimited(ctx context.Context, deps LoginDeps, accountID string, err error) error {
	if !errors.Is(err, deps.Errors.LoginRateLimited) {
		deps.Warn("login limiter unavailable", "error", err)
	}
	deps.MetricInc(deps.Metrics.LoginRateLimited)
	deps.EmitRateLimit(ctx, "login", accountID)
	return deps.Errors.LoginRateLimited
}

func upgradePasswordHash(ctx context.Context, deps LoginDeps, acc store.Account, password string) {
	if deps.NeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	needs, err := deps.NeedsUpgrade(acc.PasswordHash)
	if err != nil || !needs {
		return
	}
	upgraded, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("password rehash failed", "account_id", acc.AccountID, "error", err)
		return
	}
	if err := deps.UpdatePasswordHash(ctx, acc.AccountID, upgraded); err != nil {
		deps.Warn("password rehash update failed", "account_id", acc.AccountID, "error", err)
		return
	}
	deps.MetricInc(deps.Metrics.PasswordRehashed)
}
