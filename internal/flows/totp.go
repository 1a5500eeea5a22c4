package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/ledgerAuth/store"
)

// Verification limiter scopes.
const (
	ScopeLoginCode    = "otp"
	ScopeRecoveryCode = "recovery"
)

// SecretSetup is the material shown once when setup starts.
type SecretSetup struct {
	Secret     string
	OTPAuthURL string
}

// VerifiedResult is returned by a successful step-up.
type VerifiedResult struct {
	Token   string
	Account store.Account
}

// SecondFactorDeps captures the TOTP and recovery-code dependencies.
// Limiter and challenge hooks are nil when the feature is off.
type SecondFactorDeps struct {
	Common

	RequireChallenge  bool
	RecoveryCodeCount int
	RecoveryCodeLen   int

	GetAccountByID         func(context.Context, string) (store.Account, error)
	GetAccountByEmail      func(context.Context, string) (store.Account, error)
	SetPendingTOTPSecret   func(ctx context.Context, accountID string, secret []byte) error
	EnableTOTP             func(ctx context.Context, accountID string, expectedSecret []byte, codes [][32]byte) error
	DisableTOTP            func(ctx context.Context, accountID string) error
	ConsumeRecoveryCode    func(ctx context.Context, accountID string, digest [32]byte) (bool, error)
	GenerateSecret         func(accountName string) (encoded, uri string, err error)
	ComputeCode            func(encoded string) (string, error)
	VerifyCode             func(encoded, code string) (bool, error)
	SealSecret             func(context.Context, []byte) ([]byte, error)
	OpenSecret             func(context.Context, []byte) ([]byte, error)
	SendCode               func(ctx context.Context, to, code string) error
	AllowSendCode          func(ctx context.Context, email string) error
	CheckVerification      func(ctx context.Context, scope, email string) error
	RecordVerificationFail func(ctx context.Context, scope, email string) error
	ResetVerification      func(ctx context.Context, scope, email string) error
	CheckChallenge         func(ctx context.Context, challengeID, accountID string) error
	FailChallenge          func(ctx context.Context, challengeID string) error
	CompleteChallenge      func(ctx context.Context, challengeID string) error
	IssueToken             func(acc store.Account, verified bool) (string, error)
}

// RunGenerateSecret creates a pending secret for an account without an
// active second factor. A previous pending secret is replaced.
func RunGenerateSecret(ctx context.Context, accountID string, deps SecondFactorDeps) (*SecretSetup, error) {
	deps.fill()
	if deps.GetAccountByID == nil || deps.GenerateSecret == nil || deps.SealSecret == nil || deps.SetPendingTOTPSecret == nil {
		return nil, deps.Errors.EngineNotReady
	}

	acc, err := deps.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, storeError(err, deps.Errors)
	}
	if acc.TOTPEnabled {
		return nil, deps.Errors.TOTPAlreadyEnabled
	}

	encoded, uri, err := deps.GenerateSecret(acc.Email)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	sealed, err := deps.SealSecret(ctx, []byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.SecretUnavailable, err)
	}
	if err := deps.SetPendingTOTPSecret(ctx, acc.AccountID, sealed); err != nil {
		return nil, storeError(err, deps.Errors)
	}

	deps.MetricInc(deps.Metrics.TOTPSecretGenerated)
	deps.EmitAudit(ctx, deps.Events.TOTPSecretGenerated, true, acc.AccountID, acc.OrganizationID, nil, nil)
	return &SecretSetup{Secret: encoded, OTPAuthURL: uri}, nil
}

// RunVerifyEnable checks a code against the pending secret and, on a match,
// enables the second factor and returns freshly minted recovery codes.
func RunVerifyEnable(ctx context.Context, accountID, code string, deps SecondFactorDeps) ([]string, error) {
	deps.fill()
	if deps.GetAccountByID == nil || deps.OpenSecret == nil || deps.VerifyCode == nil || deps.EnableTOTP == nil {
		return nil, deps.Errors.EngineNotReady
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, deps.Errors.Validation
	}

	acc, err := deps.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, storeError(err, deps.Errors)
	}
	if acc.TOTPEnabled {
		return nil, deps.Errors.TOTPAlreadyEnabled
	}
	if len(acc.TOTPSecret) == 0 {
		return nil, deps.Errors.TOTPNotConfigured
	}

	enableFailed := func(err error) error {
		deps.MetricInc(deps.Metrics.TOTPEnableFailure)
		deps.EmitAudit(ctx, deps.Events.TOTPEnableFailure, false, acc.AccountID, acc.OrganizationID, err, nil)
		return err
	}

	ok, err := verifySealed(ctx, deps, acc.TOTPSecret, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, enableFailed(deps.Errors.InvalidCode)
	}

	plain, digests, err := GenerateRecoveryCodes(acc.AccountID, deps.RecoveryCodeCount, deps.RecoveryCodeLen)
	if err != nil {
		return nil, err
	}
	if err := deps.EnableTOTP(ctx, acc.AccountID, acc.TOTPSecret, digests); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// A concurrent enable won, or the pending secret was replaced
			// after it was verified.
			if cur, gerr := deps.GetAccountByID(ctx, acc.AccountID); gerr == nil && cur.TOTPEnabled {
				return nil, enableFailed(deps.Errors.TOTPAlreadyEnabled)
			}
			return nil, enableFailed(deps.Errors.InvalidCode)
		}
		return nil, storeError(err, deps.Errors)
	}

	deps.MetricInc(deps.Metrics.TOTPEnabled)
	deps.EmitAudit(ctx, deps.Events.TOTPEnabled, true, acc.AccountID, acc.OrganizationID, nil, func() map[string]string {
		return map[string]string{"recovery_codes": fmt.Sprint(len(plain))}
	})
	return plain, nil
}

// RunVerifyLoginCode completes a login step-up with a TOTP code.
func RunVerifyLoginCode(ctx context.Context, email, code, challengeID string, deps SecondFactorDeps) (*VerifiedResult, error) {
	deps.fill()
	if deps.GetAccountByEmail == nil || deps.OpenSecret == nil || deps.VerifyCode == nil || deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, deps.Errors.Validation
	}

	acc, err := beginStepUp(ctx, deps, ScopeLoginCode, email, challengeID)
	if err != nil {
		return nil, err
	}
	if len(acc.TOTPSecret) == 0 {
		return nil, deps.Errors.TOTPNotEnabled
	}

	ok, err := verifySealed(ctx, deps, acc.TOTPSecret, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, failStepUp(ctx, deps, ScopeLoginCode, acc, challengeID, deps.Errors.InvalidCode,
			deps.Metrics.TOTPLoginFailure, deps.Events.TOTPLoginFailure)
	}

	if err := claimChallenge(ctx, deps, challengeID); err != nil {
		return nil, err
	}
	return finishStepUp(ctx, deps, ScopeLoginCode, acc,
		deps.Metrics.TOTPLoginSuccess, deps.Events.TOTPLoginSuccess)
}

// RunSendCode mails the current code to an account with an active second
// factor. No account state changes.
func RunSendCode(ctx context.Context, email string, deps SecondFactorDeps) error {
	deps.fill()
	if deps.GetAccountByEmail == nil || deps.SendCode == nil {
		return deps.Errors.EngineNotReady
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return deps.Errors.Validation
	}

	if deps.AllowSendCode != nil {
		if err := deps.AllowSendCode(ctx, email); err != nil {
			if !errors.Is(err, deps.Errors.SendCodeRateLimited) {
				deps.Warn("send code limiter unavailable", "error", err)
			}
			deps.EmitRateLimit(ctx, "send_code", "")
			return deps.Errors.SendCodeRateLimited
		}
	}

	acc, err := deps.GetAccountByEmail(ctx, email)
	if err != nil {
		return storeError(err, deps.Errors)
	}
	if !acc.TOTPEnabled || len(acc.TOTPSecret) == 0 {
		return deps.Errors.TOTPNotEnabled
	}
	return DeliverCode(ctx, deps, acc)
}

// DeliverCode computes the current code for acc and hands it to the mailer.
func DeliverCode(ctx context.Context, deps SecondFactorDeps, acc store.Account) error {
	deps.fill()
	if deps.OpenSecret == nil || deps.ComputeCode == nil || deps.SendCode == nil {
		return deps.Errors.EngineNotReady
	}
	secret, err := deps.OpenSecret(ctx, acc.TOTPSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.SecretUnavailable, err)
	}
	code, err := deps.ComputeCode(string(secret))
	if err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.SecretUnavailable, err)
	}
	if err := deps.SendCode(ctx, acc.Email, code); err != nil {
		deps.MetricInc(deps.Metrics.TOTPCodeSendFailure)
		deps.EmitAudit(ctx, deps.Events.TOTPCodeSent, false, acc.AccountID, acc.OrganizationID, deps.Errors.DeliveryUnavailable, nil)
		return fmt.Errorf("%w: %v", deps.Errors.DeliveryUnavailable, err)
	}
	deps.MetricInc(deps.Metrics.TOTPCodeSent)
	deps.EmitAudit(ctx, deps.Events.TOTPCodeSent, true, acc.AccountID, acc.OrganizationID, nil, nil)
	return nil
}

// RunDisableTOTP clears the second factor, its secret and every recovery
// code. The caller checks that the session is fully verified.
func RunDisableTOTP(ctx context.Context, accountID string, deps SecondFactorDeps) error {
	deps.fill()
	if deps.GetAccountByID == nil || deps.DisableTOTP == nil {
		return deps.Errors.EngineNotReady
	}

	acc, err := deps.GetAccountByID(ctx, accountID)
	if err != nil {
		return storeError(err, deps.Errors)
	}
	if !acc.TOTPEnabled {
		return deps.Errors.TOTPNotEnabled
	}
	if err := deps.DisableTOTP(ctx, acc.AccountID); err != nil {
		return storeError(err, deps.Errors)
	}

	deps.MetricInc(deps.Metrics.TOTPDisabled)
	deps.EmitAudit(ctx, deps.Events.TOTPDisabled, true, acc.AccountID, acc.OrganizationID, nil, nil)
	return nil
}

func verifySealed(ctx context.Context, deps SecondFactorDeps, sealed []byte, code string) (bool, error) {
	secret, err := deps.OpenSecret(ctx, sealed)
	if err != nil {
		return false, fmt.Errorf("%w: %v", deps.Errors.SecretUnavailable, err)
	}
	ok, err := deps.VerifyCode(string(secret), code)
	if err != nil {
		return false, fmt.Errorf("%w: %v", deps.Errors.SecretUnavailable, err)
	}
	return ok, nil
}

// beginStepUp runs the checks shared by code and recovery verification:
// limiter budget, account state and the optional login challenge.
func beginStepUp(ctx context.Context, deps SecondFactorDeps, scope, email, challengeID string) (store.Account, error) {
	if deps.CheckVerification != nil {
		if err := deps.CheckVerification(ctx, scope, email); err != nil {
			return store.Account{}, verificationLimited(ctx, deps, scope, "", err)
		}
	}

	acc, err := deps.GetAccountByEmail(ctx, email)
	if err != nil {
		return store.Account{}, storeError(err, deps.Errors)
	}
	if !acc.TOTPEnabled {
		if scope == ScopeRecoveryCode {
			return store.Account{}, deps.Errors.InvalidRecoveryCode
		}
		return store.Account{}, deps.Errors.TOTPNotEnabled
	}
	if !acc.Active {
		return store.Account{}, deps.Errors.AccountInactive
	}

	if deps.RequireChallenge && deps.CheckChallenge != nil {
		if strings.TrimSpace(challengeID) == "" {
			return store.Account{}, deps.Errors.ChallengeInvalid
		}
		if err := deps.CheckChallenge(ctx, challengeID, acc.AccountID); err != nil {
			deps.MetricInc(deps.Metrics.ChallengeFailure)
			return store.Account{}, err
		}
	}
	return acc, nil
}

func failStepUp(ctx context.Context, deps SecondFactorDeps, scope string, acc store.Account, challengeID string, failure error, metric int, event string) error {
	deps.MetricInc(metric)
	deps.EmitAudit(ctx, event, false, acc.AccountID, acc.OrganizationID, failure, nil)

	if deps.RequireChallenge && deps.FailChallenge != nil {
		if err := deps.FailChallenge(ctx, challengeID); err != nil {
			deps.MetricInc(deps.Metrics.ChallengeFailure)
			return err
		}
	}
	if deps.RecordVerificationFail != nil {
		if err := deps.RecordVerificationFail(ctx, scope, acc.Email); err != nil {
			return verificationLimited(ctx, deps, scope, acc.AccountID, err)
		}
	}
	return failure
}

// claimChallenge spends the login challenge. Only one request can claim a
// given challenge.
func claimChallenge(ctx context.Context, deps SecondFactorDeps, challengeID string) error {
	if !deps.RequireChallenge || deps.CompleteChallenge == nil {
		return nil
	}
	if err := deps.CompleteChallenge(ctx, challengeID); err != nil {
		deps.MetricInc(deps.Metrics.ChallengeFailure)
		return err
	}
	return nil
}

// finishStepUp issues the verified token. The challenge has been claimed.
func finishStepUp(ctx context.Context, deps SecondFactorDeps, scope string, acc store.Account, metric int, event string) (*VerifiedResult, error) {
	if deps.ResetVerification != nil {
		if err := deps.ResetVerification(ctx, scope, acc.Email); err != nil {
			deps.Warn("verification limiter reset failed", "scope", scope, "error", err)
		}
	}

	token, err := deps.IssueToken(acc, true)
	if err != nil {
		return nil, err
	}
	deps.MetricInc(metric)
	deps.EmitAudit(ctx, event, true, acc.AccountID, acc.OrganizationID, nil, nil)
	return &VerifiedResult{Token: token, Account: acc}, nil
}

func verificationLimited(ctx context.Context, deps SecondFactorDeps, scope, accountID string, err error) error {
	if !errors.Is(err, deps.Errors.VerificationRateLimited) {
		deps.Warn("verification limiter unavailable", "scope", scope, "error", err)
	}
	deps.MetricInc(deps.Metrics.VerificationRateLimited)
	deps.EmitRateLimit(ctx, scope, accountID)
	return deps.Errors.VerificationRateLimited
}
