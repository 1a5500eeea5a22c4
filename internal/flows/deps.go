package flows

import (
	"context"
	"time"
)

// Metrics carries the metric IDs flows increment.
type Metrics struct {
	LoginSuccess              int
	LoginFailure              int
	LoginRateLimited          int
	LoginSecondFactorRequired int
	RegisterSuccess           int
	RegisterDuplicate         int
	MemberCreated             int
	TOTPSecretGenerated       int
	TOTPEnabled               int
	TOTPEnableFailure         int
	TOTPLoginSuccess          int
	TOTPLoginFailure          int
	TOTPDisabled              int
	TOTPCodeSent              int
	TOTPCodeSendFailure       int
	RecoveryCodeUsed          int
	RecoveryCodeFailed        int
	VerificationRateLimited   int
	ChallengeFailure          int
	PasswordChangeSuccess     int
	PasswordChangeInvalidOld  int
	PasswordChangeReuse       int
	PasswordRehashed          int
	TokenRejected             int
	Logout                    int
	AuthorizationDenied       int
	RoleChanged               int
	AccountStatusChanged      int
}

// Events carries audit event names.
type Events struct {
	LoginSuccess          string
	LoginFailure          string
	TOTPSecretGenerated   string
	TOTPEnabled           string
	TOTPEnableFailure     string
	TOTPLoginSuccess      string
	TOTPLoginFailure      string
	RecoveryCodeUsed      string
	RecoveryCodeFailure   string
	TOTPCodeSent          string
	TOTPDisabled          string
	PasswordChanged       string
	PasswordChangeFailure string
	AccountCreated        string
	RoleChanged           string
	AccountStatusChanged  string
	AuthorizationDenied   string
	Logout                string
}

// Errors carries the host-level sentinel errors flows return.
type Errors struct {
	EngineNotReady            error
	Validation                error
	PasswordPolicy            error
	PasswordReuse             error
	InvalidCredentials        error
	AccountExists             error
	AccountNotFound           error
	AccountRoleInvalid        error
	AccountInactive           error
	TokenInvalid              error
	Forbidden                 error
	InvalidCode               error
	InvalidRecoveryCode       error
	TOTPNotConfigured         error
	TOTPNotEnabled            error
	TOTPAlreadyEnabled        error
	ChallengeInvalid          error
	ChallengeAttemptsExceeded error
	LoginRateLimited          error
	VerificationRateLimited   error
	SendCodeRateLimited       error
	DeliveryUnavailable       error
	StoreUnavailable          error
	SecretUnavailable         error
	DenyListUnavailable       error
}

// AuditFunc emits one audit event. meta is evaluated only when audit is on.
type AuditFunc func(ctx context.Context, event string, success bool, accountID, organizationID string, err error, meta func() map[string]string)

// Common holds the clock and observability hooks shared by every flow.
type Common struct {
	Now           func() time.Time
	MetricInc     func(int)
	EmitAudit     AuditFunc
	EmitRateLimit func(ctx context.Context, scope, accountID string)
	Warn          func(msg string, keysAndValues ...any)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (c *Common) fill() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.MetricInc == nil {
		c.MetricInc = func(int) {}
	}
	if c.EmitAudit == nil {
		c.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if c.EmitRateLimit == nil {
		c.EmitRateLimit = func(context.Context, string, string) {}
	}
	if c.Warn == nil {
		c.Warn = func(string, ...any) {}
	}
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
