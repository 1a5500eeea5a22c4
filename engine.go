package ledgerAuth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/ledgerAuth/internal/audit"
	"github.com/MrEthical07/ledgerAuth/internal/flows"
	"github.com/MrEthical07/ledgerAuth/internal/limiters"
	"github.com/MrEthical07/ledgerAuth/internal/rate"
	"github.com/MrEthical07/ledgerAuth/internal/stores"
	"github.com/MrEthical07/ledgerAuth/jwt"
	"github.com/MrEthical07/ledgerAuth/mail"
	"github.com/MrEthical07/ledgerAuth/password"
	"github.com/MrEthical07/ledgerAuth/permission"
	"github.com/MrEthical07/ledgerAuth/seal"
)

// Engine issues and verifies credentials. Build one with [New].
type Engine struct {
	config      Config
	store       CredentialStore
	registry    *permission.Registry
	roleManager *permission.RoleManager

	passwordHash *password.Hasher
	dummyHash    string
	jwtManager   *jwt.Manager
	otp          *OTPEngine
	sealer       seal.Sealer
	mailer       mail.Mailer

	challenges      *stores.ChallengeStore
	denyList        *stores.DenyList
	loginLimiter    *rate.Limiter
	codeLimiter     *limiters.VerificationLimiter
	recoveryLimiter *limiters.VerificationLimiter
	sendCodeLimiter *limiters.SendCodeLimiter

	audit   *audit.Dispatcher
	metrics *Metrics
	logger  *zap.Logger
	warn    func(msg string, keysAndValues ...any)
	now     func() time.Time
}

// Close stops the audit worker after draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDelivered returns how many audit events reached the sink.
func (e *Engine) AuditDelivered() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Delivered()
}

// MetricsSnapshot returns a point-in-time copy of the in-process metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Register creates an account owning a fresh organization. Members of an
// existing organization are added with CreateMember.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (AccountRecord, error) {
	return flows.RunRegister(ctx, flows.RegisterRequest{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
	}, e.accountFlowDeps())
}

// CreateMember creates an account in the actor's organization. The actor
// needs the user:create permission.
func (e *Engine) CreateMember(ctx context.Context, actor *SessionClaims, in CreateMemberInput) (AccountRecord, error) {
	if actor == nil {
		return AccountRecord{}, ErrUnauthorized
	}
	if err := e.AuthorizePermission(ctx, actor.UserID, "user:create"); err != nil {
		return AccountRecord{}, err
	}
	return flows.RunCreateMember(ctx, flows.CreateMemberRequest{
		ActorID:        actor.UserID,
		OrganizationID: actor.OrganizationID,
		Email:          in.Email,
		Password:       in.Password,
		Name:           in.Name,
		Role:           in.Role,
	}, e.accountFlowDeps())
}

// Login verifies email and password. Accounts with 2FA enabled receive an
// unverified token and Requires2FA.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	res, err := flows.RunLogin(ctx, email, password, e.loginFlowDeps())
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:         res.Token,
		AccountID:     res.Account.AccountID,
		Email:         res.Account.Email,
		Requires2FA:   res.Requires2FA,
		Is2FAVerified: !res.Requires2FA,
		ChallengeID:   res.ChallengeID,
	}, nil
}

// ChangePassword replaces the password of the session's account. The
// session must be fully verified.
func (e *Engine) ChangePassword(ctx context.Context, claims *SessionClaims, current, next string) error {
	if err := requireVerified(claims); err != nil {
		return err
	}
	return flows.RunChangePassword(ctx, claims.UserID, current, next, e.passwordFlowDeps())
}

// IssueSessionToken signs a session token for acc. verified marks the
// session as having passed every factor the account has.
func (e *Engine) IssueSessionToken(acc AccountRecord, verified bool) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	token, err := e.jwtManager.Issue(jwt.SessionClaims{
		UserID:         acc.AccountID,
		Email:          acc.Email,
		OrganizationID: acc.OrganizationID,
		Is2FAEnabled:   acc.TOTPEnabled,
		Is2FAVerified:  verified,
	})
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	e.metricInc(MetricTokenIssued)
	return token, nil
}

// VerifySessionToken checks signature, lifetime and, when the deny-list is
// enabled, revocation. Every token failure is ErrTokenInvalid.
func (e *Engine) VerifySessionToken(ctx context.Context, token string) (*SessionClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricVerifyLatency, time.Since(start)) }()
	}
	return flows.RunVerifyToken(ctx, token, e.sessionFlowDeps())
}

// Logout revokes the token behind claims until it expires. Without the
// deny-list it only records the event.
func (e *Engine) Logout(ctx context.Context, claims *SessionClaims) error {
	return flows.RunLogout(ctx, claims, e.sessionFlowDeps())
}

// requireVerified rejects sessions that still owe a second factor.
func requireVerified(claims *SessionClaims) error {
	if claims == nil {
		return ErrUnauthorized
	}
	if claims.Is2FAEnabled && !claims.Is2FAVerified {
		return ErrTwoFactorRequired
	}
	return nil
}
