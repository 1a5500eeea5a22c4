package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/ledgerAuth/jwt"
)

// SessionDeps captures token verification and logout dependencies.
type SessionDeps struct {
	Common

	Verify    func(string) (*jwt.SessionClaims, error)
	IsRevoked func(ctx context.Context, tokenID string) (bool, error)
	Revoke    func(ctx context.Context, tokenID string, ttl time.Duration) error
}

// RunVerifyToken verifies signature and lifetime and, with the deny-list on,
// rejects revoked tokens. Every token failure is the same error.
func RunVerifyToken(ctx context.Context, token string, deps SessionDeps) (*jwt.SessionClaims, error) {
	deps.fill()
	if deps.Verify == nil {
		return nil, deps.Errors.EngineNotReady
	}

	claims, err := deps.Verify(token)
	if err != nil {
		deps.MetricInc(deps.Metrics.TokenRejected)
		return nil, deps.Errors.TokenInvalid
	}
	if deps.IsRevoked != nil {
		revoked, err := deps.IsRevoked(ctx, claims.TokenID())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", deps.Errors.DenyListUnavailable, err)
		}
		if revoked {
			deps.MetricInc(deps.Metrics.TokenRejected)
			return nil, deps.Errors.TokenInvalid
		}
	}
	return claims, nil
}

// RunLogout denies the token until it would have expired. It is a no-op
// when no deny-list is wired.
func RunLogout(ctx context.Context, claims *jwt.SessionClaims, deps SessionDeps) error {
	deps.fill()
	if claims == nil {
		return deps.Errors.TokenInvalid
	}
	if deps.Revoke != nil {
		ttl := claims.ExpiresAtTime().Sub(deps.Now())
		if err := deps.Revoke(ctx, claims.TokenID(), ttl); err != nil {
			return fmt.Errorf("%w: %v", deps.Errors.DenyListUnavailable, err)
		}
	}
	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, claims.UserID, claims.OrganizationID, nil, nil)
	return nil
}
