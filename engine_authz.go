package ledgerAuth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/ledgerAuth/internal/flows"
	"github.com/MrEthical07/ledgerAuth/store"
)

// AuthorizeRole loads the account's current role from the store and returns
// ErrForbidden unless it is one of allowed.
func (e *Engine) AuthorizeRole(ctx context.Context, accountID string, allowed ...string) error {
	return flows.RunAuthorizeRole(ctx, accountID, allowed, e.authzFlowDeps())
}

// AuthorizePermission loads the account's current role from the store and
// checks it against the role table. Unknown permissions are denied.
func (e *Engine) AuthorizePermission(ctx context.Context, accountID, perm string) error {
	return flows.RunAuthorizePermission(ctx, accountID, perm, e.authzFlowDeps())
}

// HasPermission reports whether role grants perm. It does no I/O.
func (e *Engine) HasPermission(role, perm string) bool {
	if e == nil || e.roleManager == nil {
		return false
	}
	return e.roleManager.Has(role, perm)
}

// AuthorizeOrganization returns ErrForbidden unless the session belongs to
// organizationID.
func (e *Engine) AuthorizeOrganization(claims *SessionClaims, organizationID string) error {
	if claims == nil {
		return ErrUnauthorized
	}
	if organizationID == "" || claims.OrganizationID != organizationID {
		e.metricInc(MetricAuthorizationDenied)
		return ErrForbidden
	}
	return nil
}

// ChangeRole assigns role to a member of the actor's organization. The
// actor needs user:update. Accounts of other organizations are reported as
// ErrAccountNotFound.
func (e *Engine) ChangeRole(ctx context.Context, actor *SessionClaims, targetID, role string) error {
	if actor == nil {
		return ErrUnauthorized
	}
	if err := e.AuthorizePermission(ctx, actor.UserID, "user:update"); err != nil {
		return err
	}
	return flows.RunChangeRole(ctx, actor.UserID, actor.OrganizationID, targetID, role, e.authzFlowDeps())
}

// SetAccountActive activates or deactivates a member of the actor's
// organization. Inactive accounts cannot log in or step up. Actors cannot
// deactivate themselves.
func (e *Engine) SetAccountActive(ctx context.Context, actor *SessionClaims, targetID string, active bool) error {
	if actor == nil {
		return ErrUnauthorized
	}
	if err := e.AuthorizePermission(ctx, actor.UserID, "user:update"); err != nil {
		return err
	}
	return flows.RunSetAccountActive(ctx, actor.UserID, actor.OrganizationID, targetID, active, e.authzFlowDeps())
}

// ListMembers returns the accounts of the actor's organization with
// credential material removed. The actor needs user:read.
func (e *Engine) ListMembers(ctx context.Context, actor *SessionClaims) ([]AccountRecord, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if err := e.AuthorizePermission(ctx, actor.UserID, "user:read"); err != nil {
		return nil, err
	}
	members, err := flows.RunListMembers(ctx, actor.OrganizationID, e.authzFlowDeps())
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i] = redactAccount(members[i])
	}
	return members, nil
}

func redactAccount(acc AccountRecord) AccountRecord {
	acc.PasswordHash = ""
	acc.TOTPSecret = nil
	acc.RecoveryCodes = nil
	return acc
}

func mapStoreError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrAccountNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
