package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/ledgerAuth/store"
)

// AuthzDeps captures authorization and member-management dependencies.
type AuthzDeps struct {
	Common

	GetAccountByID func(context.Context, string) (store.Account, error)
	UpdateRole     func(ctx context.Context, accountID, role, updatedBy string) error
	SetActive      func(ctx context.Context, accountID string, active bool, updatedBy string) error
	ListMembers    func(ctx context.Context, organizationID string) ([]store.Account, error)

	// RoleHas reports whether role grants perm and whether perm is a
	// registered permission at all.
	RoleHas    func(role, perm string) (granted, known bool)
	RoleExists func(string) bool
}

// RunAuthorizeRole loads the account fresh and checks its role against the
// allowed set.
func RunAuthorizeRole(ctx context.Context, accountID string, allowed []string, deps AuthzDeps) error {
	deps.fill()
	if deps.GetAccountByID == nil {
		return deps.Errors.EngineNotReady
	}

	acc, err := currentAccount(ctx, accountID, deps)
	if err != nil {
		return err
	}
	for _, role := range allowed {
		if acc.Role == role {
			return nil
		}
	}
	return denied(ctx, deps, acc, func() map[string]string {
		return map[string]string{"role": acc.Role, "allowed": strings.Join(allowed, ",")}
	})
}

// RunAuthorizePermission loads the account fresh and checks its role mask.
// An unregistered permission is denied.
func RunAuthorizePermission(ctx context.Context, accountID, perm string, deps AuthzDeps) error {
	deps.fill()
	if deps.GetAccountByID == nil || deps.RoleHas == nil {
		return deps.Errors.EngineNotReady
	}

	acc, err := currentAccount(ctx, accountID, deps)
	if err != nil {
		return err
	}
	granted, known := deps.RoleHas(acc.Role, perm)
	if !known {
		deps.Warn("authorization check for unknown permission", "permission", perm)
	}
	if granted {
		return nil
	}
	return denied(ctx, deps, acc, func() map[string]string {
		return map[string]string{"role": acc.Role, "permission": perm}
	})
}

// RunChangeRole assigns role to a member of the actor's organization.
func RunChangeRole(ctx context.Context, actorID, organizationID, targetID, role string, deps AuthzDeps) error {
	deps.fill()
	if deps.GetAccountByID == nil || deps.UpdateRole == nil || deps.RoleExists == nil {
		return deps.Errors.EngineNotReady
	}
	if !deps.RoleExists(role) {
		return deps.Errors.AccountRoleInvalid
	}

	target, err := memberOf(ctx, organizationID, targetID, deps)
	if err != nil {
		return err
	}
	if err := deps.UpdateRole(ctx, target.AccountID, role, actorID); err != nil {
		return storeError(err, deps.Errors)
	}

	deps.MetricInc(deps.Metrics.RoleChanged)
	deps.EmitAudit(ctx, deps.Events.RoleChanged, true, target.AccountID, organizationID, nil, func() map[string]string {
		return map[string]string{"actor": actorID, "from": target.Role, "to": role}
	})
	return nil
}

// RunSetAccountActive toggles a member's status inside the actor's
// organization.
func RunSetAccountActive(ctx context.Context, actorID, organizationID, targetID string, active bool, deps AuthzDeps) error {
	deps.fill()
	if deps.GetAccountByID == nil || deps.SetActive == nil {
		return deps.Errors.EngineNotReady
	}
	if actorID == targetID && !active {
		return deps.Errors.Forbidden
	}

	target, err := memberOf(ctx, organizationID, targetID, deps)
	if err != nil {
		return err
	}
	if err := deps.SetActive(ctx, target.AccountID, active, actorID); err != nil {
		return storeError(err, deps.Errors)
	}

	deps.MetricInc(deps.Metrics.AccountStatusChanged)
	deps.EmitAudit(ctx, deps.Events.AccountStatusChanged, true, target.AccountID, organizationID, nil, func() map[string]string {
		return map[string]string{"actor": actorID, "active": fmt.Sprint(active)}
	})
	return nil
}

// RunListMembers returns the accounts of one organization.
func RunListMembers(ctx context.Context, organizationID string, deps AuthzDeps) ([]store.Account, error) {
	deps.fill()
	if deps.ListMembers == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if strings.TrimSpace(organizationID) == "" {
		return nil, deps.Errors.Forbidden
	}
	members, err := deps.ListMembers(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	return members, nil
}

// currentAccount loads the caller. A vanished or inactive account is denied.
func currentAccount(ctx context.Context, accountID string, deps AuthzDeps) (store.Account, error) {
	acc, err := deps.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deps.MetricInc(deps.Metrics.AuthorizationDenied)
			return store.Account{}, deps.Errors.Forbidden
		}
		return store.Account{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	if !acc.Active {
		return store.Account{}, denied(ctx, deps, acc, reason("inactive"))
	}
	return acc, nil
}

// memberOf loads a target account and hides accounts of other organizations.
func memberOf(ctx context.Context, organizationID, targetID string, deps AuthzDeps) (store.Account, error) {
	target, err := deps.GetAccountByID(ctx, targetID)
	if err != nil {
		return store.Account{}, storeError(err, deps.Errors)
	}
	if organizationID == "" || target.OrganizationID != organizationID {
		return store.Account{}, deps.Errors.AccountNotFound
	}
	return target, nil
}

func denied(ctx context.Context, deps AuthzDeps, acc store.Account, meta func() map[string]string) error {
	deps.MetricInc(deps.Metrics.AuthorizationDenied)
	deps.EmitAudit(ctx, deps.Events.AuthorizationDenied, false, acc.AccountID, acc.OrganizationID, deps.Errors.Forbidden, meta)
	return deps.Errors.Forbidden
}
