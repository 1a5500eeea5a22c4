package flows

import (
	"context"
	"fmt"

	"github.com/MrEthical07/ledgerAuth/store"
)

// PasswordDeps captures change-password dependencies.
type PasswordDeps struct {
	Common

	GetAccountByID     func(context.Context, string) (store.Account, error)
	UpdatePasswordHash func(ctx context.Context, accountID, hash string) error
	VerifyPassword     func(password, hash string) (bool, error)
	HashPassword       func(string) (string, error)
	ValidatePolicy     func(string) error
}

// RunChangePassword replaces the password after verifying the current one.
func RunChangePassword(ctx context.Context, accountID, current, next string, deps PasswordDeps) error {
	deps.fill()
	if deps.GetAccountByID == nil || deps.UpdatePasswordHash == nil || deps.VerifyPassword == nil ||
		deps.HashPassword == nil || deps.ValidatePolicy == nil {
		return deps.Errors.EngineNotReady
	}
	if current == "" || next == "" {
		return deps.Errors.Validation
	}

	acc, err := deps.GetAccountByID(ctx, accountID)
	if err != nil {
		return storeError(err, deps.Errors)
	}

	failed := func(err error, metric int, why string) error {
		deps.MetricInc(metric)
		deps.EmitAudit(ctx, deps.Events.PasswordChangeFailure, false, acc.AccountID, acc.OrganizationID, err, reason(why))
		return err
	}

	ok, err := deps.VerifyPassword(current, acc.PasswordHash)
	if err != nil || !ok {
		return failed(deps.Errors.InvalidCredentials, deps.Metrics.PasswordChangeInvalidOld, "invalid_current")
	}
	if current == next {
		return failed(deps.Errors.PasswordReuse, deps.Metrics.PasswordChangeReuse, "reuse")
	}
	if err := deps.ValidatePolicy(next); err != nil {
		return deps.Errors.PasswordPolicy
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := deps.UpdatePasswordHash(ctx, acc.AccountID, hash); err != nil {
		return storeError(err, deps.Errors)
	}

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChanged, true, acc.AccountID, acc.OrganizationID, nil, nil)
	return nil
}
