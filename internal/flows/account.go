package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/ledgerAuth/store"
)

// RegisterRequest is the self-service registration input.
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

// CreateMemberRequest is an admin-driven account creation inside the actor's
// organization.
type CreateMemberRequest struct {
	ActorID        string
	OrganizationID string
	Email          string
	Password       string
	Name           string
	Role           string
}

// AccountDeps captures registration dependencies.
type AccountDeps struct {
	Common

	DefaultRole string
	OwnerRole   string

	ValidatePolicy func(string) error
	HashPassword   func(string) (string, error)
	NewID          func() string
	RoleExists     func(string) bool
	CreateAccount  func(context.Context, store.CreateAccountInput) (store.Account, error)
}

func (d *AccountDeps) ready() bool {
	return d.ValidatePolicy != nil && d.HashPassword != nil && d.NewID != nil &&
		d.RoleExists != nil && d.CreateAccount != nil
}

// RunRegister creates an account that founds a new organization and holds
// the owner role there. Joining an existing organization goes through
// RunCreateMember.
func RunRegister(ctx context.Context, req RegisterRequest, deps AccountDeps) (store.Account, error) {
	deps.fill()
	if !deps.ready() {
		return store.Account{}, deps.Errors.EngineNotReady
	}

	acc, err := createAccount(ctx, deps, store.CreateAccountInput{
		Email:          req.Email,
		Name:           req.Name,
		OrganizationID: deps.NewID(),
		Role:           deps.OwnerRole,
	}, req.Password)
	if err != nil {
		return store.Account{}, err
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.AccountCreated, true, acc.AccountID, acc.OrganizationID, nil, func() map[string]string {
		return map[string]string{"role": acc.Role, "source": "register"}
	})
	return acc, nil
}

// RunCreateMember creates an account inside req.OrganizationID. An empty role
// falls back to the default member role. The caller authorizes the actor.
func RunCreateMember(ctx context.Context, req CreateMemberRequest, deps AccountDeps) (store.Account, error) {
	deps.fill()
	if !deps.ready() {
		return store.Account{}, deps.Errors.EngineNotReady
	}
	if strings.TrimSpace(req.OrganizationID) == "" {
		return store.Account{}, deps.Errors.Validation
	}
	if req.Role == "" {
		req.Role = deps.DefaultRole
	}
	if !deps.RoleExists(req.Role) {
		return store.Account{}, deps.Errors.AccountRoleInvalid
	}

	acc, err := createAccount(ctx, deps, store.CreateAccountInput{
		Email:          req.Email,
		Name:           req.Name,
		OrganizationID: req.OrganizationID,
		Role:           req.Role,
		CreatedBy:      req.ActorID,
	}, req.Password)
	if err != nil {
		return store.Account{}, err
	}

	deps.MetricInc(deps.Metrics.MemberCreated)
	deps.EmitAudit(ctx, deps.Events.AccountCreated, true, acc.AccountID, acc.OrganizationID, nil, func() map[string]string {
		return map[string]string{"role": acc.Role, "source": "member", "actor": req.ActorID}
	})
	return acc, nil
}

func createAccount(ctx context.Context, deps AccountDeps, in store.CreateAccountInput, password string) (store.Account, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Email == "" || password == "" || in.Name == "" {
		return store.Account{}, deps.Errors.Validation
	}
	if err := deps.ValidatePolicy(password); err != nil {
		return store.Account{}, deps.Errors.PasswordPolicy
	}

	hash, err := deps.HashPassword(password)
	if err != nil {
		return store.Account{}, fmt.Errorf("hash password: %w", err)
	}
	in.PasswordHash = hash
	in.AccountID = deps.NewID()
	if in.CreatedBy == "" {
		in.CreatedBy = in.AccountID
	}

	acc, err := deps.CreateAccount(ctx, in)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.AccountCreated, false, "", in.OrganizationID, deps.Errors.AccountExists, nil)
			return store.Account{}, deps.Errors.AccountExists
		}
		return store.Account{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	return acc, nil
}

// storeError maps a store failure on a single-account lookup or update.
func storeError(err error, errs Errors) error {
	if errors.Is(err, store.ErrNotFound) {
		return errs.AccountNotFound
	}
	return fmt.Errorf("%w: %v", errs.StoreUnavailable, err)
}
