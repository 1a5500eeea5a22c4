// Package store defines the credential store contract consumed by the engine
// and shared by the Redis and Postgres adapters.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("store: account not found")
	// ErrDuplicate is returned when an email is already registered.
	ErrDuplicate = errors.New("store: duplicate email")
	// ErrConflict is returned when a conditional update lost a race.
	ErrConflict = errors.New("store: conflicting update")
)

// Account is the persisted identity record.
type Account struct {
	AccountID      string
	Email          string
	Name           string
	OrganizationID string
	PasswordHash   string
	Role           string
	Active         bool

	TOTPEnabled bool
	// TOTPSecret holds sealed secret material. Nil until setup starts.
	TOTPSecret []byte
	// RecoveryCodes holds digests of the unused recovery codes.
	RecoveryCodes [][32]byte

	CreatedAt time.Time
	UpdatedAt time.Time
	UpdatedBy string
}

// CreateAccountInput carries the fields needed to persist a new account.
type CreateAccountInput struct {
	AccountID      string
	Email          string
	Name           string
	OrganizationID string
	PasswordHash   string
	Role           string
	CreatedBy      string
}

// Store is the credential store. Implementations must serialize conflicting
// writes to the same account.
type Store interface {
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, accountID string) (Account, error)
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	UpdatePasswordHash(ctx context.Context, accountID, hash string) error

	// SetPendingTOTPSecret stores secret with the second factor still disabled,
	// replacing any earlier pending secret.
	SetPendingTOTPSecret(ctx context.Context, accountID string, secret []byte) error
	// EnableTOTP turns the second factor on and replaces the recovery codes,
	// provided the second factor is still off and the stored secret equals
	// expectedSecret. Otherwise it returns ErrConflict and leaves the codes
	// untouched.
	EnableTOTP(ctx context.Context, accountID string, expectedSecret []byte, codes [][32]byte) error
	// DisableTOTP clears the flag, the secret and every recovery code.
	DisableTOTP(ctx context.Context, accountID string) error
	// ConsumeRecoveryCode removes digest from the set and reports whether it
	// was present.
	ConsumeRecoveryCode(ctx context.Context, accountID string, digest [32]byte) (bool, error)

	UpdateRole(ctx context.Context, accountID, role, updatedBy string) error
	SetActive(ctx context.Context, accountID string, active bool, updatedBy string) error
	ListAccountsByOrganization(ctx context.Context, organizationID string) ([]Account, error)
}

// CloneCodes copies a digest slice.
func CloneCodes(codes [][32]byte) [][32]byte {
	if len(codes) == 0 {
		return nil
	}
	out := make([][32]byte, len(codes))
	copy(out, codes)
	return out
}
