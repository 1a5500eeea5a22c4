package ledgerAuth

import (
	"github.com/MrEthical07/ledgerAuth/jwt"
	"github.com/MrEthical07/ledgerAuth/store"
)

// AccountRecord is the persisted identity record.
type AccountRecord = store.Account

// CredentialStore is the persistence contract the engine depends on. The
// store/redisstore and store/pgstore packages implement it.
type CredentialStore = store.Store

// SessionClaims is the verified claim set of a session token.
type SessionClaims = jwt.SessionClaims

// Store sentinels, re-exported for CredentialStore implementations.
var (
	ErrStoreNotFound  = store.ErrNotFound
	ErrStoreDuplicate = store.ErrDuplicate
	ErrStoreConflict  = store.ErrConflict
)

// RegisterInput is the self-service registration payload. Every
// registration founds a new organization.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// CreateMemberInput describes an account an admin creates in their own
// organization.
type CreateMemberInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// LoginResult is returned by a successful password login.
type LoginResult struct {
	Token         string
	AccountID     string
	Email         string
	Requires2FA   bool
	Is2FAVerified bool
	// ChallengeID is set only when login challenges are required.
	ChallengeID string
}

// VerifiedSession is returned by a successful second-factor step-up.
type VerifiedSession struct {
	Token     string
	AccountID string
	Email     string
}

// SecretSetup is shown to the user once when 2FA setup starts.
type SecretSetup struct {
	Secret     string
	OTPAuthURL string
	// QRCodePNG is set when TOTP.IncludeQRCode is on.
	QRCodePNG []byte
}

// VerifyLoginCodeInput completes a pending login with a TOTP code.
type VerifyLoginCodeInput struct {
	Email       string
	Code        string
	ChallengeID string
}

// VerifyRecoveryCodeInput completes a pending login with a recovery code.
type VerifyRecoveryCodeInput struct {
	Email       string
	Code        string
	ChallengeID string
}
