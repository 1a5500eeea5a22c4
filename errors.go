package ledgerAuth

import "errors"

var (
	// ErrEngineNotReady is returned when a required dependency was not wired.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidInput is an exported constant or variable used by the authentication engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrValidation is an exported constant or variable used by the authentication engine.
	ErrValidation = errors.New("missing required fields")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password must be 8-50 characters and include upper and lower case letters, a digit and a symbol")
	// ErrPasswordReuse is an exported constant or variable used by the authentication engine.
	ErrPasswordReuse = errors.New("new password must differ from the current password")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is an exported constant or variable used by the authentication engine.
	ErrAccountExists = errors.New("an account with this email already exists")
	// ErrAccountNotFound is an exported constant or variable used by the authentication engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountRoleInvalid is an exported constant or variable used by the authentication engine.
	ErrAccountRoleInvalid = errors.New("invalid account role")
	// ErrAccountInactive is returned when an inactive account attempts a step-up.
	ErrAccountInactive = errors.New("account inactive")

	// ErrTokenInvalid covers malformed, forged and expired session tokens alike.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrUnauthorized is an exported constant or variable used by the authentication engine.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is an exported constant or variable used by the authentication engine.
	ErrForbidden = errors.New("forbidden")
	// ErrTwoFactorRequired is returned when a route needs a 2FA-verified session.
	ErrTwoFactorRequired = errors.New("2FA verification required")

	// ErrInvalidCode is an exported constant or variable used by the authentication engine.
	ErrInvalidCode = errors.New("invalid code")
	// ErrInvalidRecoveryCode is an exported constant or variable used by the authentication engine.
	ErrInvalidRecoveryCode = errors.New("invalid or used recovery code")
	// ErrTOTPNotConfigured is returned when verify-enable runs without a pending secret.
	ErrTOTPNotConfigured = errors.New("no pending 2FA secret; generate a secret first")
	// ErrTOTPNotEnabled is an exported constant or variable used by the authentication engine.
	ErrTOTPNotEnabled = errors.New("2FA is not enabled for this account")
	// ErrTOTPAlreadyEnabled is an exported constant or variable used by the authentication engine.
	ErrTOTPAlreadyEnabled = errors.New("2FA is already enabled; disable it first")

	// ErrChallengeInvalid is an exported constant or variable used by the authentication engine.
	ErrChallengeInvalid = errors.New("login challenge invalid or expired")
	// ErrChallengeAttemptsExceeded is an exported constant or variable used by the authentication engine.
	ErrChallengeAttemptsExceeded = errors.New("login challenge attempts exceeded")
	// ErrChallengeUnavailable is an exported constant or variable used by the authentication engine.
	ErrChallengeUnavailable = errors.New("login challenge backend unavailable")

	// ErrLoginRateLimited is an exported constant or variable used by the authentication engine.
	ErrLoginRateLimited = errors.New("too many login attempts; try again later")
	// ErrVerificationRateLimited is an exported constant or variable used by the authentication engine.
	ErrVerificationRateLimited = errors.New("too many verification attempts; try again later")
	// ErrSendCodeRateLimited is an exported constant or variable used by the authentication engine.
	ErrSendCodeRateLimited = errors.New("too many code requests; try again later")

	// ErrDeliveryUnavailable is returned when the mailer rejects a code delivery.
	ErrDeliveryUnavailable = errors.New("code delivery unavailable")
	// ErrStoreUnavailable wraps unexpected credential store failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrSecretUnavailable wraps sealing failures on 2FA secret material.
	ErrSecretUnavailable = errors.New("2FA secret unavailable")
	// ErrDenyListUnavailable is an exported constant or variable used by the authentication engine.
	ErrDenyListUnavailable = errors.New("token deny-list backend unavailable")
)
