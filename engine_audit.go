package ledgerAuth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventTOTPSecretGenerated   = "totp_secret_generated"
	auditEventTOTPEnabled           = "totp_enabled"
	auditEventTOTPEnableFailure     = "totp_enable_failure"
	auditEventTOTPLoginSuccess      = "totp_login_success"
	auditEventTOTPLoginFailure      = "totp_login_failure"
	auditEventRecoveryCodeUsed      = "recovery_code_used"
	auditEventRecoveryCodeFailure   = "recovery_code_failure"
	auditEventTOTPCodeSent          = "totp_code_sent"
	auditEventTOTPDisabled          = "totp_disabled"
	auditEventPasswordChanged       = "password_changed"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventAccountCreated        = "account_created"
	auditEventRoleChanged           = "role_changed"
	auditEventAccountStatusChanged  = "account_status_changed"
	auditEventAuthorizationDenied   = "authorization_denied"
	auditEventRateLimited           = "rate_limited"
	auditEventLogout                = "logout"
)

// auditRetained lists the events that record a credential or privilege
// change, or a denial. The dispatcher waits for room rather than dropping
// them.
var auditRetained = []string{
	auditEventLoginFailure,
	auditEventRecoveryCodeUsed,
	auditEventRecoveryCodeFailure,
	auditEventTOTPDisabled,
	auditEventPasswordChanged,
	auditEventRoleChanged,
	auditEventAccountStatusChanged,
	auditEventAuthorizationDenied,
}

// AuditErrorCode is the stable, non-sensitive error label attached to failed
// audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrRoleInvalid        AuditErrorCode = "role_invalid"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrTwoFactorRequired  AuditErrorCode = "two_factor_required"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrRecoveryInvalid    AuditErrorCode = "recovery_code_invalid"
	auditErrTOTPState          AuditErrorCode = "totp_state"
	auditErrChallengeInvalid   AuditErrorCode = "challenge_invalid"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrDelivery           AuditErrorCode = "delivery_failed"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	organizationID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:      e.now().UTC(),
		EventType:      eventType,
		AccountID:      accountID,
		OrganizationID: organizationID,
		RequestID:      requestIDFromContext(ctx),
		IP:             clientIPFromContext(ctx),
		Success:        success,
		Metadata:       metadata,
	}
	if claims := claimsFromContext(ctx); claims != nil {
		event.TokenID = claims.TokenID()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, accountID string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimited, false, accountID, "", nil, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return auditErrValidation
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountRoleInvalid):
		return auditErrRoleInvalid
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrAccountInactive):
		return auditErrUnauthorized
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrTwoFactorRequired):
		return auditErrTwoFactorRequired
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrInvalidRecoveryCode):
		return auditErrRecoveryInvalid
	case errors.Is(err, ErrTOTPNotConfigured),
		errors.Is(err, ErrTOTPNotEnabled),
		errors.Is(err, ErrTOTPAlreadyEnabled):
		return auditErrTOTPState
	case errors.Is(err, ErrChallengeInvalid):
		return auditErrChallengeInvalid
	case errors.Is(err, ErrChallengeAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrVerificationRateLimited),
		errors.Is(err, ErrSendCodeRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrDeliveryUnavailable):
		return auditErrDelivery
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrSecretUnavailable),
		errors.Is(err, ErrChallengeUnavailable),
		errors.Is(err, ErrDenyListUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
