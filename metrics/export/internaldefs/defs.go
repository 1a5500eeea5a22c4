package internaldefs

import (
	ledgerAuth "github.com/MrEthical07/ledgerAuth"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   ledgerAuth.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   ledgerAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter both exporters publish for dispatcher drops.
const AuditDroppedName = "ledgerauth_audit_dropped_total"

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: ledgerAuth.MetricLoginSuccess, Name: "ledgerauth_login_success_total", Help: "Password logins that issued a token."},
	{ID: ledgerAuth.MetricLoginFailure, Name: "ledgerauth_login_failure_total", Help: "Rejected password logins."},
	{ID: ledgerAuth.MetricLoginRateLimited, Name: "ledgerauth_login_rate_limited_total", Help: "Logins blocked by the login limiter."},
	{ID: ledgerAuth.MetricLoginSecondFactorRequired, Name: "ledgerauth_login_second_factor_required_total", Help: "Logins left pending a second factor."},
	{ID: ledgerAuth.MetricRegisterSuccess, Name: "ledgerauth_register_success_total", Help: "Self-service registrations."},
	{ID: ledgerAuth.MetricRegisterDuplicate, Name: "ledgerauth_register_duplicate_total", Help: "Registrations rejected for a duplicate email."},
	{ID: ledgerAuth.MetricMemberCreated, Name: "ledgerauth_member_created_total", Help: "Accounts created by an administrator."},
	{ID: ledgerAuth.MetricTOTPSecretGenerated, Name: "ledgerauth_totp_secret_generated_total", Help: "Pending 2FA secrets generated."},
	{ID: ledgerAuth.MetricTOTPEnabled, Name: "ledgerauth_totp_enabled_total", Help: "Accounts that enabled 2FA."},
	{ID: ledgerAuth.MetricTOTPEnableFailure, Name: "ledgerauth_totp_enable_failure_total", Help: "Failed 2FA enable attempts."},
	{ID: ledgerAuth.MetricTOTPLoginSuccess, Name: "ledgerauth_totp_login_success_total", Help: "Successful login code verifications."},
	{ID: ledgerAuth.MetricTOTPLoginFailure, Name: "ledgerauth_totp_login_failure_total", Help: "Failed login code verifications."},
	{ID: ledgerAuth.MetricTOTPDisabled, Name: "ledgerauth_totp_disabled_total", Help: "Accounts that disabled 2FA."},
	{ID: ledgerAuth.MetricTOTPCodeSent, Name: "ledgerauth_totp_code_sent_total", Help: "Codes handed to the mailer."},
	{ID: ledgerAuth.MetricTOTPCodeSendFailure, Name: "ledgerauth_totp_code_send_failure_total", Help: "Codes the mailer rejected."},
	{ID: ledgerAuth.MetricRecoveryCodeUsed, Name: "ledgerauth_recovery_code_used_total", Help: "Recovery codes consumed."},
	{ID: ledgerAuth.MetricRecoveryCodeFailed, Name: "ledgerauth_recovery_code_failed_total", Help: "Rejected recovery codes."},
	{ID: ledgerAuth.MetricVerificationRateLimited, Name: "ledgerauth_verification_rate_limited_total", Help: "Verification attempts blocked by a limiter."},
	{ID: ledgerAuth.MetricChallengeFailure, Name: "ledgerauth_challenge_failure_total", Help: "Invalid, expired or exhausted login challenges."},
	{ID: ledgerAuth.MetricPasswordChangeSuccess, Name: "ledgerauth_password_change_success_total", Help: "Successful password changes."},
	{ID: ledgerAuth.MetricPasswordChangeInvalidOld, Name: "ledgerauth_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: ledgerAuth.MetricPasswordChangeReuseRejected, Name: "ledgerauth_password_change_reuse_rejected_total", Help: "Password changes rejected for reuse."},
	{ID: ledgerAuth.MetricPasswordRehashed, Name: "ledgerauth_password_rehashed_total", Help: "Password hashes upgraded at login."},
	{ID: ledgerAuth.MetricTokenIssued, Name: "ledgerauth_token_issued_total", Help: "Session tokens issued."},
	{ID: ledgerAuth.MetricTokenRejected, Name: "ledgerauth_token_rejected_total", Help: "Session tokens rejected at verification."},
	{ID: ledgerAuth.MetricLogout, Name: "ledgerauth_logout_total", Help: "Logout operations."},
	{ID: ledgerAuth.MetricAuthorizationDenied, Name: "ledgerauth_authorization_denied_total", Help: "Role, permission or organization denials."},
	{ID: ledgerAuth.MetricRoleChanged, Name: "ledgerauth_role_changed_total", Help: "Role changes."},
	{ID: ledgerAuth.MetricAccountStatusChanged, Name: "ledgerauth_account_status_changed_total", Help: "Account activations and deactivations."},
	{ID: ledgerAuth.MetricRateLimitHit, Name: "ledgerauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: ledgerAuth.MetricVerifyLatency, Name: "ledgerauth_verify_latency_seconds", Help: "Session token verification latency."},
}

// HistogramBounds are the upper bounds in seconds, matching the engine's bucket layout.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bound in instrument names, which cannot carry dots.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
