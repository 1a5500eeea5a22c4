package ledgerAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/ledgerAuth/internal/flows"
	"github.com/MrEthical07/ledgerAuth/internal/limiters"
	"github.com/MrEthical07/ledgerAuth/internal/rate"
	"github.com/MrEthical07/ledgerAuth/mail"
	"github.com/MrEthical07/ledgerAuth/password"
	"github.com/MrEthical07/ledgerAuth/store"
)

func (e *Engine) commonFlowDeps() flows.Common {
	return flows.Common{
		Now: e.now,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		EmitRateLimit: func(ctx context.Context, scope, accountID string) {
			e.emitRateLimit(ctx, scope, accountID)
		},
		Warn: e.warn,
		Metrics: flows.Metrics{
			LoginSuccess:              int(MetricLoginSuccess),
			LoginFailure:              int(MetricLoginFailure),
			LoginRateLimited:          int(MetricLoginRateLimited),
			LoginSecondFactorRequired: int(MetricLoginSecondFactorRequired),
			RegisterSuccess:           int(MetricRegisterSuccess),
			RegisterDuplicate:         int(MetricRegisterDuplicate),
			MemberCreated:             int(MetricMemberCreated),
			TOTPSecretGenerated:       int(MetricTOTPSecretGenerated),
			TOTPEnabled:               int(MetricTOTPEnabled),
			TOTPEnableFailure:         int(MetricTOTPEnableFailure),
			TOTPLoginSuccess:          int(MetricTOTPLoginSuccess),
			TOTPLoginFailure:          int(MetricTOTPLoginFailure),
			TOTPDisabled:              int(MetricTOTPDisabled),
			TOTPCodeSent:              int(MetricTOTPCodeSent),
			TOTPCodeSendFailure:       int(MetricTOTPCodeSendFailure),
			RecoveryCodeUsed:          int(MetricRecoveryCodeUsed),
			RecoveryCodeFailed:        int(MetricRecoveryCodeFailed),
			VerificationRateLimited:   int(MetricVerificationRateLimited),
			ChallengeFailure:          int(MetricChallengeFailure),
			PasswordChangeSuccess:     int(MetricPasswordChangeSuccess),
			PasswordChangeInvalidOld:  int(MetricPasswordChangeInvalidOld),
			PasswordChangeReuse:       int(MetricPasswordChangeReuseRejected),
			PasswordRehashed:          int(MetricPasswordRehashed),
			TokenRejected:             int(MetricTokenRejected),
			Logout:                    int(MetricLogout),
			AuthorizationDenied:       int(MetricAuthorizationDenied),
			RoleChanged:               int(MetricRoleChanged),
			AccountStatusChanged:      int(MetricAccountStatusChanged),
		},
		Events: flows.Events{
			LoginSuccess:          auditEventLoginSuccess,
			LoginFailure:          auditEventLoginFailure,
			TOTPSecretGenerated:   auditEventTOTPSecretGenerated,
			TOTPEnabled:           auditEventTOTPEnabled,
			TOTPEnableFailure:     auditEventTOTPEnableFailure,
			TOTPLoginSuccess:      auditEventTOTPLoginSuccess,
			TOTPLoginFailure:      auditEventTOTPLoginFailure,
			RecoveryCodeUsed:      auditEventRecoveryCodeUsed,
			RecoveryCodeFailure:   auditEventRecoveryCodeFailure,
			TOTPCodeSent:          auditEventTOTPCodeSent,
			TOTPDisabled:          auditEventTOTPDisabled,
			PasswordChanged:       auditEventPasswordChanged,
			PasswordChangeFailure: auditEventPasswordChangeFailure,
			AccountCreated:        auditEventAccountCreated,
			RoleChanged:           auditEventRoleChanged,
			AccountStatusChanged:  auditEventAccountStatusChanged,
			AuthorizationDenied:   auditEventAuthorizationDenied,
			Logout:                auditEventLogout,
		},
		Errors: flows.Errors{
			EngineNotReady:            ErrEngineNotReady,
			Validation:                ErrValidation,
			PasswordPolicy:            ErrPasswordPolicy,
			PasswordReuse:             ErrPasswordReuse,
			InvalidCredentials:        ErrInvalidCredentials,
			AccountExists:             ErrAccountExists,
			AccountNotFound:           ErrAccountNotFound,
			AccountRoleInvalid:        ErrAccountRoleInvalid,
			AccountInactive:           ErrAccountInactive,
			TokenInvalid:              ErrTokenInvalid,
			Forbidden:                 ErrForbidden,
			InvalidCode:               ErrInvalidCode,
			InvalidRecoveryCode:       ErrInvalidRecoveryCode,
			TOTPNotConfigured:         ErrTOTPNotConfigured,
			TOTPNotEnabled:            ErrTOTPNotEnabled,
			TOTPAlreadyEnabled:        ErrTOTPAlreadyEnabled,
			ChallengeInvalid:          ErrChallengeInvalid,
			ChallengeAttemptsExceeded: ErrChallengeAttemptsExceeded,
			LoginRateLimited:          ErrLoginRateLimited,
			VerificationRateLimited:   ErrVerificationRateLimited,
			SendCodeRateLimited:       ErrSendCodeRateLimited,
			DeliveryUnavailable:       ErrDeliveryUnavailable,
			StoreUnavailable:          ErrStoreUnavailable,
			SecretUnavailable:         ErrSecretUnavailable,
			DenyListUnavailable:       ErrDenyListUnavailable,
		},
	}
}

func (e *Engine) accountFlowDeps() flows.AccountDeps {
	return flows.AccountDeps{
		Common:         e.commonFlowDeps(),
		DefaultRole:    e.config.Account.DefaultRole,
		OwnerRole:      e.config.Account.OwnerRole,
		ValidatePolicy: password.ValidatePolicy,
		HashPassword:   e.passwordHash.Hash,
		NewID:          newID,
		RoleExists:     e.roleExists,
		CreateAccount:  e.store.CreateAccount,
	}
}

func (e *Engine) loginFlowDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		Common:             e.commonFlowDeps(),
		UpgradeOnLogin:     e.config.Password.UpgradeOnLogin,
		DummyHash:          e.dummyHash,
		ClientIP:           clientIPFromContext,
		GetAccountByEmail:  e.store.GetAccountByEmail,
		UpdatePasswordHash: e.store.UpdatePasswordHash,
		VerifyPassword:     e.passwordHash.Verify,
		NeedsUpgrade:       e.passwordHash.NeedsUpgrade,
		HashPassword:       e.passwordHash.Hash,
		IssueToken:         e.IssueSessionToken,
	}
	if e.loginLimiter != nil {
		deps.CheckLoginRate = func(ctx context.Context, email, ip string) error {
			return mapLoginRate(e.loginLimiter.CheckLogin(ctx, email, ip))
		}
		deps.IncrementLoginRate = func(ctx context.Context, email, ip string) error {
			return mapLoginRate(e.loginLimiter.IncrementLogin(ctx, email, ip))
		}
		deps.ResetLoginRate = e.loginLimiter.ResetLogin
	}
	if e.challenges != nil {
		deps.CreateChallenge = e.createChallenge
	}
	if e.config.TOTP.SendCodeOnLogin {
		sf := e.secondFactorFlowDeps()
		deps.SendLoginCode = func(ctx context.Context, acc store.Account) error {
			return flows.DeliverCode(ctx, sf, acc)
		}
	}
	return deps
}

func (e *Engine) secondFactorFlowDeps() flows.SecondFactorDeps {
	deps := flows.SecondFactorDeps{
		Common:               e.commonFlowDeps(),
		RequireChallenge:     e.challenges != nil,
		RecoveryCodeCount:    e.config.RecoveryCodes.Count,
		RecoveryCodeLen:      e.config.RecoveryCodes.Length,
		GetAccountByID:       e.store.GetAccountByID,
		GetAccountByEmail:    e.store.GetAccountByEmail,
		SetPendingTOTPSecret: e.store.SetPendingTOTPSecret,
		EnableTOTP:           e.store.EnableTOTP,
		DisableTOTP:          e.store.DisableTOTP,
		ConsumeRecoveryCode:  e.store.ConsumeRecoveryCode,
		GenerateSecret: func(accountName string) (string, string, error) {
			s, err := e.otp.GenerateSecret(accountName)
			if err != nil {
				return "", "", err
			}
			return s.Encoded, s.ProvisioningURI, nil
		},
		ComputeCode: func(secret string) (string, error) {
			return e.otp.ComputeCode(secret, e.now())
		},
		VerifyCode: func(secret, code string) (bool, error) {
			return e.otp.VerifyCode(secret, code, e.now())
		},
		SealSecret: e.sealer.Seal,
		OpenSecret: e.sealer.Open,
		SendCode:   e.sendCodeMail,
		IssueToken: e.IssueSessionToken,
	}
	if e.codeLimiter != nil {
		deps.CheckVerification = func(ctx context.Context, scope, email string) error {
			return mapVerification(e.verificationLimiter(scope).Check(ctx, email))
		}
		deps.RecordVerificationFail = func(ctx context.Context, scope, email string) error {
			return mapVerification(e.verificationLimiter(scope).RecordFailure(ctx, email))
		}
		deps.ResetVerification = func(ctx context.Context, scope, email string) error {
			return e.verificationLimiter(scope).Reset(ctx, email)
		}
	}
	if e.sendCodeLimiter != nil {
		deps.AllowSendCode = func(ctx context.Context, email string) error {
			err := e.sendCodeLimiter.Allow(ctx, email)
			if errors.Is(err, limiters.ErrSendCodeRateLimited) {
				return ErrSendCodeRateLimited
			}
			return err
		}
	}
	if e.challenges != nil {
		deps.CheckChallenge = e.checkChallenge
		deps.FailChallenge = e.failChallenge
		deps.CompleteChallenge = e.completeChallenge
	}
	return deps
}

func (e *Engine) passwordFlowDeps() flows.PasswordDeps {
	return flows.PasswordDeps{
		Common:             e.commonFlowDeps(),
		GetAccountByID:     e.store.GetAccountByID,
		UpdatePasswordHash: e.store.UpdatePasswordHash,
		VerifyPassword:     e.passwordHash.Verify,
		HashPassword:       e.passwordHash.Hash,
		ValidatePolicy:     password.ValidatePolicy,
	}
}

func (e *Engine) authzFlowDeps() flows.AuthzDeps {
	return flows.AuthzDeps{
		Common:         e.commonFlowDeps(),
		GetAccountByID: e.store.GetAccountByID,
		UpdateRole:     e.store.UpdateRole,
		SetActive:      e.store.SetActive,
		ListMembers:    e.store.ListAccountsByOrganization,
		RoleHas: func(role, perm string) (bool, bool) {
			if _, known := e.registry.Bit(perm); !known {
				return false, false
			}
			return e.roleManager.Has(role, perm), true
		},
		RoleExists: e.roleExists,
	}
}

func (e *Engine) sessionFlowDeps() flows.SessionDeps {
	deps := flows.SessionDeps{
		Common: e.commonFlowDeps(),
		Verify: e.jwtManager.Verify,
	}
	if e.denyList != nil {
		deps.IsRevoked = e.denyList.IsRevoked
		deps.Revoke = e.denyList.Revoke
	}
	return deps
}

func (e *Engine) verificationLimiter(scope string) *limiters.VerificationLimiter {
	if scope == flows.ScopeRecoveryCode {
		return e.recoveryLimiter
	}
	return e.codeLimiter
}

func (e *Engine) sendCodeMail(ctx context.Context, to, code string) error {
	return e.mailer.Send(ctx, mail.Message{
		To:      to,
		Subject: "Your verification code",
		Body: fmt.Sprintf("Your %s verification code is %s. It is valid for %s.",
			e.config.TOTP.Issuer, code, time.Duration(e.config.TOTP.Period)*time.Second),
		Kind: mail.KindLoginCode,
	})
}

func (e *Engine) roleExists(role string) bool {
	_, ok := e.roleManager.GetMask(role)
	return ok
}

func mapLoginRate(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrLoginRateLimited
	}
	return err
}

func mapVerification(err error) error {
	if errors.Is(err, limiters.ErrVerificationRateLimited) {
		return ErrVerificationRateLimited
	}
	return err
}
