package ledgerAuth

import (
	"context"

	"github.com/MrEthical07/ledgerAuth/internal/flows"
)

// GenerateSecret starts 2FA setup for the session's account and returns the
// secret and provisioning URI. Any earlier pending secret is replaced.
//
// GenerateSecret returns ErrTOTPAlreadyEnabled when the second factor is
// already active; it must be disabled first.
func (e *Engine) GenerateSecret(ctx context.Context, claims *SessionClaims) (*SecretSetup, error) {
	if claims == nil {
		return nil, ErrUnauthorized
	}
	setup, err := flows.RunGenerateSecret(ctx, claims.UserID, e.secondFactorFlowDeps())
	if err != nil {
		return nil, err
	}

	out := &SecretSetup{Secret: setup.Secret, OTPAuthURL: setup.OTPAuthURL}
	if e.config.TOTP.IncludeQRCode {
		png, err := e.otp.QRCodePNG(setup.OTPAuthURL, e.config.TOTP.QRCodeSize)
		if err != nil {
			e.warn("qr code rendering failed", "error", err)
		} else {
			out.QRCodePNG = png
		}
	}
	return out, nil
}

// VerifyEnable checks code against the pending secret, enables the second
// factor and returns the plaintext recovery codes. They are never retrievable
// again.
//
// It returns ErrTOTPNotConfigured without a pending secret, ErrInvalidCode on
// a mismatch or a replaced secret, and ErrTOTPAlreadyEnabled when another
// request enabled the factor first.
func (e *Engine) VerifyEnable(ctx context.Context, claims *SessionClaims, code string) ([]string, error) {
	if claims == nil {
		return nil, ErrUnauthorized
	}
	return flows.RunVerifyEnable(ctx, claims.UserID, code, e.secondFactorFlowDeps())
}

// VerifyLoginCode completes a pending login with a TOTP code and issues a
// fully verified token. The unverified token from Login stays valid until it
// expires.
func (e *Engine) VerifyLoginCode(ctx context.Context, in VerifyLoginCodeInput) (*VerifiedSession, error) {
	res, err := flows.RunVerifyLoginCode(ctx, in.Email, in.Code, in.ChallengeID, e.secondFactorFlowDeps())
	if err != nil {
		return nil, err
	}
	return verifiedSession(res), nil
}

// SendCode mails the current code to an account with 2FA enabled.
func (e *Engine) SendCode(ctx context.Context, email string) error {
	return flows.RunSendCode(ctx, email, e.secondFactorFlowDeps())
}

// DisableTOTP turns the second factor off and deletes its secret and every
// recovery code. The session must be fully verified.
func (e *Engine) DisableTOTP(ctx context.Context, claims *SessionClaims) error {
	if err := requireVerified(claims); err != nil {
		return err
	}
	return flows.RunDisableTOTP(ctx, claims.UserID, e.secondFactorFlowDeps())
}

func verifiedSession(res *flows.VerifiedResult) *VerifiedSession {
	return &VerifiedSession{
		Token:     res.Token,
		AccountID: res.Account.AccountID,
		Email:     res.Account.Email,
	}
}
