package ledgerAuth

import (
	"context"

	"github.com/MrEthical07/ledgerAuth/internal/flows"
)

// VerifyRecoveryCode completes a pending login by consuming one recovery
// code. Codes are matched after upper-casing and removing dashes and spaces.
// A used or unknown code returns ErrInvalidRecoveryCode.
func (e *Engine) VerifyRecoveryCode(ctx context.Context, in VerifyRecoveryCodeInput) (*VerifiedSession, error) {
	res, err := flows.RunVerifyRecoveryCode(ctx, in.Email, in.Code, in.ChallengeID, e.secondFactorFlowDeps())
	if err != nil {
		return nil, err
	}
	return verifiedSession(res), nil
}

// RecoveryCodesRemaining reports how many unused recovery codes the account
// holds.
func (e *Engine) RecoveryCodesRemaining(ctx context.Context, accountID string) (int, error) {
	acc, err := e.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return len(acc.RecoveryCodes), nil
}
