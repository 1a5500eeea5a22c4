package flows

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

// recoveryAlphabet omits I, O, 0 and 1. Its length divides 256, so masking a
// random byte is unbiased.
const recoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateRecoveryCodes returns count display-formatted codes and their
// digests for accountID.
func GenerateRecoveryCodes(accountID string, count, length int) ([]string, [][32]byte, error) {
	if count <= 0 || length <= 0 {
		return nil, nil, errors.New("recovery code count and length must be positive")
	}

	plain := make([]string, 0, count)
	digests := make([][32]byte, 0, count)
	seen := make(map[[32]byte]struct{}, count)
	raw := make([]byte, length)

	for len(plain) < count {
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, fmt.Errorf("generate recovery code: %w", err)
		}
		canonical := make([]byte, length)
		for i, b := range raw {
			canonical[i] = recoveryAlphabet[int(b)&(len(recoveryAlphabet)-1)]
		}
		digest := RecoveryCodeDigest(accountID, string(canonical))
		if _, dup := seen[digest]; dup {
			continue
		}
		seen[digest] = struct{}{}
		plain = append(plain, formatRecoveryCode(string(canonical)))
		digests = append(digests, digest)
	}
	return plain, digests, nil
}

// CanonicalRecoveryCode upper-cases code and drops dashes and spaces.
func CanonicalRecoveryCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(code) {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RecoveryCodeDigest binds a canonical code to its account.
func RecoveryCodeDigest(accountID, canonical string) [32]byte {
	h := sha256.New()
	h.Write([]byte(accountID))
	h.Write([]byte{0})
	h.Write([]byte(canonical))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func formatRecoveryCode(canonical string) string {
	if len(canonical) < 2 {
		return canonical
	}
	half := (len(canonical) + 1) / 2
	return canonical[:half] + "-" + canonical[half:]
}

// RunVerifyRecoveryCode completes a login step-up by consuming one recovery
// code. A code can be consumed only once, and only after the request has
// claimed the login challenge, so a lost challenge never burns a code.
func RunVerifyRecoveryCode(ctx context.Context, email, code, challengeID string, deps SecondFactorDeps) (*VerifiedResult, error) {
	deps.fill()
	if deps.GetAccountByEmail == nil || deps.ConsumeRecoveryCode == nil || deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}
	email = strings.TrimSpace(email)
	canonical := CanonicalRecoveryCode(code)
	if email == "" || canonical == "" {
		return nil, deps.Errors.Validation
	}

	acc, err := beginStepUp(ctx, deps, ScopeRecoveryCode, email, challengeID)
	if err != nil {
		return nil, err
	}
	digest := RecoveryCodeDigest(acc.AccountID, canonical)
	if !holdsRecoveryCode(acc.RecoveryCodes, digest) {
		return nil, failStepUp(ctx, deps, ScopeRecoveryCode, acc, challengeID, deps.Errors.InvalidRecoveryCode,
			deps.Metrics.RecoveryCodeFailed, deps.Events.RecoveryCodeFailure)
	}

	if err := claimChallenge(ctx, deps, challengeID); err != nil {
		return nil, err
	}
	consumed, err := deps.ConsumeRecoveryCode(ctx, acc.AccountID, digest)
	if err != nil {
		return nil, storeError(err, deps.Errors)
	}
	if !consumed {
		// A concurrent request spent the code after it was loaded.
		deps.MetricInc(deps.Metrics.RecoveryCodeFailed)
		deps.EmitAudit(ctx, deps.Events.RecoveryCodeFailure, false, acc.AccountID, acc.OrganizationID, deps.Errors.InvalidRecoveryCode, nil)
		return nil, deps.Errors.InvalidRecoveryCode
	}

	return finishStepUp(ctx, deps, ScopeRecoveryCode, acc,
		deps.Metrics.RecoveryCodeUsed, deps.Events.RecoveryCodeUsed)
}

// holdsRecoveryCode scans every stored digest in constant time.
func holdsRecoveryCode(stored [][32]byte, digest [32]byte) bool {
	found := 0
	for i := range stored {
		found |= subtle.ConstantTimeCompare(stored[i][:], digest[:])
	}
	return found == 1
}
