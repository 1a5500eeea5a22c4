package ledgerAuth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/MrEthical07/ledgerAuth/internal/stores"
)

const challengeIDBytes = 16

func (e *Engine) createChallenge(ctx context.Context, acc AccountRecord) (string, error) {
	raw := make([]byte, challengeIDBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	id := base64.RawURLEncoding.EncodeToString(raw)

	ttl := e.config.Security.ChallengeTTL
	err := e.challenges.Save(ctx, id, &stores.LoginChallenge{
		AccountID:      acc.AccountID,
		OrganizationID: acc.OrganizationID,
		ExpiresAt:      e.now().Add(ttl).Unix(),
	}, ttl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return id, nil
}

// checkChallenge requires a live challenge bound to accountID.
func (e *Engine) checkChallenge(ctx context.Context, challengeID, accountID string) error {
	record, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		return mapChallengeError(err)
	}
	if record.AccountID != accountID {
		return ErrChallengeInvalid
	}
	return nil
}

func (e *Engine) failChallenge(ctx context.Context, challengeID string) error {
	exceeded, err := e.challenges.RecordFailure(ctx, challengeID, e.config.Security.MaxChallengeAttempts)
	if err != nil {
		return mapChallengeError(err)
	}
	if exceeded {
		return ErrChallengeAttemptsExceeded
	}
	return nil
}

// completeChallenge deletes the challenge. Losing the delete to a concurrent
// request means the challenge was already spent.
func (e *Engine) completeChallenge(ctx context.Context, challengeID string) error {
	deleted, err := e.challenges.Delete(ctx, challengeID)
	if err != nil {
		return mapChallengeError(err)
	}
	if !deleted {
		return ErrChallengeInvalid
	}
	return nil
}

func mapChallengeError(err error) error {
	switch {
	case errors.Is(err, stores.ErrChallengeNotFound), errors.Is(err, stores.ErrChallengeExpired):
		return ErrChallengeInvalid
	default:
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
}
