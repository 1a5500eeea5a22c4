package ledgerAuth

import (
	"context"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// Account returns the stored account with credential material removed.
func (e *Engine) Account(ctx context.Context, accountID string) (AccountRecord, error) {
	acc, err := e.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return AccountRecord{}, mapStoreError(err)
	}
	return redactAccount(acc), nil
}
