package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrDenyListBackend = errors.New("deny-list backend unavailable")

// DenyList records revoked session token IDs until the token would have
// expired anyway.
type DenyList struct {
	redis  redis.UniversalClient
	prefix string
}

func NewDenyList(redisClient redis.UniversalClient, prefix string) *DenyList {
	if prefix == "" {
		prefix = "deny"
	}
	return &DenyList{redis: redisClient, prefix: prefix}
}

// Revoke denies tokenID for ttl. A non-positive ttl means the token already
// expired and nothing is written.
func (d *DenyList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return fmt.Errorf("%w: empty token id", ErrDenyListBackend)
	}
	if ttl <= 0 {
		return nil
	}
	if err := d.redis.Set(ctx, d.prefix+":"+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDenyListBackend, err)
	}
	return nil
}

func (d *DenyList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := d.redis.Exists(ctx, d.prefix+":"+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDenyListBackend, err)
	}
	return n > 0, nil
}
