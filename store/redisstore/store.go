// Package redisstore keeps credential records as JSON documents in Redis.
//
// Keys, all under a configurable prefix:
//
//	<prefix>:acct:<accountID>             account document
//	<prefix>:acct:email:<email>           email -> accountID index (SETNX)
//	<prefix>:org:<organizationID>:members set of accountIDs
//
// Every mutation of an existing account runs as WATCH + MULTI on the account
// key with bounded retry, so concurrent writers to one account serialize and
// a recovery code can only be consumed once.
package redisstore

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/ledgerAuth/store"
	"github.com/redis/go-redis/v9"
)

const maxRetries = 4

// ErrBackend wraps redis failures that are not a missing key.
var ErrBackend = errors.New("redisstore: backend unavailable")

type document struct {
	AccountID      string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	OrganizationID string    `json:"organization_id"`
	PasswordHash   string    `json:"password_hash"`
	Role           string    `json:"role"`
	Active         bool      `json:"active"`
	TOTPEnabled    bool      `json:"totp_enabled"`
	TOTPSecret     []byte    `json:"totp_secret,omitempty"`
	RecoveryCodes  []string  `json:"recovery_codes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	UpdatedBy      string    `json:"updated_by,omitempty"`
}

// Store implements store.Store on a redis client.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "la"
	}
	return &Store{redis: redisClient, prefix: prefix, now: time.Now}
}

// WithClock overrides the clock used for CreatedAt and UpdatedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) accountKey(id string) string    { return s.prefix + ":acct:" + id }
func (s *Store) emailKey(email string) string   { return s.prefix + ":acct:email:" + email }
func (s *Store) membersKey(orgID string) string { return s.prefix + ":org:" + orgID + ":members" }

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (store.Account, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.Account{}, store.ErrNotFound
		}
		return store.Account{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return s.GetAccountByID(ctx, id)
}

func (s *Store) GetAccountByID(ctx context.Context, accountID string) (store.Account, error) {
	data, err := s.redis.Get(ctx, s.accountKey(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.Account{}, store.ErrNotFound
		}
		return store.Account{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	doc, err := decode(data)
	if err != nil {
		return store.Account{}, err
	}
	return doc.account()
}

// CreateAccount claims the email index first; losing the SETNX is a duplicate.
func (s *Store) CreateAccount(ctx context.Context, in store.CreateAccountInput) (store.Account, error) {
	if in.AccountID == "" || in.Email == "" {
		return store.Account{}, errors.New("redisstore: account id and email are required")
	}

	claimed, err := s.redis.SetNX(ctx, s.emailKey(in.Email), in.AccountID, 0).Result()
	if err != nil {
		return store.Account{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if !claimed {
		return store.Account{}, store.ErrDuplicate
	}

	now := s.now().UTC()
	doc := document{
		AccountID:      in.AccountID,
		Email:          in.Email,
		Name:           in.Name,
		OrganizationID: in.OrganizationID,
		PasswordHash:   in.PasswordHash,
		Role:           in.Role,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
		UpdatedBy:      in.CreatedBy,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		_ = s.redis.Del(ctx, s.emailKey(in.Email)).Err()
		return store.Account{}, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.accountKey(in.AccountID), data, 0)
		pipe.SAdd(ctx, s.membersKey(in.OrganizationID), in.AccountID)
		return nil
	})
	if err != nil {
		_ = s.redis.Del(ctx, s.emailKey(in.Email)).Err()
		return store.Account{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return doc.account()
}

func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, hash string) error {
	return s.mutate(ctx, accountID, func(doc *document) error {
		doc.PasswordHash = hash
		return nil
	})
}

func (s *Store) SetPendingTOTPSecret(ctx context.Context, accountID string, secret []byte) error {
	return s.mutate(ctx, accountID, func(doc *document) error {
		doc.TOTPSecret = append([]byte(nil), secret...)
		doc.TOTPEnabled = false
		return nil
	})
}

func (s *Store) EnableTOTP(ctx context.Context, accountID string, expectedSecret []byte, codes [][32]byte) error {
	return s.mutate(ctx, accountID, func(doc *document) error {
		if doc.TOTPEnabled || len(doc.TOTPSecret) == 0 || subtle.ConstantTimeCompare(doc.TOTPSecret, expectedSecret) != 1 {
			return store.ErrConflict
		}
		doc.TOTPEnabled = true
		doc.RecoveryCodes = encodeCodes(codes)
		return nil
	})
}

func (s *Store) DisableTOTP(ctx context.Context, accountID string) error {
	return s.mutate(ctx, accountID, func(doc *document) error {
		doc.TOTPEnabled = false
		doc.TOTPSecret = nil
		doc.RecoveryCodes = nil
		return nil
	})
}

func (s *Store) ConsumeRecoveryCode(ctx context.Context, accountID string, digest [32]byte) (bool, error) {
	want := hex.EncodeToString(digest[:])
	var found bool
	err := s.mutate(ctx, accountID, func(doc *document) error {
		found = false
		idx := -1
		for i, code := range doc.RecoveryCodes {
			if subtle.ConstantTimeCompare([]byte(code), []byte(want)) == 1 {
				idx = i
			}
		}
		if idx < 0 {
			return errUnchanged
		}
		found = true
		doc.RecoveryCodes = append(doc.RecoveryCodes[:idx], doc.RecoveryCodes[idx+1:]...)
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *Store) UpdateRole(ctx context.Context, accountID, role, updatedBy string) error {
	return s.mutate(ctx, accountID, func(doc *document) error {
		doc.Role = role
		doc.UpdatedBy = updatedBy
		return nil
	})
}

func (s *Store) SetActive(ctx context.Context, accountID string, active bool, updatedBy string) error {
	return s.mutate(ctx, accountID, func(doc *document) error {
		doc.Active = active
		doc.UpdatedBy = updatedBy
		return nil
	})
}

// ListAccountsByOrganization returns the members ordered by creation time.
// Members whose document vanished are skipped.
func (s *Store) ListAccountsByOrganization(ctx context.Context, organizationID string) ([]store.Account, error) {
	ids, err := s.redis.SMembers(ctx, s.membersKey(organizationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if len(ids) == 0 {
		return []store.Account{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.accountKey(id)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	out := make([]store.Account, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		acc, err := doc.account()
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// errUnchanged lets a mutation finish without writing.
var errUnchanged = errors.New("redisstore: unchanged")

func (s *Store) mutate(ctx context.Context, accountID string, fn func(doc *document) error) error {
	key := s.accountKey(accountID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			doc, err := decode(data)
			if err != nil {
				return err
			}
			if err := fn(&doc); err != nil {
				return err
			}
			doc.UpdatedAt = s.now().UTC()
			updated, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil, errors.Is(err, errUnchanged):
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return store.ErrNotFound
		case errors.Is(err, store.ErrConflict):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrBackend, err)
		}
	}
	return store.ErrConflict
}

func decode(data []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("%w: corrupt account document: %v", ErrBackend, err)
	}
	return doc, nil
}

func (d document) account() (store.Account, error) {
	codes, err := decodeCodes(d.RecoveryCodes)
	if err != nil {
		return store.Account{}, err
	}
	return store.Account{
		AccountID:      d.AccountID,
		Email:          d.Email,
		Name:           d.Name,
		OrganizationID: d.OrganizationID,
		PasswordHash:   d.PasswordHash,
		Role:           d.Role,
		Active:         d.Active,
		TOTPEnabled:    d.TOTPEnabled,
		TOTPSecret:     d.TOTPSecret,
		RecoveryCodes:  codes,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		UpdatedBy:      d.UpdatedBy,
	}, nil
}

func encodeCodes(codes [][32]byte) []string {
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = hex.EncodeToString(c[:])
	}
	return out
}

func decodeCodes(codes []string) ([][32]byte, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	out := make([][32]byte, len(codes))
	for i, c := range codes {
		raw, err := hex.DecodeString(c)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("%w: corrupt recovery code digest", ErrBackend)
		}
		copy(out[i][:], raw)
	}
	return out, nil
}
