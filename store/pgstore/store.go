// Package pgstore implements the credential store on PostgreSQL through
// database/sql and the pgx driver. Recovery code digests live in their own
// table so that consuming one is a single DELETE ... RETURNING.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/ledgerAuth/store"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation = "23505"
	// Raised when an id column still has a stricter type than TEXT and the
	// caller passes an id that does not parse as one.
	invalidTextRepresentation = "22P02"
)

const accountColumns = `id, email, name, organization_id, password_hash, role, active, totp_enabled, totp_secret, created_at, updated_at, updated_by`

// Store implements store.Store on a *sql.DB.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (store.Account, error) {
	return s.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (s *Store) GetAccountByID(ctx context.Context, accountID string) (store.Account, error) {
	return s.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
}

func (s *Store) getAccount(ctx context.Context, query string, arg string) (store.Account, error) {
	acc, err := scanAccount(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
			return store.Account{}, store.ErrNotFound
		}
		return store.Account{}, fmt.Errorf("db error: %w", err)
	}

	codes, err := s.loadCodes(ctx, acc.AccountID)
	if err != nil {
		return store.Account{}, err
	}
	acc.RecoveryCodes = codes
	return acc, nil
}

func (s *Store) loadCodes(ctx context.Context, accountID string) ([][32]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT digest FROM recovery_codes WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var codes [][32]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("db error: recovery code digest has %d bytes", len(raw))
		}
		var d [32]byte
		copy(d[:], raw)
		codes = append(codes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return codes, nil
}

func (s *Store) CreateAccount(ctx context.Context, in store.CreateAccountInput) (store.Account, error) {
	query := `INSERT INTO accounts (id, email, name, organization_id, password_hash, role, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + accountColumns

	acc, err := scanAccount(s.db.QueryRowContext(ctx, query,
		in.AccountID, in.Email, in.Name, in.OrganizationID, in.PasswordHash, in.Role, in.CreatedBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.Account{}, store.ErrDuplicate
		}
		return store.Account{}, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, hash string) error {
	return s.execOne(ctx, s.db,
		`UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`,
		accountID, hash)
}

func (s *Store) SetPendingTOTPSecret(ctx context.Context, accountID string, secret []byte) error {
	return s.execOne(ctx, s.db,
		`UPDATE accounts SET totp_secret = $2, totp_enabled = FALSE, updated_at = now() WHERE id = $1`,
		accountID, secret)
}

// EnableTOTP flips the flag only while the account is still pending on
// expectedSecret, then replaces the recovery codes in the same transaction.
func (s *Store) EnableTOTP(ctx context.Context, accountID string, expectedSecret []byte, codes [][32]byte) error {
	return withTx(ctx, s.db, func(tx dbtx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET totp_enabled = TRUE, updated_at = now() WHERE id = $1 AND totp_secret = $2 AND totp_enabled = FALSE`,
			accountID, expectedSecret)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("db error: %w", err)
		} else if n == 0 {
			return store.ErrConflict
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM recovery_codes WHERE account_id = $1`, accountID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		for _, code := range codes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO recovery_codes (account_id, digest) VALUES ($1, $2)`,
				accountID, code[:]); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) DisableTOTP(ctx context.Context, accountID string) error {
	return withTx(ctx, s.db, func(tx dbtx) error {
		if err := s.execOne(ctx, tx,
			`UPDATE accounts SET totp_enabled = FALSE, totp_secret = NULL, updated_at = now() WHERE id = $1`,
			accountID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recovery_codes WHERE account_id = $1`, accountID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (s *Store) ConsumeRecoveryCode(ctx context.Context, accountID string, digest [32]byte) (bool, error) {
	var deleted []byte
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM recovery_codes WHERE account_id = $1 AND digest = $2 RETURNING digest`,
		accountID, digest[:]).Scan(&deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (s *Store) UpdateRole(ctx context.Context, accountID, role, updatedBy string) error {
	return s.execOne(ctx, s.db,
		`UPDATE accounts SET role = $2, updated_by = $3, updated_at = now() WHERE id = $1`,
		accountID, role, updatedBy)
}

func (s *Store) SetActive(ctx context.Context, accountID string, active bool, updatedBy string) error {
	return s.execOne(ctx, s.db,
		`UPDATE accounts SET active = $2, updated_by = $3, updated_at = now() WHERE id = $1`,
		accountID, active, updatedBy)
}

// ListAccountsByOrganization returns members ordered by creation time.
// RecoveryCodes is left empty on listed accounts.
func (s *Store) ListAccountsByOrganization(ctx context.Context, organizationID string) ([]store.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE organization_id = $1 ORDER BY created_at, id`,
		organizationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []store.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *Store) execOne(ctx context.Context, db dbtx, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if isMalformedID(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (store.Account, error) {
	var acc store.Account
	err := row.Scan(
		&acc.AccountID,
		&acc.Email,
		&acc.Name,
		&acc.OrganizationID,
		&acc.PasswordHash,
		&acc.Role,
		&acc.Active,
		&acc.TOTPEnabled,
		&acc.TOTPSecret,
		&acc.CreatedAt,
		&acc.UpdatedAt,
		&acc.UpdatedBy,
	)
	return acc, err
}
