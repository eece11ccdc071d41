package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CodeRepository defines the interface for OAuth2 authorization code
// persistence. Codes are single-use: Consume removes the row.
type CodeRepository interface {
	Create(ctx context.Context, code *AuthCode) error
	Consume(ctx context.Context, code string) (*AuthCode, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteCodeRepository implements CodeRepository using SQLite.
type SQLiteCodeRepository struct {
	db *sql.DB
}

// NewCodeRepository creates a new SQLite-backed authorization code repository.
func NewCodeRepository(db *sql.DB) *SQLiteCodeRepository {
	return &SQLiteCodeRepository{db: db}
}

// Create inserts a new authorization code.
func (r *SQLiteCodeRepository) Create(ctx context.Context, code *AuthCode) error {
	now := time.Now().UTC().Truncate(time.Second)
	code.CreatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_codes (code, user_id, client_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		code.Code, code.UserID, code.ClientID,
		code.ExpiresAt.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating auth code: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes an authorization code.
// A second redemption of the same code fails with ErrCodeInvalid, as
// does an expired or never-issued code.
func (r *SQLiteCodeRepository) Consume(ctx context.Context, code string) (*AuthCode, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning consume transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	var c AuthCode
	var expiresAt, createdAt string

	err = tx.QueryRowContext(ctx,
		`SELECT code, user_id, client_id, expires_at, created_at
		 FROM auth_codes WHERE code = ?`, code,
	).Scan(&c.Code, &c.UserID, &c.ClientID, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeInvalid
		}
		return nil, fmt.Errorf("getting auth code: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM auth_codes WHERE code = ?", code); err != nil {
		return nil, fmt.Errorf("deleting auth code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing consume: %w", err)
	}

	c.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	if time.Now().After(c.ExpiresAt) {
		return nil, ErrCodeInvalid
	}

	return &c, nil
}

// DeleteExpired removes expired authorization codes.
func (r *SQLiteCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM auth_codes WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired codes: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}
