package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EmailTokenRepository defines the interface for email confirmation and
// password reset token persistence. Tokens are single-use: Consume
// removes the row.
type EmailTokenRepository interface {
	Create(ctx context.Context, token *EmailToken) error
	Consume(ctx context.Context, tokenHash string, purpose TokenPurpose) (*EmailToken, error)
	DeleteForUser(ctx context.Context, userID string, purpose TokenPurpose) error
}

// SQLiteEmailTokenRepository implements EmailTokenRepository using SQLite.
type SQLiteEmailTokenRepository struct {
	db *sql.DB
}

// NewEmailTokenRepository creates a new SQLite-backed email token repository.
func NewEmailTokenRepository(db *sql.DB) *SQLiteEmailTokenRepository {
	return &SQLiteEmailTokenRepository{db: db}
}

// Create inserts a new email token record.
func (r *SQLiteEmailTokenRepository) Create(ctx context.Context, token *EmailToken) error {
	now := time.Now().UTC().Truncate(time.Second)
	token.CreatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_tokens (token_hash, user_id, purpose, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token.TokenHash, token.UserID, string(token.Purpose),
		token.ExpiresAt.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating email token: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes an email token, checking both
// purpose and expiry. Every failure mode maps to ErrTokenInvalid or
// ErrTokenExpired; callers never learn whether the hash ever existed.
func (r *SQLiteEmailTokenRepository) Consume(ctx context.Context, tokenHash string, purpose TokenPurpose) (*EmailToken, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning consume transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	var t EmailToken
	var storedPurpose string
	var expiresAt, createdAt string

	err = tx.QueryRowContext(ctx,
		`SELECT token_hash, user_id, purpose, expires_at, created_at
		 FROM email_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&t.TokenHash, &t.UserID, &storedPurpose, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("getting email token: %w", err)
	}

	if TokenPurpose(storedPurpose) != purpose {
		return nil, ErrTokenInvalid
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM email_tokens WHERE token_hash = ?", tokenHash); err != nil {
		return nil, fmt.Errorf("deleting email token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing consume: %w", err)
	}

	t.Purpose = TokenPurpose(storedPurpose)
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	if time.Now().After(t.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	return &t, nil
}

// DeleteForUser removes all tokens of one purpose for a user. Called
// before issuing a replacement so only the latest token works.
func (r *SQLiteEmailTokenRepository) DeleteForUser(ctx context.Context, userID string, purpose TokenPurpose) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM email_tokens WHERE user_id = ? AND purpose = ?",
		userID, string(purpose))
	if err != nil {
		return fmt.Errorf("deleting email tokens: %w", err)
	}
	return nil
}
