package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func createEmailToken(t *testing.T, repo EmailTokenRepository, userID, raw string, purpose TokenPurpose, ttl time.Duration) {
	t.Helper()

	if err := repo.Create(context.Background(), &EmailToken{
		TokenHash: HashToken(raw),
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(ttl),
	}); err != nil {
		t.Fatalf("creating email token: %v", err)
	}
}

func TestEmailTokenRepositoryConsumeOnce(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewEmailTokenRepository(db)
	ctx := context.Background()

	user := createTestUser(t, users, "lamp@example.com", "eight888")
	createEmailToken(t, repo, user.ID, "raw-verify", PurposeVerifyEmail, time.Hour)

	got, err := repo.Consume(ctx, HashToken("raw-verify"), PurposeVerifyEmail)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("user_id = %q, want %q", got.UserID, user.ID)
	}

	if _, err := repo.Consume(ctx, HashToken("raw-verify"), PurposeVerifyEmail); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("replayed token: got %v, want ErrTokenInvalid", err)
	}
}

func TestEmailTokenRepositoryPurposeMismatch(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewEmailTokenRepository(db)
	ctx := context.Background()

	user := createTestUser(t, users, "lamp@example.com", "eight888")
	createEmailToken(t, repo, user.ID, "raw-verify", PurposeVerifyEmail, time.Hour)

	// A verification token cannot reset a password.
	if _, err := repo.Consume(ctx, HashToken("raw-verify"), PurposePasswordReset); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("got %v, want ErrTokenInvalid", err)
	}
}

func TestEmailTokenRepositoryConsumeExpired(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewEmailTokenRepository(db)
	ctx := context.Background()

	user := createTestUser(t, users, "lamp@example.com", "eight888")
	createEmailToken(t, repo, user.ID, "raw-reset", PurposePasswordReset, time.Hour)
	expireRow(t, db, "email_tokens", "token_hash", HashToken("raw-reset"))

	if _, err := repo.Consume(ctx, HashToken("raw-reset"), PurposePasswordReset); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("got %v, want ErrTokenExpired", err)
	}
}

func TestEmailTokenRepositoryDeleteForUser(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewEmailTokenRepository(db)
	ctx := context.Background()

	user := createTestUser(t, users, "lamp@example.com", "eight888")
	createEmailToken(t, repo, user.ID, "reset-1", PurposePasswordReset, time.Hour)
	createEmailToken(t, repo, user.ID, "reset-2", PurposePasswordReset, time.Hour)
	createEmailToken(t, repo, user.ID, "verify-1", PurposeVerifyEmail, time.Hour)

	if err := repo.DeleteForUser(ctx, user.ID, PurposePasswordReset); err != nil {
		t.Fatalf("DeleteForUser failed: %v", err)
	}

	for _, raw := range []string{"reset-1", "reset-2"} {
		if _, err := repo.Consume(ctx, HashToken(raw), PurposePasswordReset); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("%s survived DeleteForUser: %v", raw, err)
		}
	}

	// The verification token for the same user is untouched.
	if _, err := repo.Consume(ctx, HashToken("verify-1"), PurposeVerifyEmail); err != nil {
		t.Errorf("verification token was deleted: %v", err)
	}
}
