package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the account
// schema from the migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE users (
		id             TEXT PRIMARY KEY,
		email          TEXT NOT NULL COLLATE NOCASE UNIQUE,
		password_hash  TEXT NOT NULL,
		email_verified INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);
	CREATE TABLE auth_codes (
		code       TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		client_id  TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE refresh_tokens (
		token_hash TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		revoked_at TEXT
	);
	CREATE TABLE email_tokens (
		token_hash TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		purpose    TEXT NOT NULL CHECK (purpose IN ('verify', 'reset')),
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return db
}

// createTestUser inserts a user with a real password hash and returns it.
func createTestUser(t *testing.T, repo UserRepository, email, password string) *User {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &User{Email: email, PasswordHash: hash}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return user
}

// recordingMailer captures sent tokens for assertions.
type recordingMailer struct {
	verifyTokens map[string]string
	resetTokens  map[string]string
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{
		verifyTokens: make(map[string]string),
		resetTokens:  make(map[string]string),
	}
}

func (m *recordingMailer) SendVerificationMail(to, token string) error {
	m.verifyTokens[to] = token
	return nil
}

func (m *recordingMailer) SendPasswordResetMail(to, token string) error {
	m.resetTokens[to] = token
	return nil
}

// newTestService builds a Service over a fresh in-memory database.
func newTestService(t *testing.T) (*Service, *recordingMailer, *sql.DB) {
	t.Helper()

	db := setupTestDB(t)
	mailer := newRecordingMailer()
	svc := NewService(
		NewUserRepository(db),
		NewTokenRepository(db),
		NewCodeRepository(db),
		NewEmailTokenRepository(db),
		mailer,
		Settings{
			JWTSecret: "test-secret-please-rotate",
			Clients: []Client{{
				ID:           "alexa-skill",
				Secret:       "skill-secret",
				RedirectURIs: []string{"https://pitangui.amazon.com/api/skill/link/TEST"},
			}},
		},
	)
	return svc, mailer, db
}

// registerVerified registers a user and confirms their email.
func registerVerified(t *testing.T, svc *Service, mailer *recordingMailer, email, password string) *User {
	t.Helper()

	user, err := svc.Register(context.Background(), email, password)
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	token, ok := mailer.verifyTokens[user.Email]
	if !ok {
		t.Fatalf("no verification mail sent to %s", user.Email)
	}
	if err := svc.ConfirmEmail(context.Background(), token); err != nil {
		t.Fatalf("confirming email: %v", err)
	}
	return user
}

// expireRow backdates a timestamp column so expiry paths can be tested.
func expireRow(t *testing.T, db *sql.DB, table, keyColumn, key string) {
	t.Helper()

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	if _, err := db.Exec(
		"UPDATE "+table+" SET expires_at = ? WHERE "+keyColumn+" = ?", past, key,
	); err != nil {
		t.Fatalf("backdating %s: %v", table, err)
	}
}
