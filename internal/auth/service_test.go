package auth

import (
	"context"
	"errors"
	"testing"
)

const (
	testEmail    = "lamp@example.com"
	testPassword = "a perfectly fine password"
	testClientID = "alexa-skill"
	testClientSecret  = "skill-secret"
	testRedirect = "https://pitangui.amazon.com/api/skill/link/TEST"
)

func TestServiceRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"bad email", "not-an-email", testPassword, ErrEmailInvalid},
		{"empty email", "", testPassword, ErrEmailInvalid},
		{"weak password", testEmail, "short", ErrPasswordTooWeak},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.email, tt.password); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestServiceRegisterDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "LAMP@example.com", testPassword); !errors.Is(err, ErrEmailExists) {
		t.Errorf("got %v, want ErrEmailExists", err)
	}
}

func TestServiceLoginRequiresVerifiedEmail(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, _, err := svc.Login(ctx, testEmail, testPassword); !errors.Is(err, ErrEmailNotVerified) {
		t.Errorf("unverified login: got %v, want ErrEmailNotVerified", err)
	}

	if err := svc.ConfirmEmail(ctx, mailer.verifyTokens[testEmail]); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}

	user, pair, err := svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("verified login failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("token pair incomplete")
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("token_type = %q", pair.TokenType)
	}
	if !user.EmailVerified {
		t.Error("login returned unverified user")
	}
}

func TestServiceLoginBadCredentials(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	registerVerified(t, svc, mailer, testEmail, testPassword)

	// Wrong password and unknown email fail identically.
	if _, _, err := svc.Login(ctx, testEmail, "wrong password!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "ghost@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}

func TestServiceConfirmEmailSingleUse(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token := mailer.verifyTokens[testEmail]

	if err := svc.ConfirmEmail(ctx, token); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}
	if err := svc.ConfirmEmail(ctx, token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("replayed token: got %v, want ErrTokenInvalid", err)
	}
}

func TestServicePasswordResetFlow(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	registerVerified(t, svc, mailer, testEmail, testPassword)

	// Unknown addresses are indistinguishable from known ones.
	if err := svc.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("reset for unknown email errored: %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, testEmail); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	token := mailer.resetTokens[testEmail]
	if token == "" {
		t.Fatal("no reset mail sent")
	}

	const newPassword = "an even better password"
	if err := svc.ResetPassword(ctx, token, newPassword); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, _, err := svc.Login(ctx, testEmail, testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old password still accepted")
	}
	if _, _, err := svc.Login(ctx, testEmail, newPassword); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	// Reset tokens are single-use.
	if err := svc.ResetPassword(ctx, token, "yet another password"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("replayed reset token: got %v, want ErrTokenInvalid", err)
	}
}

func TestServiceResetRevokesRefreshTokens(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	registerVerified(t, svc, mailer, testEmail, testPassword)

	_, pair, err := svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, testEmail); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if err := svc.ResetPassword(ctx, mailer.resetTokens[testEmail], "a fresh password ok"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, err := svc.RefreshTokens(ctx, testClientID, testClientSecret, pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("pre-reset refresh token still works: %v", err)
	}
}

func TestServiceAuthorizeRequestValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name         string
		clientID     string
		redirectURI  string
		responseType string
		wantErr      error
	}{
		{"valid", testClientID, testRedirect, "code", nil},
		{"implicit grant", testClientID, testRedirect, "token", ErrGrantUnsupported},
		{"unknown client", "someone-else", testRedirect, "code", ErrClientInvalid},
		{"foreign redirect", testClientID, "https://evil.example.com/cb", "code", ErrRedirectInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidateAuthorizeRequest(tt.clientID, tt.redirectURI, tt.responseType)
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestServiceAuthCodeExchange(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	user := registerVerified(t, svc, mailer, testEmail, testPassword)

	code, err := svc.IssueAuthCode(ctx, user.ID, testClientID)
	if err != nil {
		t.Fatalf("IssueAuthCode failed: %v", err)
	}

	pair, err := svc.ExchangeAuthCode(ctx, testClientID, testClientSecret, code)
	if err != nil {
		t.Fatalf("ExchangeAuthCode failed: %v", err)
	}

	got, err := svc.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("token resolves to %q, want %q", got.ID, user.ID)
	}

	// Codes are single-use.
	if _, err := svc.ExchangeAuthCode(ctx, testClientID, testClientSecret, code); !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("replayed code: got %v, want ErrCodeInvalid", err)
	}
}

func TestServiceAuthCodeClientChecks(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	user := registerVerified(t, svc, mailer, testEmail, testPassword)

	code, err := svc.IssueAuthCode(ctx, user.ID, testClientID)
	if err != nil {
		t.Fatalf("IssueAuthCode failed: %v", err)
	}

	if _, err := svc.ExchangeAuthCode(ctx, testClientID, "wrong-secret", code); !errors.Is(err, ErrClientInvalid) {
		t.Errorf("wrong secret: got %v, want ErrClientInvalid", err)
	}

	// The failed exchange must not have consumed the code.
	if _, err := svc.ExchangeAuthCode(ctx, testClientID, testClientSecret, code); err != nil {
		t.Errorf("code was burned by the failed attempt: %v", err)
	}
}

func TestServiceRefreshRotation(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	registerVerified(t, svc, mailer, testEmail, testPassword)

	_, pair, err := svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	next, err := svc.RefreshTokens(ctx, testClientID, testClientSecret, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The consumed token is dead.
	if _, err := svc.RefreshTokens(ctx, testClientID, testClientSecret, pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("replayed refresh: got %v, want ErrTokenInvalid", err)
	}

	// The rotated-in token works.
	if _, err := svc.RefreshTokens(ctx, testClientID, testClientSecret, next.RefreshToken); err != nil {
		t.Errorf("rotated token rejected: %v", err)
	}
}

func TestServiceRefreshExpired(t *testing.T) {
	svc, mailer, db := newTestService(t)
	ctx := context.Background()

	registerVerified(t, svc, mailer, testEmail, testPassword)
	_, pair, err := svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	expireRow(t, db, "refresh_tokens", "token_hash", HashToken(pair.RefreshToken))

	if _, err := svc.RefreshTokens(ctx, testClientID, testClientSecret, pair.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("got %v, want ErrTokenExpired", err)
	}
}

func TestServiceValidateAccessToken(t *testing.T) {
	svc, mailer, _ := newTestService(t)
	ctx := context.Background()

	user := registerVerified(t, svc, mailer, testEmail, testPassword)
	_, pair, err := svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	got, err := svc.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("resolved user = %q, want %q", got.ID, user.ID)
	}

	if _, err := svc.ValidateAccessToken(ctx, "not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("garbage token: got %v, want ErrTokenInvalid", err)
	}
}
