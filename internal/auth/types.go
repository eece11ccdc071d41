package auth

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// emailPattern is a pragmatic format check; deliverability is proven by
// the confirmation mail, not the regex.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Password and email limits.
const (
	MinPasswordLength = 8
	maxEmailLength    = 254
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail checks if an email address meets format requirements.
func IsValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

// User represents a registered account.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"` // never serialised
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RefreshToken represents a stored refresh token. Only the SHA-256 hash
// of the raw token is persisted.
type RefreshToken struct {
	TokenHash string     `json:"-"`
	UserID    string     `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the token is usable at the given instant.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// AuthCode represents a single-use OAuth2 authorization code.
type AuthCode struct {
	Code      string    `json:"-"`
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPurpose distinguishes the email token flows.
type TokenPurpose string

// TokenPurpose constants. The values appear in the email_tokens CHECK
// constraint.
const (
	PurposeVerifyEmail   TokenPurpose = "verify"
	PurposePasswordReset TokenPurpose = "reset"
)

// EmailToken represents a stored email confirmation or password reset
// token, persisted as a SHA-256 hash.
type EmailToken struct {
	TokenHash string       `json:"-"`
	UserID    string       `json:"user_id"`
	Purpose   TokenPurpose `json:"purpose"`
	ExpiresAt time.Time    `json:"expires_at"`
	CreatedAt time.Time    `json:"created_at"`
}

// TokenPair is the credential set handed to clients after a successful
// login or OAuth2 exchange.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// Client is a statically configured OAuth2 client.
type Client struct {
	ID           string
	Secret       string
	RedirectURIs []string
}

// AllowsRedirect reports whether the client may use the given redirect URI.
func (c *Client) AllowsRedirect(uri string) bool {
	for _, allowed := range c.RedirectURIs {
		if allowed == uri {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrEmailExists        = errors.New("auth: email already registered")
	ErrEmailInvalid       = errors.New("auth: invalid email address")
	ErrEmailNotVerified   = errors.New("auth: email not verified")
	ErrPasswordTooWeak    = errors.New("auth: password too weak")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrTokenExpired       = errors.New("auth: token has expired")
	ErrCodeInvalid        = errors.New("auth: invalid authorization code")
	ErrClientInvalid      = errors.New("auth: unknown client or bad secret")
	ErrRedirectInvalid    = errors.New("auth: redirect uri not allowed")
	ErrGrantUnsupported   = errors.New("auth: unsupported grant type")
)
