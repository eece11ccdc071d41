package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"
)

// Token lifetime defaults.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	DefaultAuthCodeTTL     = 10 * time.Minute
	DefaultVerifyTokenTTL  = 24 * time.Hour
	DefaultResetTokenTTL   = time.Hour
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Settings holds the token parameters and client registry for a Service.
// Zero TTLs fall back to the package defaults.
type Settings struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AuthCodeTTL     time.Duration
	VerifyTokenTTL  time.Duration
	ResetTokenTTL   time.Duration
	Clients         []Client
}

func (s *Settings) applyDefaults() {
	if s.AccessTokenTTL <= 0 {
		s.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if s.RefreshTokenTTL <= 0 {
		s.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if s.AuthCodeTTL <= 0 {
		s.AuthCodeTTL = DefaultAuthCodeTTL
	}
	if s.VerifyTokenTTL <= 0 {
		s.VerifyTokenTTL = DefaultVerifyTokenTTL
	}
	if s.ResetTokenTTL <= 0 {
		s.ResetTokenTTL = DefaultResetTokenTTL
	}
}

// Service implements account management and the OAuth2 token flows.
type Service struct {
	users       UserRepository
	tokens      TokenRepository
	codes       CodeRepository
	emailTokens EmailTokenRepository
	mailer      Mailer
	settings    Settings
	logger      Logger
}

// NewService wires a Service from its dependencies.
func NewService(users UserRepository, tokens TokenRepository, codes CodeRepository,
	emailTokens EmailTokenRepository, mailer Mailer, settings Settings) *Service {
	settings.applyDefaults()
	if mailer == nil {
		mailer = NoopMailer{}
	}
	return &Service{
		users:       users,
		tokens:      tokens,
		codes:       codes,
		emailTokens: emailTokens,
		mailer:      mailer,
		settings:    settings,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Register creates an account and mails the email confirmation link.
// A mail delivery failure does not undo the registration; the token
// stays valid and the failure is logged.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if !IsValidEmail(email) {
		return nil, ErrEmailInvalid
	}
	if err := CheckPasswordPolicy(password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.sendEmailToken(ctx, user, PurposeVerifyEmail); err != nil {
		s.logger.Warn("verification mail not sent", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// ConfirmEmail redeems an email verification token.
func (s *Service) ConfirmEmail(ctx context.Context, rawToken string) error {
	token, err := s.emailTokens.Consume(ctx, HashToken(rawToken), PurposeVerifyEmail)
	if err != nil {
		return err
	}

	if err := s.users.MarkEmailVerified(ctx, token.UserID); err != nil {
		return err
	}

	s.logger.Info("email confirmed", "user_id", token.UserID)
	return nil
}

// Login verifies credentials and issues a token pair.
// Unknown emails and wrong passwords are indistinguishable; an
// unconfirmed account fails with ErrEmailNotVerified.
func (s *Service) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return user, pair, nil
}

// Authenticate verifies credentials without issuing tokens. Used by
// the OAuth authorize flow, which mints a code instead of a pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return user, nil
}

// RequestPasswordReset starts the reset flow. It never reveals whether
// the email is registered: unknown addresses return nil.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	// Only the latest reset token may be redeemable.
	if err := s.emailTokens.DeleteForUser(ctx, user.ID, PurposePasswordReset); err != nil {
		return err
	}

	if err := s.sendEmailToken(ctx, user, PurposePasswordReset); err != nil {
		s.logger.Warn("reset mail not sent", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword redeems a reset token, stores the new password, and
// revokes all outstanding refresh tokens for the account.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := CheckPasswordPolicy(newPassword); err != nil {
		return err
	}

	token, err := s.emailTokens.Consume(ctx, HashToken(rawToken), PurposePasswordReset)
	if err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, token.UserID, hash); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, token.UserID); err != nil {
		return err
	}

	s.logger.Info("password reset", "user_id", token.UserID)
	return nil
}

// ValidateAuthorizeRequest checks an /oauth/authorize request before
// any credentials are processed.
func (s *Service) ValidateAuthorizeRequest(clientID, redirectURI, responseType string) error {
	if responseType != "code" {
		return fmt.Errorf("%w: response_type %q", ErrGrantUnsupported, responseType)
	}
	client := s.clientByID(clientID)
	if client == nil {
		return ErrClientInvalid
	}
	if !client.AllowsRedirect(redirectURI) {
		return ErrRedirectInvalid
	}
	return nil
}

// IssueAuthCode mints a short-lived single-use authorization code for
// an authenticated user.
func (s *Service) IssueAuthCode(ctx context.Context, userID, clientID string) (string, error) {
	raw, err := GenerateOpaqueToken()
	if err != nil {
		return "", err
	}

	code := &AuthCode{
		Code:      raw,
		UserID:    userID,
		ClientID:  clientID,
		ExpiresAt: time.Now().Add(s.settings.AuthCodeTTL),
	}
	if err := s.codes.Create(ctx, code); err != nil {
		return "", err
	}

	s.logger.Debug("auth code issued", "user_id", userID, "client_id", clientID)
	return raw, nil
}

// ExchangeAuthCode implements the authorization_code grant.
func (s *Service) ExchangeAuthCode(ctx context.Context, clientID, clientSecret, code string) (*TokenPair, error) {
	if err := s.authenticateClient(clientID, clientSecret); err != nil {
		return nil, err
	}

	authCode, err := s.codes.Consume(ctx, code)
	if err != nil {
		return nil, err
	}
	if authCode.ClientID != clientID {
		return nil, ErrCodeInvalid
	}

	user, err := s.users.GetByID(ctx, authCode.UserID)
	if err != nil {
		return nil, err
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("auth code exchanged", "user_id", user.ID, "client_id", clientID)
	return pair, nil
}

// RefreshTokens implements the refresh_token grant. The consumed token
// is rotated; presenting it again fails.
func (s *Service) RefreshTokens(ctx context.Context, clientID, clientSecret, rawRefresh string) (*TokenPair, error) {
	if err := s.authenticateClient(clientID, clientSecret); err != nil {
		return nil, err
	}

	stored, err := s.tokens.GetByTokenHash(ctx, HashToken(rawRefresh))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if now.After(stored.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if !stored.Active(now) {
		return nil, ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}

	newRaw, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	replacement := &RefreshToken{
		TokenHash: HashToken(newRaw),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.settings.RefreshTokenTTL),
	}
	if err := s.tokens.Rotate(ctx, stored.TokenHash, replacement); err != nil {
		return nil, err
	}

	access, err := GenerateAccessToken(user, s.settings.JWTSecret, s.settings.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.settings.AccessTokenTTL.Seconds()),
		RefreshToken: newRaw,
	}, nil
}

// ValidateAccessToken verifies a bearer token and resolves its user.
func (s *Service) ValidateAccessToken(ctx context.Context, raw string) (*User, error) {
	claims, err := ParseToken(raw, s.settings.JWTSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	return user, nil
}

// issueTokenPair mints an access/refresh pair for a user.
func (s *Service) issueTokenPair(ctx context.Context, user *User) (*TokenPair, error) {
	access, err := GenerateAccessToken(user, s.settings.JWTSecret, s.settings.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	rawRefresh, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	refresh := &RefreshToken{
		TokenHash: HashToken(rawRefresh),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.settings.RefreshTokenTTL),
	}
	if err := s.tokens.Create(ctx, refresh); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.settings.AccessTokenTTL.Seconds()),
		RefreshToken: rawRefresh,
	}, nil
}

// sendEmailToken issues and mails a single-use token for the given purpose.
func (s *Service) sendEmailToken(ctx context.Context, user *User, purpose TokenPurpose) error {
	raw, err := GenerateOpaqueToken()
	if err != nil {
		return err
	}

	ttl := s.settings.VerifyTokenTTL
	if purpose == PurposePasswordReset {
		ttl = s.settings.ResetTokenTTL
	}

	token := &EmailToken{
		TokenHash: HashToken(raw),
		UserID:    user.ID,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.emailTokens.Create(ctx, token); err != nil {
		return err
	}

	switch purpose {
	case PurposeVerifyEmail:
		return s.mailer.SendVerificationMail(user.Email, raw)
	case PurposePasswordReset:
		return s.mailer.SendPasswordResetMail(user.Email, raw)
	default:
		return fmt.Errorf("unknown token purpose %q", purpose)
	}
}

// clientByID returns the configured client or nil.
func (s *Service) clientByID(id string) *Client {
	for i := range s.settings.Clients {
		if s.settings.Clients[i].ID == id {
			return &s.settings.Clients[i]
		}
	}
	return nil
}

// authenticateClient checks a client_id/client_secret pair.
func (s *Service) authenticateClient(id, secret string) error {
	client := s.clientByID(id)
	if client == nil {
		return ErrClientInvalid
	}
	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(secret)) != 1 {
		return ErrClientInvalid
	}
	return nil
}
