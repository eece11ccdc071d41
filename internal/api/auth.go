package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/homelinklabs/homelink-core/internal/audit"
	"github.com/homelinklabs/homelink-core/internal/auth"
)

// credentialsRequest is the body of register and login requests.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister creates a new account and sends the confirmation mail.
//
// POST /auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			writeConflict(w, "user already exists")
		case errors.Is(err, auth.ErrEmailInvalid):
			writeBadRequest(w, "invalid email address")
		case errors.Is(err, auth.ErrPasswordTooWeak):
			writeBadRequest(w, "password does not meet the minimum length")
		default:
			s.logger.Error("registration failed", "error", err)
			writeInternalError(w, "could not register user")
		}
		return
	}

	s.record(r, audit.Entry{UserID: user.ID, Action: audit.ActionRegister})

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      user.ID,
		"email":   user.Email,
		"message": "account created, check your email to confirm registration",
	})
}

// handleLogin verifies credentials and returns a token pair.
//
// POST /auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeUnauthorized(w, "invalid credentials")
		case errors.Is(err, auth.ErrEmailNotVerified):
			writeError(w, http.StatusForbidden, ErrCodeForbidden,
				"email must be confirmed before logging in")
		default:
			s.logger.Error("login failed", "error", err)
			writeInternalError(w, "could not log in")
		}
		return
	}

	s.record(r, audit.Entry{UserID: user.ID, Action: audit.ActionLogin})

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
	})
}

// handleConfirmEmail redeems a verification token from the mailed link.
//
// GET /auth/confirm-email?token=...
func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeBadRequest(w, "missing token")
		return
	}

	if err := s.auth.ConfirmEmail(r.Context(), token); err != nil {
		writeBadRequest(w, "invalid or expired confirmation token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "email confirmed, you can now log in",
	})
}

// handleForgotPassword starts the password reset flow. The response
// does not reveal whether the address is registered.
//
// POST /auth/forgot-password
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	if err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.logger.Error("password reset request failed", "error", err)
		writeInternalError(w, "could not process reset request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "if the email is registered, reset instructions have been sent",
	})
}

// handleResetPassword redeems a reset token and stores the new password.
//
// POST /auth/reset-password
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeBadRequest(w, "token and password are required")
		return
	}

	if err := s.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordTooWeak):
			writeBadRequest(w, "password does not meet the minimum length")
		case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenExpired):
			writeBadRequest(w, "invalid or expired reset token")
		default:
			s.logger.Error("password reset failed", "error", err)
			writeInternalError(w, "could not reset password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password has been reset",
	})
}
