package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/homelinklabs/homelink-core/internal/auth"
)

// handleAuthorize implements the authorization code grant's front
// channel. The account linking form submits the user's credentials
// together with the client parameters; on success the browser is
// redirected back to the client with a single-use code.
//
// GET /oauth/authorize?response_type=code&client_id=...&redirect_uri=...&state=...&email=...&password=...
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")
	state := q.Get("state")

	if clientID == "" || redirectURI == "" || state == "" {
		writeBadRequest(w, "client_id, redirect_uri and state are required")
		return
	}

	// The redirect target is only trusted after client validation;
	// never redirect an unvalidated URI.
	if err := s.auth.ValidateAuthorizeRequest(clientID, redirectURI, q.Get("response_type")); err != nil {
		writeBadRequest(w, "invalid authorize request")
		return
	}

	user, err := s.auth.Authenticate(r.Context(), q.Get("email"), q.Get("password"))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeUnauthorized(w, "invalid credentials")
		case errors.Is(err, auth.ErrEmailNotVerified):
			writeError(w, http.StatusForbidden, ErrCodeForbidden,
				"email must be confirmed before linking")
		default:
			s.logger.Error("authorize failed", "error", err)
			writeInternalError(w, "could not authorize")
		}
		return
	}

	code, err := s.auth.IssueAuthCode(r.Context(), user.ID, clientID)
	if err != nil {
		s.logger.Error("issuing auth code failed", "error", err)
		writeInternalError(w, "could not authorize")
		return
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		writeBadRequest(w, "invalid redirect_uri")
		return
	}
	params := target.Query()
	params.Set("code", code)
	params.Set("state", state)
	target.RawQuery = params.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// handleToken implements the token endpoint for the
// authorization_code and refresh_token grants.
//
// POST /oauth/token (application/x-www-form-urlencoded)
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	clientID := r.PostFormValue("client_id")
	clientSecret := r.PostFormValue("client_secret")

	var pair *auth.TokenPair
	var err error

	switch grant := r.PostFormValue("grant_type"); grant {
	case "authorization_code":
		code := r.PostFormValue("code")
		if code == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "missing authorization code")
			return
		}
		pair, err = s.auth.ExchangeAuthCode(r.Context(), clientID, clientSecret, code)

	case "refresh_token":
		refresh := r.PostFormValue("refresh_token")
		if refresh == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "missing refresh_token")
			return
		}
		pair, err = s.auth.RefreshTokens(r.Context(), clientID, clientSecret, refresh)

	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type",
			"grant_type must be authorization_code or refresh_token")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrClientInvalid):
			writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		case errors.Is(err, auth.ErrCodeInvalid),
			errors.Is(err, auth.ErrTokenInvalid),
			errors.Is(err, auth.ErrTokenExpired):
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "grant is invalid or expired")
		default:
			s.logger.Error("token exchange failed", "error", err)
			writeOAuthError(w, http.StatusInternalServerError, "server_error", "could not issue tokens")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
	})
}
