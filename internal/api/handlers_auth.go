// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/aeolus/internal/auth"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/models"
	"github.com/tomtom215/aeolus/internal/validation"
)

// AuthGoogle exchanges a Google ID token for a session token. The token is
// returned in the body and set as an HttpOnly cookie.
func (h *Handler) AuthGoogle(w http.ResponseWriter, r *http.Request) {
	if h.deps.Logins == nil {
		respondError(w, r, fmt.Errorf("%w: google sign-in is disabled", auth.ErrAuthenticatorUnavailable))
		return
	}

	var req models.GoogleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, verr)
		return
	}

	session, err := h.deps.Logins.LoginWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		respondError(w, r, err)
		return
	}

	expiresAt := session.Claims.ExpiresAt.Time
	http.SetCookie(w, h.sessionCookie(session.Token, expiresAt))
	respondJSON(w, r, http.StatusOK, models.SessionResponse{
		AccessToken: session.Token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		UserID:      session.User.ID,
	})
}

// AuthLogout revokes the presented session token and clears the cookie.
func (h *Handler) AuthLogout(w http.ResponseWriter, r *http.Request) {
	caller := callerOrReject(w, r)
	if caller == nil {
		return
	}
	if h.deps.Logins == nil {
		respondError(w, r, fmt.Errorf("%w: google sign-in is disabled", auth.ErrAuthenticatorUnavailable))
		return
	}
	if err := h.deps.Logins.Logout(r.Context(), caller); err != nil {
		respondError(w, r, err)
		return
	}
	http.SetCookie(w, h.sessionCookie("", time.Unix(0, 0)))
	respondJSON(w, r, http.StatusOK, map[string]bool{"logged_out": true})
}

// tokenResponse is the OAuth 2.0 token response (RFC 6749 section 5.1).
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// oauthError is the OAuth 2.0 error response (RFC 6749 section 5.2).
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// AuthToken implements the client_credentials grant.
func (h *Handler) AuthToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		writeOAuth(w, http.StatusBadRequest, oauthError{Error: "invalid_request", ErrorDescription: "malformed form body"})
		return
	}
	if grant := r.PostFormValue("grant_type"); grant != auth.GrantClientCredentials {
		writeOAuth(w, http.StatusBadRequest, oauthError{Error: "unsupported_grant_type"})
		return
	}

	clientID, secret := auth.ClientCredentialsFromRequest(r)
	token, claims, err := h.deps.Clients.Exchange(r.Context(), clientID, secret)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrAuthenticatorUnavailable):
		logging.Ctx(r.Context()).Error().Err(err).Msg("Client credentials exchange failed")
		writeOAuth(w, http.StatusServiceUnavailable, oauthError{Error: "temporarily_unavailable"})
		return
	default:
		logging.Ctx(r.Context()).Warn().Err(err).Str("client_id", sanitizeLogValue(clientID)).Msg("Client authentication failed")
		w.Header().Set("WWW-Authenticate", `Basic realm="aeolus"`)
		writeOAuth(w, http.StatusUnauthorized, oauthError{Error: "invalid_client"})
		return
	}

	writeOAuth(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(claims.ExpiresAt.Time).Seconds()),
		Scope:       strings.Join(claims.Scopes, " "),
	})
}

func writeOAuth(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Debug().Err(err).Msg("Failed to write token response")
	}
}

// UsersMe returns the caller's profile with the roles of the presented
// credential.
func (h *Handler) UsersMe(w http.ResponseWriter, r *http.Request) {
	caller := callerOrReject(w, r)
	if caller == nil {
		return
	}
	user, err := h.deps.Users.GetUser(r.Context(), caller.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	roles := caller.Roles
	if roles == nil {
		roles = []string{}
	}
	respondJSON(w, r, http.StatusOK, models.UserInfo{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Roles:     roles,
		CreatedAt: user.CreatedAt,
	})
}

func (h *Handler) sessionCookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}
