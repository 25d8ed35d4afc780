// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/aeolus/internal/logging"
)

// SessionCookie is the cookie a browser client may carry the session in.
const SessionCookie = "aeolus_session"

// TokenAuthenticator validates tokens signed by TokenManager. One instance
// handles one token kind; tokens of another kind or from another issuer are
// left to the rest of the chain.
type TokenAuthenticator struct {
	manager     *TokenManager
	revocations RevocationStore
	kind        string
	priority    int
}

// NewSessionAuthenticator accepts session tokens from the Authorization
// header or the session cookie.
func NewSessionAuthenticator(manager *TokenManager, revocations RevocationStore) *TokenAuthenticator {
	return &TokenAuthenticator{manager: manager, revocations: revocations, kind: KindSession, priority: 20}
}

// NewClientTokenAuthenticator accepts client-credentials access tokens.
func NewClientTokenAuthenticator(manager *TokenManager, revocations RevocationStore) *TokenAuthenticator {
	return &TokenAuthenticator{manager: manager, revocations: revocations, kind: KindClient, priority: 25}
}

// Authenticate extracts and validates the token from the request.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*AuthSubject, error) {
	tokenStr := a.extractToken(r)
	if tokenStr == "" || IsAPIKey(tokenStr) {
		return nil, ErrNoCredentials
	}
	if iss, ok := unverifiedIssuer(tokenStr); !ok || iss != Issuer {
		return nil, ErrNoCredentials
	}

	claims, err := a.manager.Validate(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind != a.kind {
		return nil, ErrNoCredentials
	}

	if a.revocations != nil && claims.ID != "" {
		revoked, err := a.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Revocation lookup failed")
			return nil, fmt.Errorf("%w: revocation lookup: %w", ErrAuthenticatorUnavailable, err)
		}
		if revoked {
			return nil, ErrRevokedCredentials
		}
	}

	return subjectFromClaims(claims), nil
}

// Name returns the authenticator name.
func (a *TokenAuthenticator) Name() string {
	if a.kind == KindClient {
		return string(MethodClient)
	}
	return string(MethodSession)
}

// Priority returns the authenticator priority.
func (a *TokenAuthenticator) Priority() int {
	return a.priority
}

func (a *TokenAuthenticator) extractToken(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	if a.kind != KindSession {
		return ""
	}
	cookie, err := r.Cookie(SessionCookie)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

func subjectFromClaims(c *Claims) *AuthSubject {
	s := &AuthSubject{
		ID:      c.Subject,
		Email:   c.Email,
		Name:    c.Name,
		Roles:   c.Roles,
		Scopes:  c.Scopes,
		Method:  MethodSession,
		TokenID: c.ID,
	}
	if c.Kind == KindClient {
		s.Method = MethodClient
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}

// bearerToken returns the Authorization bearer credential, or "".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
