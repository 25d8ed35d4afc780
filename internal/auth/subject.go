// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"
)

// Method identifies the credential scheme a subject was resolved from.
type Method string

const (
	// MethodSession is a session JWT issued after Google sign-in.
	MethodSession Method = "session"

	// MethodAPIKey is a long-lived device API key.
	MethodAPIKey Method = "api_key"

	// MethodClient is an access JWT issued through client credentials.
	MethodClient Method = "client"

	// MethodGoogle is a Google ID token presented directly.
	MethodGoogle Method = "google"

	// MethodMulti is the authenticator chain.
	MethodMulti Method = "multi"
)

// Identity failures. The chain moves to the next authenticator only on
// ErrNoCredentials and ErrAuthenticatorUnavailable.
var (
	// ErrNoCredentials indicates the request carries no credential for
	// this authenticator.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates a credential that does not match
	// stored state.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates a credential past its expiry.
	ErrExpiredCredentials = errors.New("credentials expired")

	// ErrRevokedCredentials indicates a revoked key or logged-out session.
	ErrRevokedCredentials = errors.New("credentials revoked")

	// ErrAuthenticatorUnavailable indicates the identity provider is
	// unreachable.
	ErrAuthenticatorUnavailable = errors.New("authenticator unavailable")
)

// Authenticator resolves a request credential to a subject.
type Authenticator interface {
	// Authenticate extracts and validates credentials from the request.
	Authenticate(ctx context.Context, r *http.Request) (*AuthSubject, error)

	// Name is used for logs and metrics.
	Name() string

	// Priority orders the chain. Lower values are tried first.
	Priority() int
}

// AuthSubject is an authenticated caller. ID is the author user ID that
// telemetry and points are attributed to.
type AuthSubject struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	Method    Method    `json:"method"`
	TokenID   string    `json:"token_id,omitempty"` // jwt jti, API key ID or client ID
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// HasRole checks if the subject has a specific role.
func (s *AuthSubject) HasRole(role string) bool {
	return role != "" && slices.Contains(s.Roles, role)
}

// HasScope checks if the subject's credential grants scope.
func (s *AuthSubject) HasScope(scope string) bool {
	return scope != "" && slices.Contains(s.Scopes, scope)
}

// IsExpired checks if the credential has expired.
func (s *AuthSubject) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type contextKey string

const subjectContextKey contextKey = "auth_subject"

// ContextWithSubject stores the subject on ctx.
func ContextWithSubject(ctx context.Context, s *AuthSubject) context.Context {
	return context.WithValue(ctx, subjectContextKey, s)
}

// SubjectFromContext returns the subject stored by the middleware, or nil.
func SubjectFromContext(ctx context.Context) *AuthSubject {
	s, ok := ctx.Value(subjectContextKey).(*AuthSubject)
	if !ok {
		return nil
	}
	return s
}

// IsIdentityFailure reports whether err belongs to the identity failure
// family.
func IsIdentityFailure(err error) bool {
	return errors.Is(err, ErrNoCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrExpiredCredentials) ||
		errors.Is(err, ErrRevokedCredentials)
}
