// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"errors"
	"net/http"

	"github.com/tomtom215/aeolus/internal/logging"
)

// ErrInsufficientScope is returned when the credential lacks a scope the
// route requires.
var ErrInsufficientScope = errors.New("insufficient scope")

// ErrorResponder writes an authentication or scope failure.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// Middleware resolves the caller on protected routes.
type Middleware struct {
	authenticator Authenticator
	respond       ErrorResponder
}

// NewMiddleware creates the middleware. A nil responder writes plain text.
func NewMiddleware(authenticator Authenticator, respond ErrorResponder) *Middleware {
	if respond == nil {
		respond = plainErrorResponder
	}
	return &Middleware{authenticator: authenticator, respond: respond}
}

// RequireAuth rejects requests without a valid credential and stores the
// subject on the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := m.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			logging.Ctx(r.Context()).Warn().
				Err(err).
				Str("path", r.URL.Path).
				Msg("Authentication failed")
			m.respond(w, r, err)
			return
		}

		ctx := ContextWithSubject(r.Context(), subject)
		ctx = logging.ContextWithUserID(ctx, subject.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope rejects authenticated requests whose credential lacks
// scope. It must run after RequireAuth.
func (m *Middleware) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := SubjectFromContext(r.Context())
			if subject == nil {
				m.respond(w, r, ErrNoCredentials)
				return
			}
			if !subject.HasScope(scope) {
				m.respond(w, r, ErrInsufficientScope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func plainErrorResponder(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInsufficientScope):
		http.Error(w, "Forbidden: insufficient scope", http.StatusForbidden)
	case errors.Is(err, ErrAuthenticatorUnavailable):
		http.Error(w, "Service unavailable: authentication service unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, ErrExpiredCredentials):
		http.Error(w, "Unauthorized: credentials expired", http.StatusUnauthorized)
	default:
		http.Error(w, "Unauthorized: authentication required", http.StatusUnauthorized)
	}
}
