// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package authz

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/aeolus/internal/auth"
	"github.com/tomtom215/aeolus/internal/logging"
)

// ErrForbidden is passed to the error responder when the policy denies a
// request.
var ErrForbidden = errors.New("authz: insufficient permissions")

// Middleware enforces the Casbin policy on authenticated requests. It must
// run after auth.Middleware.RequireAuth.
type Middleware struct {
	enforcer *Enforcer
	respond  auth.ErrorResponder
}

// NewMiddleware creates the authorization middleware. A nil responder
// writes plain-text errors.
func NewMiddleware(enforcer *Enforcer, respond auth.ErrorResponder) *Middleware {
	if respond == nil {
		respond = func(w http.ResponseWriter, _ *http.Request, err error) {
			if errors.Is(err, ErrForbidden) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
	return &Middleware{enforcer: enforcer, respond: respond}
}

// Authorize checks a fixed object and action.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.allow(w, r, object, action) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// AuthorizeRequest derives the action from the HTTP method and the object
// from the matched chi route pattern, falling back to the URL path.
func (m *Middleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		object := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				object = pattern
			}
		}
		if m.allow(w, r, object, methodToAction(r.Method)) {
			next.ServeHTTP(w, r)
		}
	})
}

func (m *Middleware) allow(w http.ResponseWriter, r *http.Request, object, action string) bool {
	subject := auth.SubjectFromContext(r.Context())
	if subject == nil {
		m.respond(w, r, auth.ErrNoCredentials)
		return false
	}

	allowed, err := m.enforcer.EnforceWithRoles(subject.ID, subject.Roles, object, action)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("object", object).Msg("Authorization error")
		m.respond(w, r, err)
		return false
	}
	if !allowed {
		logging.Ctx(r.Context()).Warn().
			Str("user_id", subject.ID).
			Str("object", object).
			Str("action", action).
			Msg("Authorization denied")
		m.respond(w, r, ErrForbidden)
		return false
	}
	return true
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ActionWrite
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}
