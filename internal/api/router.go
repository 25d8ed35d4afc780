// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/aeolus/internal/auth"
	"github.com/tomtom215/aeolus/internal/authz"
	"github.com/tomtom215/aeolus/internal/middleware"
	"github.com/tomtom215/aeolus/internal/models"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler *Handler
	authn   *auth.Middleware
	authz   *authz.Middleware
	chi     *ChiMiddleware
}

// NewRouter creates a router. authn and authzMW must use
// ErrorResponder so failures share the JSON envelope.
func NewRouter(handler *Handler, authn *auth.Middleware, authzMW *authz.Middleware, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, authn: authn, authz: authzMW, chi: chiMW}
}

// ErrorResponder is the auth.ErrorResponder used by the identity and
// policy middleware.
func ErrorResponder() auth.ErrorResponder {
	return respondError
}

// Setup builds the route tree.
//
// Route groups rather than sub-routers are used below /api/v1 so that
// the authz middleware sees the complete route pattern.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.SecurityHeaders)
	r.Use(router.chi.CORS())

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeEnvelope(w, http.StatusMethodNotAllowed, &models.APIResponse{
			Status:   "error",
			Error:    &models.APIError{Code: CodeBadRequest, Message: "Method not allowed"},
			Metadata: metadata(req),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(router.chi.RateLimitCustom("health", RateLimitHealth))
		r.Get("/api/v1/health", h.HealthLive)
		r.Get("/api/v1/health/ready", h.HealthReady)
	})

	r.Group(func(r chi.Router) {
		r.Use(router.chi.RateLimitCustom("auth", RateLimitAuth))
		r.Post("/api/v1/auth/google", h.AuthGoogle)
		r.Post("/api/v1/auth/token", h.AuthToken)
		r.With(router.authn.RequireAuth).Post("/api/v1/auth/logout", h.AuthLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(router.chi.RateLimit())
		r.Use(router.authn.RequireAuth)
		r.Use(router.authz.AuthorizeRequest)

		writeTelemetry := router.authn.RequireScope(string(models.ScopeWriteTelemetry))
		readTelemetry := router.authn.RequireScope(string(models.ScopeReadTelemetry))
		readPoints := router.authn.RequireScope(string(models.ScopeReadPoints))

		r.Get("/api/v1/users/me", h.UsersMe)

		for path, kind := range map[string]models.StreamKind{
			"/api/v1/weather-stations/{streamID}/data": models.StreamWeatherStation,
			"/api/v1/kite-players/{streamID}/data":     models.StreamKitePlayer,
		} {
			r.With(writeTelemetry).Post(path, h.SubmitTelemetry(kind))
			r.With(readTelemetry).Get(path, h.ListTelemetry(kind))
		}

		r.With(readPoints).Get("/api/v1/points/me", h.PointsMe)
		r.With(readPoints).Get("/api/v1/points/me/transactions", h.PointsTransactions)
		r.With(readPoints).Get("/api/v1/points/leaderboard", h.Leaderboard)

		r.Get("/api/v1/api-keys", h.ListAPIKeys)
		r.Post("/api/v1/api-keys", h.CreateAPIKey)
		r.Delete("/api/v1/api-keys/{id}", h.RevokeAPIKey)
		r.Get("/api/v1/clients", h.ListClients)
		r.Post("/api/v1/clients", h.CreateClient)

		r.Put("/api/v1/admin/points/{userID}/freeze", h.AdminFreeze)
		r.Get("/api/v1/admin/points/{userID}/reconcile", h.AdminReconcile)
	})

	return r
}
