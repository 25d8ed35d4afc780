// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package authz enforces role-based access to the HTTP API with Casbin.
//
// Requests pass through authentication first, then authorization:
//
//	Request -> auth.Middleware -> authz.Middleware -> Handler
//
// # Model
//
// The embedded model grants a role an action on a keyMatch2 path pattern.
// A policy action of "*" matches every action:
//
//	m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
//
// # Roles
//
//   - user: every signed-in contributor. Reads points, submits and reads
//     telemetry, manages their own API keys and clients.
//   - admin: inherits user and may call /api/v1/admin/*.
//
// Admins are listed in security.admin_user_ids and granted the role at
// startup. [Enforcer.RolesForUser] supplies the role list embedded into a
// session token at login.
//
// # Overrides
//
// security.casbin_model_path and security.casbin_policy_path replace the
// embedded files when they exist. A file policy is reloaded every 30
// seconds.
package authz
