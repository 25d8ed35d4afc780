// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package authz

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/aeolus/internal/config"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/metrics"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath and PolicyPath override the embedded files when the file
	// exists.
	ModelPath  string
	PolicyPath string

	// ReloadInterval enables policy reload from PolicyPath. Zero disables
	// it.
	ReloadInterval time.Duration

	// DefaultRole is held by every signed-in user.
	DefaultRole string

	// AdminUserIDs are granted RoleAdmin at startup.
	AdminUserIDs []string

	// CacheTTL enables decision caching when positive.
	CacheTTL time.Duration
}

// DefaultEnforcerConfig returns default configuration.
func DefaultEnforcerConfig() *EnforcerConfig {
	return &EnforcerConfig{
		DefaultRole: RoleUser,
		CacheTTL:    5 * time.Minute,
	}
}

// ConfigFromSecurity builds the enforcer configuration from the security
// settings.
func ConfigFromSecurity(sec *config.SecurityConfig) *EnforcerConfig {
	cfg := DefaultEnforcerConfig()
	cfg.ModelPath = sec.CasbinModelPath
	cfg.PolicyPath = sec.CasbinPolicyPath
	cfg.AdminUserIDs = sec.AdminUserIDs
	if cfg.PolicyPath != "" {
		cfg.ReloadInterval = 30 * time.Second
	}
	return cfg
}

// Enforcer wraps the Casbin enforcer with a decision cache.
type Enforcer struct {
	config   *EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *enforcementCache
}

// NewEnforcer loads the model and policy and grants the configured admins.
func NewEnforcer(cfg *EnforcerConfig) (*Enforcer, error) {
	if cfg == nil {
		cfg = DefaultEnforcerConfig()
	}

	var m model.Model
	var err error
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	usePolicyFile := cfg.PolicyPath != "" && fileExists(cfg.PolicyPath)
	if usePolicyFile {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if usePolicyFile && cfg.ReloadInterval > 0 {
		enforcer.StartAutoLoadPolicy(cfg.ReloadInterval)
	}

	e := &Enforcer{config: cfg, enforcer: enforcer}
	if cfg.CacheTTL > 0 {
		e.cache = newEnforcementCache(cfg.CacheTTL)
	}

	for _, id := range cfg.AdminUserIDs {
		if id == "" {
			continue
		}
		if _, err := e.AddRoleForUser(id, RoleAdmin); err != nil {
			e.Close()
			return nil, err
		}
	}
	logging.Info().Int("admins", len(cfg.AdminUserIDs)).Bool("policy_file", usePolicyFile).Msg("Authorization enforcer ready")
	return e, nil
}

// loadEmbeddedPolicy parses policy CSV lines into the enforcer.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 3 {
			continue
		}

		switch parts[0] {
		case "p":
			if len(parts) >= 4 {
				if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
					return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
				}
			}
		case "g":
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		}
	}
	return nil
}

// Enforce checks if subject may perform action on object.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	if e.cache != nil {
		if allowed, ok := e.cache.get(subject, object, action); ok {
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}

	if e.cache != nil {
		e.cache.set(subject, object, action, allowed)
	}
	return allowed, nil
}

// EnforceWithRoles allows the request if the subject or any of roles may
// perform it. Subjects with no roles fall back to DefaultRole.
func (e *Enforcer) EnforceWithRoles(subject string, roles []string, object, action string) (bool, error) {
	if len(roles) == 0 && e.config.DefaultRole != "" {
		roles = []string{e.config.DefaultRole}
	}

	allowed, err := e.Enforce(subject, object, action)
	for i := 0; err == nil && !allowed && i < len(roles); i++ {
		allowed, err = e.Enforce(roles[i], object, action)
	}
	if err != nil {
		return false, err
	}

	result := "denied"
	if allowed {
		result = "allowed"
	}
	metrics.AuthzDecisions.WithLabelValues(action, result).Inc()
	return allowed, nil
}

// RolesForUser returns the default role followed by the user's assigned
// roles. It is consulted when a session is issued.
func (e *Enforcer) RolesForUser(userID string) ([]string, error) {
	assigned, err := e.enforcer.GetRolesForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	roles := make([]string, 0, 1+len(assigned))
	if e.config.DefaultRole != "" {
		roles = append(roles, e.config.DefaultRole)
	}
	for _, r := range assigned {
		if !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

// AddRoleForUser assigns a role to a user.
func (e *Enforcer) AddRoleForUser(user, role string) (bool, error) {
	added, err := e.enforcer.AddGroupingPolicy(user, role)
	if err != nil {
		return false, fmt.Errorf("failed to add role: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateSubject(user)
	}
	return added, nil
}

// DeleteRoleForUser removes a role from a user.
func (e *Enforcer) DeleteRoleForUser(user, role string) (bool, error) {
	removed, err := e.enforcer.RemoveGroupingPolicy(user, role)
	if err != nil {
		return false, fmt.Errorf("failed to remove role: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateSubject(user)
	}
	return removed, nil
}

// Close stops policy reload and the cache janitor.
func (e *Enforcer) Close() {
	e.enforcer.StopAutoLoadPolicy()
	if e.cache != nil {
		e.cache.stop()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
