// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/tomtom215/aeolus/internal/metrics"
)

// MultiAuthenticator tries authenticators in priority order.
//
// Error handling:
//   - ErrNoCredentials: try the next authenticator
//   - ErrAuthenticatorUnavailable: try the next authenticator
//   - anything else: stop and return the error
type MultiAuthenticator struct {
	mu             sync.RWMutex
	authenticators []Authenticator
}

// NewMultiAuthenticator creates a chain sorted by priority.
func NewMultiAuthenticator(authenticators ...Authenticator) *MultiAuthenticator {
	m := &MultiAuthenticator{
		authenticators: make([]Authenticator, 0, len(authenticators)),
	}
	m.authenticators = append(m.authenticators, authenticators...)
	m.sortByPriority()
	return m
}

// AddAuthenticator adds an authenticator to the chain.
func (m *MultiAuthenticator) AddAuthenticator(a Authenticator) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.authenticators = append(m.authenticators, a)
	m.sortByPriority()
}

// Authenticators returns the chain in priority order.
func (m *MultiAuthenticator) Authenticators() []Authenticator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Authenticator, len(m.authenticators))
	copy(result, m.authenticators)
	return result
}

// Authenticate tries each authenticator in priority order.
func (m *MultiAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*AuthSubject, error) {
	authenticators := m.Authenticators()
	if len(authenticators) == 0 {
		return nil, ErrNoCredentials
	}

	lastErr := ErrNoCredentials
	for _, a := range authenticators {
		subject, err := a.Authenticate(ctx, r)
		if err == nil {
			metrics.AuthAttempts.WithLabelValues(a.Name(), "success").Inc()
			return subject, nil
		}

		lastErr = err
		if shouldTryNext(err) {
			if errors.Is(err, ErrAuthenticatorUnavailable) {
				metrics.AuthAttempts.WithLabelValues(a.Name(), "unavailable").Inc()
			}
			continue
		}

		metrics.AuthAttempts.WithLabelValues(a.Name(), outcomeLabel(err)).Inc()
		return nil, err
	}
	return nil, lastErr
}

// Name returns the authenticator name.
func (m *MultiAuthenticator) Name() string {
	return string(MethodMulti)
}

// Priority is 0 since the chain wraps every other authenticator.
func (m *MultiAuthenticator) Priority() int {
	return 0
}

func shouldTryNext(err error) bool {
	return errors.Is(err, ErrNoCredentials) || errors.Is(err, ErrAuthenticatorUnavailable)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrExpiredCredentials):
		return "expired"
	case errors.Is(err, ErrRevokedCredentials):
		return "revoked"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid"
	default:
		return "error"
	}
}

// sortByPriority assumes the caller holds the write lock.
func (m *MultiAuthenticator) sortByPriority() {
	sort.SliceStable(m.authenticators, func(i, j int) bool {
		return m.authenticators[i].Priority() < m.authenticators[j].Priority()
	})
}
