// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/tomtom215/aeolus/internal/config"
)

func TestGoogleVerifier_Audiences(t *testing.T) {
	v := NewGoogleVerifier(config.GoogleConfig{
		ClientID:         "web.apps.googleusercontent.com",
		AllowedAudiences: []string{"android.apps.googleusercontent.com", "web.apps.googleusercontent.com", ""},
	}, nil)

	got := v.audiences()
	want := []string{"web.apps.googleusercontent.com", "android.apps.googleusercontent.com"}
	if len(got) != len(want) {
		t.Fatalf("audiences() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("audiences()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if v.Issuer() != DefaultGoogleIssuer {
		t.Errorf("Issuer() = %q", v.Issuer())
	}
}

func TestGoogleVerifier_NoClientID(t *testing.T) {
	v := NewGoogleVerifier(config.GoogleConfig{}, nil)
	_, err := v.VerifyIDToken(context.Background(), "token")
	if !errors.Is(err, ErrAuthenticatorUnavailable) {
		t.Errorf("VerifyIDToken() error = %v, want ErrAuthenticatorUnavailable", err)
	}
}

func TestGoogleVerifier_BreakerOpens(t *testing.T) {
	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:         "google-verifier-test",
		Timeout:      time.Minute,
		IsSuccessful: func(err error) bool { return err == nil || !IsGoogleUnavailable(err) },
		ReadyToTrip:  func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
	})
	v := NewGoogleVerifier(config.GoogleConfig{}, breaker)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := v.VerifyIDToken(ctx, "token"); !errors.Is(err, ErrAuthenticatorUnavailable) {
			t.Fatalf("call %d error = %v", i, err)
		}
	}
	if breaker.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", breaker.State())
	}

	_, err := v.VerifyIDToken(ctx, "token")
	if !errors.Is(err, ErrAuthenticatorUnavailable) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("open breaker error = %v", err)
	}
}

func TestMapVerificationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, ErrInvalidCredentials},
		{"expired sentinel", fmt.Errorf("verify: %w", oidc.ErrExpired), ErrExpiredCredentials},
		{"expired text", errors.New("token is expired"), ErrExpiredCredentials},
		{"audience", fmt.Errorf("verify: %w", oidc.ErrAudience), ErrInvalidCredentials},
		{"issuer", errors.New("issuer does not match"), ErrInvalidCredentials},
		{"signature", errors.New("signature invalid"), ErrInvalidCredentials},
		{"key fetch", errors.New("fetching keys failed: dial tcp"), ErrAuthenticatorUnavailable},
		{"already unavailable", fmt.Errorf("%w: discovery", ErrAuthenticatorUnavailable), ErrAuthenticatorUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapVerificationError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("mapVerificationError() = %v, want %v", got, tt.want)
			}
		})
	}
}
