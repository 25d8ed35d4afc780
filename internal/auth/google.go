// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/tomtom215/aeolus/internal/config"
	"github.com/tomtom215/aeolus/internal/logging"
)

// DefaultGoogleIssuer is Google's OIDC issuer.
const DefaultGoogleIssuer = "https://accounts.google.com"

// GoogleIdentity is the verified content of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Audience      string
	ExpiresAt     time.Time
}

// IDTokenVerifier verifies a raw Google ID token.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (*GoogleIdentity, error)
}

// GoogleVerifier verifies Google ID tokens with the certified zitadel
// relying party. Discovery runs on first use so a Google outage at startup
// does not keep the server down. Calls go through a circuit breaker; only
// provider outages count as breaker failures.
type GoogleVerifier struct {
	cfg        config.GoogleConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[interface{}]

	mu        sync.Mutex
	verifiers []*rp.IDTokenVerifier
}

// NewGoogleVerifier creates a verifier. breaker may be nil.
func NewGoogleVerifier(cfg config.GoogleConfig, breaker *gobreaker.CircuitBreaker[interface{}]) *GoogleVerifier {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultGoogleIssuer
	}
	return &GoogleVerifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    breaker,
	}
}

// IsGoogleUnavailable classifies errors for the breaker. Bad tokens are
// the caller's fault and must not trip it.
func IsGoogleUnavailable(err error) bool {
	return errors.Is(err, ErrAuthenticatorUnavailable)
}

// Issuer returns the configured issuer.
func (v *GoogleVerifier) Issuer() string {
	return v.cfg.Issuer
}

// audiences lists the accepted aud values, client ID first.
func (v *GoogleVerifier) audiences() []string {
	auds := make([]string, 0, 1+len(v.cfg.AllowedAudiences))
	if v.cfg.ClientID != "" {
		auds = append(auds, v.cfg.ClientID)
	}
	for _, a := range v.cfg.AllowedAudiences {
		if a != "" && !slices.Contains(auds, a) {
			auds = append(auds, a)
		}
	}
	return auds
}

// VerifyIDToken checks signature, issuer, audience and expiry.
func (v *GoogleVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*GoogleIdentity, error) {
	if v.breaker == nil {
		return v.verify(ctx, rawIDToken)
	}

	res, err := v.breaker.Execute(func() (interface{}, error) {
		return v.verify(ctx, rawIDToken)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: google verifier: %w", ErrAuthenticatorUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return res.(*GoogleIdentity), nil
}

func (v *GoogleVerifier) verify(ctx context.Context, rawIDToken string) (*GoogleIdentity, error) {
	verifiers, err := v.ensureVerifiers(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i, verifier := range verifiers {
		claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, rawIDToken, verifier)
		if err == nil {
			return identityFromClaims(claims, v.audiences()[i]), nil
		}
		lastErr = err
		if !isAudienceError(err) {
			break
		}
	}
	return nil, mapVerificationError(lastErr)
}

// ensureVerifiers runs discovery once per accepted audience. A failed
// discovery is retried on the next call.
func (v *GoogleVerifier) ensureVerifiers(ctx context.Context) ([]*rp.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.verifiers != nil {
		return v.verifiers, nil
	}

	auds := v.audiences()
	if len(auds) == 0 {
		return nil, fmt.Errorf("%w: no google client id configured", ErrAuthenticatorUnavailable)
	}

	verifiers := make([]*rp.IDTokenVerifier, 0, len(auds))
	for _, aud := range auds {
		relyingParty, err := rp.NewRelyingPartyOIDC(ctx,
			v.cfg.Issuer,
			aud,
			v.cfg.ClientSecret,
			"",
			[]string{oidc.ScopeOpenID, oidc.ScopeEmail, oidc.ScopeProfile},
			rp.WithHTTPClient(v.httpClient),
		)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("issuer", v.cfg.Issuer).Msg("Google OIDC discovery failed")
			return nil, fmt.Errorf("%w: discovery: %w", ErrAuthenticatorUnavailable, err)
		}
		verifiers = append(verifiers, relyingParty.IDTokenVerifier())
	}
	v.verifiers = verifiers
	return verifiers, nil
}

func identityFromClaims(c *oidc.IDTokenClaims, aud string) *GoogleIdentity {
	return &GoogleIdentity{
		Subject:       c.Subject,
		Email:         c.Email,
		EmailVerified: bool(c.EmailVerified),
		Name:          c.Name,
		Picture:       c.Picture,
		Audience:      aud,
		ExpiresAt:     c.GetExpiration(),
	}
}

func isAudienceError(err error) bool {
	return errors.Is(err, oidc.ErrAudience) || strings.Contains(err.Error(), "audience")
}

func mapVerificationError(err error) error {
	if err == nil {
		return fmt.Errorf("%w: id token rejected", ErrInvalidCredentials)
	}
	if errors.Is(err, ErrAuthenticatorUnavailable) {
		return err
	}

	errStr := err.Error()
	switch {
	case errors.Is(err, oidc.ErrExpired) || strings.Contains(errStr, "expired"):
		return fmt.Errorf("%w: id token expired", ErrExpiredCredentials)
	case strings.Contains(errStr, "fetching keys") || strings.Contains(errStr, "connection"):
		return fmt.Errorf("%w: %w", ErrAuthenticatorUnavailable, err)
	case strings.Contains(errStr, "issuer"):
		logging.Warn().Err(err).Msg("Google token issuer mismatch")
		return fmt.Errorf("%w: issuer mismatch", ErrInvalidCredentials)
	case isAudienceError(err):
		logging.Warn().Err(err).Msg("Google token audience mismatch")
		return fmt.Errorf("%w: audience mismatch", ErrInvalidCredentials)
	default:
		logging.Debug().Err(err).Msg("Google token verification failed")
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
}

// GoogleAuthenticator accepts a Google ID token as a bearer credential and
// resolves it to the local user.
type GoogleAuthenticator struct {
	logins *LoginService
	issuer string
}

// NewGoogleAuthenticator creates the Google authenticator.
func NewGoogleAuthenticator(logins *LoginService, issuer string) *GoogleAuthenticator {
	if issuer == "" {
		issuer = DefaultGoogleIssuer
	}
	return &GoogleAuthenticator{logins: logins, issuer: issuer}
}

// Authenticate verifies a bearer Google ID token.
func (a *GoogleAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*AuthSubject, error) {
	token := bearerToken(r)
	if token == "" || IsAPIKey(token) {
		return nil, ErrNoCredentials
	}
	if iss, ok := unverifiedIssuer(token); !ok || !a.matchesIssuer(iss) {
		return nil, ErrNoCredentials
	}

	subject, _, err := a.logins.ResolveGoogle(ctx, token)
	return subject, err
}

// Google tokens are issued with either form of the issuer.
func (a *GoogleAuthenticator) matchesIssuer(iss string) bool {
	return iss == a.issuer || "https://"+iss == a.issuer
}

// Name returns the authenticator name.
func (a *GoogleAuthenticator) Name() string {
	return string(MethodGoogle)
}

// Priority returns 30; verification may need network access.
func (a *GoogleAuthenticator) Priority() int {
	return 30
}
