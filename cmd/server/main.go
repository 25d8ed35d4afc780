// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tomtom215/aeolus/internal/accounts"
	"github.com/tomtom215/aeolus/internal/api"
	"github.com/tomtom215/aeolus/internal/auth"
	"github.com/tomtom215/aeolus/internal/authz"
	"github.com/tomtom215/aeolus/internal/config"
	"github.com/tomtom215/aeolus/internal/database"
	"github.com/tomtom215/aeolus/internal/events"
	"github.com/tomtom215/aeolus/internal/ingest"
	"github.com/tomtom215/aeolus/internal/ledger"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/mqtt"
	"github.com/tomtom215/aeolus/internal/points"
	"github.com/tomtom215/aeolus/internal/relational"
	"github.com/tomtom215/aeolus/internal/supervisor"
	"github.com/tomtom215/aeolus/internal/supervisor/services"
)

//nolint:gocyclo // sequential startup wiring
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("telemetry_path", cfg.Telemetry.Path).
		Str("ledger_driver", cfg.Ledger.Driver).
		Bool("google_auth", cfg.Security.Google.Enabled).
		Bool("mqtt", cfg.MQTT.Enabled).
		Msg("Starting Aeolus")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry store (DuckDB)
	tdb, err := database.New(&cfg.Telemetry)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize telemetry store")
	}
	defer closeLogged("telemetry store", tdb.Close)

	// Ledger, users, API keys and clients (gorm)
	gdb, err := relational.Open(&cfg.Ledger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer closeLogged("ledger database", func() error { return relational.Close(gdb) })

	ledgerStore := ledger.NewStore(gdb)
	accountStore := accounts.NewStore(gdb)
	if err := relational.Migrate(ctx, ledgerStore, accountStore); err != nil {
		logging.Fatal().Err(err).Msg("Failed to migrate ledger database")
	}

	loc, err := cfg.Points.Location()
	if err != nil {
		logging.Fatal().Err(err).Str("timezone", cfg.Points.Timezone).Msg("Invalid points timezone")
	}
	pointsCfg, err := points.NewConfig(cfg.Points.PerHour, cfg.Points.PerDay, loc)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid points configuration")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Domain events. A nil publisher disables publishing in the coordinator.
	var publisher ingest.EventPublisher
	if cfg.Events.Enabled {
		pub, err := events.New(&cfg.Events)
		if err != nil {
			logging.Fatal().Err(err).Str("backend", cfg.Events.Backend).Msg("Failed to create event publisher")
		}
		defer closeLogged("event publisher", pub.Close)
		publisher = pub

		activity, err := events.NewActivityLog(pub, &cfg.Events)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create activity log consumer")
		}
		defer closeLogged("activity log", activity.Close)
		tree.AddIngestService(activity)
	}

	coordinator := ingest.NewCoordinator(tdb, ingest.LedgerStore(ledgerStore), points.NewEngine(pointsCfg), publisher, ingest.Options{
		FutureHorizon:    cfg.Ingest.FutureHorizon,
		MaxBatchSize:     cfg.Ingest.MaxBatchSize,
		TrailingSentinel: cfg.Ingest.TrailingSentinel,
	})

	// Identity
	tokens, err := auth.NewTokenManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create token manager")
	}

	var revocations auth.RevocationStore
	if cfg.Security.SessionStorePath != "" {
		store, err := auth.OpenBadgerRevocationStore(cfg.Security.SessionStorePath)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open session revocation store")
		}
		tree.AddStorageService(store)
		revocations = store
	} else {
		logging.Warn().Msg("Session revocations kept in memory; logouts are forgotten on restart")
		revocations = auth.NewMemoryRevocationStore()
	}
	defer closeLogged("revocation store", revocations.Close)

	enforcer, err := authz.NewEnforcer(authz.ConfigFromSecurity(&cfg.Security))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create authorization enforcer")
	}
	defer enforcer.Close()

	apiKeys := auth.NewAPIKeyManager(accountStore, bcrypt.DefaultCost)
	clients := auth.NewClientManager(accountStore, tokens, bcrypt.DefaultCost)

	authenticator := auth.NewMultiAuthenticator(
		auth.NewAPIKeyAuthenticator(apiKeys),
		auth.NewSessionAuthenticator(tokens, revocations),
		auth.NewClientTokenAuthenticator(tokens, revocations),
	)

	var logins *auth.LoginService
	if cfg.Security.Google.Enabled {
		breakerCfg := events.DefaultBreakerConfig()
		breakerCfg.Name = "google-id-token"
		breakerCfg.IsSuccessful = func(err error) bool {
			return err == nil || !auth.IsGoogleUnavailable(err)
		}
		verifier := auth.NewGoogleVerifier(cfg.Security.Google, events.NewCircuitBreaker(breakerCfg))
		logins = auth.NewLoginService(verifier, accountStore, enforcer, tokens, revocations)
		authenticator.AddAuthenticator(auth.NewGoogleAuthenticator(logins, verifier.Issuer()))
	} else {
		logins = auth.NewLoginService(nil, accountStore, enforcer, tokens, revocations)
	}

	// HTTP
	handler := api.NewHandler(api.Dependencies{
		Ingest:    coordinator,
		Telemetry: tdb,
		Points:    ledgerStore,
		Users:     accountStore,
		Logins:    logins,
		APIKeys:   apiKeys,
		Clients:   clients,
		Checks:    readinessChecks(tdb, gdb),
	}, cfg.Server.IsProduction())

	router := api.NewRouter(handler,
		auth.NewMiddleware(authenticator, api.ErrorResponder()),
		authz.NewMiddleware(enforcer, api.ErrorResponder()),
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)),
	)

	server := services.NewHTTPServer(cfg.Server, router.Setup())
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	if cfg.MQTT.Enabled {
		tree.AddIngestService(mqtt.NewBridge(cfg.MQTT, coordinator, apiKeys))
		logging.Info().Str("broker", cfg.MQTT.Broker).Str("topic", cfg.MQTT.Topic).Msg("MQTT bridge enabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Aeolus stopped")
}

func readinessChecks(tdb *database.DB, gdb *gorm.DB) []api.HealthCheck {
	return []api.HealthCheck{
		{Name: "telemetry", Check: tdb.Ping},
		{Name: "ledger", Check: func(ctx context.Context) error { return relational.Ping(ctx, gdb) }},
	}
}

func closeLogged(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logging.Error().Err(err).Str("component", name).Msg("Error during shutdown")
	}
}
