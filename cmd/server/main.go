// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

// Package main is the Arkivo reference server.
//
// Arkivo is a multi-tenant entry and document store. This binary wires the
// security control plane (token verification, the authentication chain,
// replay and lockout protection, and the ACL evaluator) to an HTTP API and
// a BadgerDB-backed entry store.
//
// # Startup order
//
//  1. Configuration: koanf with layered sources (defaults, yaml file,
//     ARKIVO_* environment variables)
//  2. Logging: zerolog, JSON or console format
//  3. Stores: BadgerDB when server.data_dir is set, in-memory otherwise
//  4. Control plane: guard, captcha verifier, authentication chain,
//     ACL evaluator
//  5. Supervisor tree: maintenance janitors and the HTTP server
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests within server.shutdown_timeout, then the stores close.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/arkivo-dms/arkivo/internal/api"
	"github.com/arkivo-dms/arkivo/internal/authn"
	"github.com/arkivo-dms/arkivo/internal/authz"
	"github.com/arkivo-dms/arkivo/internal/config"
	"github.com/arkivo-dms/arkivo/internal/guard"
	"github.com/arkivo-dms/arkivo/internal/logging"
	"github.com/arkivo-dms/arkivo/internal/store"
	"github.com/arkivo-dms/arkivo/internal/supervisor"
	"github.com/arkivo-dms/arkivo/internal/supervisor/services"
)

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
		Str("listen_addr", cfg.Server.ListenAddr).
		Int("tenants", len(cfg.Tenants)).
		Bool("persistent", cfg.Server.DataDir != "").
		Msg("Starting Arkivo")

	// Stores. An empty data_dir selects the in-memory implementations,
	// which is the development and test configuration.
	var (
		entries  store.EntryStore
		counters store.CounterStore
		sessions authn.SessionStore
		db       *badger.DB
	)
	if cfg.Server.DataDir != "" {
		db, err = badger.Open(badger.DefaultOptions(cfg.Server.DataDir).WithLogger(nil))
		if err != nil {
			logging.Fatal().Err(err).Str("dir", cfg.Server.DataDir).Msg("Failed to open badger store")
		}
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing badger store")
			}
		}()
		entries = store.NewBadgerEntryStore(db)
		counters = store.NewBadgerCounterStore(db)
		sessions = authn.NewBadgerSessionStore(db)
	} else {
		entries = store.NewMemoryEntryStore()
		counters = store.NewMemoryCounterStore()
		sessions = authn.NewMemorySessionStore()
	}

	g := guard.New(counters, cfg)
	captcha := guard.CaptchaFromConfig(cfg.Security.Captcha)

	chain, err := authn.NewChain(entries, sessions, g, captcha, cfg, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build authentication chain")
	}

	eval := authz.NewEvaluator(entries, cfg.Security.AdminGroup, authz.NewAuditLogger(false))
	provisioner := authn.NewProvisioner(entries)

	handler := api.NewHandler(entries, eval, chain, provisioner, cfg)
	mw := api.NewMiddleware(api.MiddlewareConfig{
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})
	router := api.NewRouter(handler, mw, chain, api.TenantFromHeader(api.DefaultTenant))

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	tree.AddMaintenanceService(services.NewJanitorService("session-sweeper", 10*time.Minute, func(ctx context.Context) error {
		n, err := chain.SweepSessions(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logging.Ctx(ctx).Debug().Int("count", n).Msg("Swept expired sessions")
		}
		return nil
	}))
	if db != nil {
		tree.AddMaintenanceService(services.NewJanitorService("badger-gc", 30*time.Minute, func(context.Context) error {
			// ErrNoRewrite just means there was nothing to collect.
			if err := db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				return err
			}
			return nil
		}))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Arkivo stopped gracefully")
}
