// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/placy/placy/internal/auth"
	"github.com/placy/placy/internal/auth/memory"
	"github.com/placy/placy/internal/auth/postgres"
	"github.com/placy/placy/internal/config"
	"github.com/placy/placy/internal/httpapi"
	"github.com/placy/placy/internal/logging"
	"github.com/placy/placy/internal/notify"
	"github.com/placy/placy/internal/observability"
	"github.com/placy/placy/internal/store"
	"github.com/placy/placy/pkg/errutil"
)

// serveFlagKeys maps serve flags to config keys.
var serveFlagKeys = map[string]string{
	"addr":           "server.addr",
	"metrics-addr":   "metrics.addr",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"store":          "store.driver",
	"database-url":   "store.database_url",
	"auto-migrate":   "store.auto_migrate",
	"notifier":       "notifier.driver",
	"redis-url":      "redis.url",
	"purge-interval": "otp.purge_interval",
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API that handles signup, login, token refresh and
password resets. Settings come from --config, PLACY_* environment
variables and the flags below, in increasing order of precedence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, serveFlagKeys)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	cmd.Flags().String("addr", def.Server.Addr, "API listen address")
	cmd.Flags().String("metrics-addr", def.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", def.Log.Format, "log format (json or text)")
	cmd.Flags().String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().String("store", def.Store.Driver, "credential store (memory or postgres)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().Bool("auto-migrate", def.Store.AutoMigrate, "apply pending migrations on startup")
	cmd.Flags().String("notifier", def.Notifier.Driver, "reset code delivery (log or redis)")
	cmd.Flags().String("redis-url", "", "Redis URL for the redis notifier")
	cmd.Flags().Duration("purge-interval", def.OTP.PurgeInterval, "how often spent one-time codes are deleted (0 = never)")

	return cmd
}

// runServeWithDeps starts the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreFactory == nil {
		deps.StoreFactory = openStore
	}
	if deps.NotifierFactory == nil {
		deps.NotifierFactory = openNotifier
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, extra ...prometheus.Collector) ObservabilityServer {
			return observability.NewServer(addr, ready, extra...)
		}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	ver := serviceVersion(version)
	logger := logging.SetDefault(logging.Options{
		Service: "placy",
		Version: ver,
		Format:  cfg.Log.Format,
		Level:   level,
		Output:  deps.LogOutput,
	})

	logger.InfoContext(ctx, "starting placy",
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Driver,
		"notifier", cfg.Notifier.Driver,
		"database_url", cfg.Redacted().Store.DatabaseURL)
	if cfg.Token.Secret == "" {
		logger.WarnContext(ctx, "token.secret is empty; signup, login and refresh will fail until it is set")
	}

	credStore, closeStore, err := deps.StoreFactory(ctx, cfg.Store)
	if err != nil {
		return oops.With("operation", "open credential store").Wrap(err)
	}
	defer closeStore()

	notifier, closeNotifier, err := deps.NotifierFactory(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open notifier").Wrap(err)
	}
	defer closeNotifier()

	codec, err := auth.NewTokenCodec(cfg.TokenSettings(), nil)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(auth.ServiceConfig{
		Store:    credStore,
		Notifier: notifier,
		Tokens:   codec,
		Hasher:   auth.NewArgon2idHasher(cfg.HashParams()),
		Settings: cfg.AuthSettings(ver),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	var janitor *auth.OTPJanitor
	if purger, ok := credStore.(auth.OTPPurger); ok && cfg.OTP.PurgeInterval > 0 {
		janitor, err = auth.NewOTPJanitor(purger, cfg.OTP.PurgeInterval, logger, nil)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	listener, err := deps.ListenerFactory("tcp", cfg.Server.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}

	var ready atomic.Bool

	var obsServer ObservabilityServer
	var httpMetrics *observability.HTTPMetrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready.Load, auth.Collectors()...)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			if closeErr := listener.Close(); closeErr != nil {
				logger.Debug("error closing API listener", "error", closeErr)
			}
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		httpMetrics = obsServer.HTTPMetrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	server := &http.Server{
		Handler:           httpapi.NewRouter(svc, httpapi.Options{Logger: logger, Metrics: httpMetrics}),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	errChan := make(chan error, 1)
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	var background sync.WaitGroup
	if janitor != nil {
		background.Go(func() { janitor.Run(ctx) })
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ready.Store(true)
	cmd.Printf("placy listening on %s\n", listener.Addr())
	logger.Info("placy ready", "addr", listener.Addr().String(), "version", ver)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		runErr = oops.Code("SERVER_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
		errutil.LogError(logger, "API server failed", runErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping API server", "error", err)
	}
	cancel()
	background.Wait()

	if err := svc.Close(shutdownCtx); err != nil {
		logger.Warn("reset code deliveries still pending at shutdown", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

// openStore opens the configured credential store. The postgres store
// waits for the database, then applies migrations when auto_migrate is set.
func openStore(ctx context.Context, cfg config.StoreConfig) (auth.CredentialStore, func(), error) {
	if cfg.Driver != config.StorePostgres {
		return memory.NewStore(nil), func() {}, nil
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL, cfg.ConnectRetries)
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := autoMigrate(cfg.DatabaseURL, newMigrator); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return postgres.NewStore(pool), pool.Close, nil
}

// autoMigrate applies pending migrations and always closes the migrator.
func autoMigrate(databaseURL string, factory func(string) (Migrator, error)) (err error) {
	m, err := factory(databaseURL)
	if err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	version, _, err := m.Version()
	if err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	slog.Info("database schema up to date", "version", version)
	return nil
}

// openNotifier opens the configured reset code notifier.
func openNotifier(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.Notifier, func(), error) {
	if cfg.Notifier.Driver != config.NotifierRedis {
		logger.WarnContext(ctx, "reset codes are written to the log in plaintext; use the redis notifier outside development",
			"notifier", cfg.Notifier.Driver)
		return notify.NewLogNotifier(logger), func() {}, nil
	}

	client, err := notify.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Warn("error closing redis client", "error", err)
		}
	}
	return notify.NewRedisNotifier(client, cfg.Redis.Queue), closeClient, nil
}

// monitorServerErrors cancels ctx when a server reports a failure.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
