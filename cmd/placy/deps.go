// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/placy/placy/internal/auth"
	"github.com/placy/placy/internal/config"
	"github.com/placy/placy/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoreFactory opens the credential store and returns a func that
	// releases it.
	// Default: openStore
	StoreFactory func(ctx context.Context, cfg config.StoreConfig) (auth.CredentialStore, func(), error)

	// NotifierFactory opens the reset code notifier.
	// Default: openNotifier
	NotifierFactory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.Notifier, func(), error)

	// ObservabilityServerFactory creates the metrics and probe server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, extra ...prometheus.Collector) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// LogOutput receives the process log.
	// Default: os.Stderr
	LogOutput io.Writer
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	HTTPMetrics() *observability.HTTPMetrics
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Pending() ([]uint, error)
	Applied() ([]uint, error)
	Close() error
}
