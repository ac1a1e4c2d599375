// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

// Package config loads placy settings from defaults, a YAML file, PLACY_*
// environment variables and command-line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"net/url"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/placy/placy/internal/auth"
	"github.com/placy/placy/internal/logging"
)

// Store and notifier drivers.
const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	NotifierLog    = "log"
	NotifierRedis  = "redis"
	redactedSecret = "[redacted]"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" json:"server" yaml:"server"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Log      LogConfig      `koanf:"log" json:"log" yaml:"log"`
	Store    StoreConfig    `koanf:"store" json:"store" yaml:"store"`
	Notifier NotifierConfig `koanf:"notifier" json:"notifier" yaml:"notifier"`
	Redis    RedisConfig    `koanf:"redis" json:"redis" yaml:"redis"`
	Token    TokenConfig    `koanf:"token" json:"token" yaml:"token"`
	OTP      OTPConfig      `koanf:"otp" json:"otp" yaml:"otp"`
	Hasher   HasherConfig   `koanf:"hasher" json:"hasher" yaml:"hasher"`
	Signup   SignupConfig   `koanf:"signup" json:"signup" yaml:"signup"`
}

// ServerConfig configures the public HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr" json:"addr" yaml:"addr" jsonschema:"description=API listen address"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr" yaml:"addr" jsonschema:"description=metrics and health probe address (empty disables)"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" json:"format" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig selects and configures the credential store.
type StoreConfig struct {
	Driver         string `koanf:"driver" json:"driver" yaml:"driver" jsonschema:"enum=memory,enum=postgres"`
	DatabaseURL    string `koanf:"database_url" json:"database_url" yaml:"database_url"`
	ConnectRetries uint64 `koanf:"connect_retries" json:"connect_retries" yaml:"connect_retries"`
	AutoMigrate    bool   `koanf:"auto_migrate" json:"auto_migrate" yaml:"auto_migrate"`
}

// NotifierConfig selects how reset codes are delivered.
type NotifierConfig struct {
	Driver  string        `koanf:"driver" json:"driver" yaml:"driver" jsonschema:"enum=log,enum=redis"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
}

// RedisConfig configures the notification queue.
type RedisConfig struct {
	URL   string `koanf:"url" json:"url" yaml:"url"`
	Queue string `koanf:"queue" json:"queue" yaml:"queue"`
}

// TokenConfig configures token signing.
type TokenConfig struct {
	Secret            string        `koanf:"secret" json:"secret" yaml:"secret"`
	Algorithm         string        `koanf:"algorithm" json:"algorithm" yaml:"algorithm" jsonschema:"enum=HS256,enum=HS384,enum=HS512"`
	AllowedAlgorithms []string      `koanf:"allowed_algorithms" json:"allowed_algorithms" yaml:"allowed_algorithms"`
	AccessExpiry      time.Duration `koanf:"access_expiry" json:"access_expiry" yaml:"access_expiry"`
	RefreshExpiry     time.Duration `koanf:"refresh_expiry" json:"refresh_expiry" yaml:"refresh_expiry"`
}

// OTPConfig configures reset codes.
type OTPConfig struct {
	Expiry        time.Duration `koanf:"expiry" json:"expiry" yaml:"expiry"`
	MaxAttempts   int           `koanf:"max_attempts" json:"max_attempts" yaml:"max_attempts" jsonschema:"minimum=0"`
	PurgeInterval time.Duration `koanf:"purge_interval" json:"purge_interval" yaml:"purge_interval"`
}

// HasherConfig holds the argon2id cost parameters.
type HasherConfig struct {
	Memory  uint32 `koanf:"memory" json:"memory" yaml:"memory" jsonschema:"description=memory in KiB"`
	Time    uint32 `koanf:"time" json:"time" yaml:"time"`
	Threads uint8  `koanf:"threads" json:"threads" yaml:"threads"`
}

// SignupConfig restricts who may sign up.
type SignupConfig struct {
	AllowedDomains []string `koanf:"allowed_domains" json:"allowed_domains" yaml:"allowed_domains" jsonschema:"description=glob patterns such as example.com or *.example.com"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	hp := auth.DefaultHashParams()
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Store: StoreConfig{
			Driver:         StoreMemory,
			ConnectRetries: 5,
		},
		Notifier: NotifierConfig{Driver: NotifierLog, Timeout: auth.DefaultNotifyTimeout},
		Redis:    RedisConfig{Queue: "placy:notifications"},
		Token: TokenConfig{
			Algorithm:     auth.DefaultAlgorithm,
			AccessExpiry:  auth.DefaultAccessExpiry,
			RefreshExpiry: auth.DefaultRefreshExpiry,
		},
		OTP: OTPConfig{
			Expiry:        auth.DefaultOTPExpiry,
			MaxAttempts:   auth.DefaultMaxOTPAttempts,
			PurgeInterval: time.Hour,
		},
		Hasher: HasherConfig{Memory: hp.Memory, Time: hp.Time, Threads: hp.Threads},
	}
}

var hmacAlgorithms = []string{"HS256", "HS384", "HS512"}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	fail := func(key, format string, args ...any) {
		errs = append(errs, oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...))
	}

	if c.Server.Addr == "" {
		fail("server.addr", "server.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		fail("server.read_timeout", "server.read_timeout must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		fail("server.shutdown_timeout", "server.shutdown_timeout must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		fail("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		fail("log.level", "log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			fail("store.database_url", "store.database_url is required for the postgres store")
		}
	default:
		fail("store.driver", "store.driver must be 'memory' or 'postgres', got %q", c.Store.Driver)
	}

	switch c.Notifier.Driver {
	case NotifierLog:
	case NotifierRedis:
		if c.Redis.URL == "" {
			fail("redis.url", "redis.url is required for the redis notifier")
		}
	default:
		fail("notifier.driver", "notifier.driver must be 'log' or 'redis', got %q", c.Notifier.Driver)
	}
	if c.Notifier.Timeout <= 0 {
		fail("notifier.timeout", "notifier.timeout must be positive")
	}

	if !slices.Contains(hmacAlgorithms, c.Token.Algorithm) {
		fail("token.algorithm", "token.algorithm must be one of %v, got %q", hmacAlgorithms, c.Token.Algorithm)
	}
	for _, alg := range c.Token.AllowedAlgorithms {
		if !slices.Contains(hmacAlgorithms, alg) {
			fail("token.allowed_algorithms", "token.allowed_algorithms contains unsupported %q", alg)
		}
	}
	if c.Token.AccessExpiry <= 0 || c.Token.RefreshExpiry <= 0 {
		fail("token.access_expiry", "token expiries must be positive")
	}

	if c.OTP.Expiry <= 0 {
		fail("otp.expiry", "otp.expiry must be positive")
	}
	if c.OTP.MaxAttempts < 0 {
		fail("otp.max_attempts", "otp.max_attempts must not be negative")
	}
	if c.OTP.PurgeInterval < 0 {
		fail("otp.purge_interval", "otp.purge_interval must not be negative")
	}

	if c.Hasher.Memory == 0 || c.Hasher.Time == 0 || c.Hasher.Threads == 0 {
		fail("hasher", "hasher memory, time and threads must all be positive")
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to print: the signing secret is hidden and
// passwords are masked in connection URLs.
func (c Config) Redacted() Config {
	out := c
	if out.Token.Secret != "" {
		out.Token.Secret = redactedSecret
	}
	out.Store.DatabaseURL = redactURL(out.Store.DatabaseURL)
	out.Redis.URL = redactURL(out.Redis.URL)
	out.Token.AllowedAlgorithms = slices.Clone(c.Token.AllowedAlgorithms)
	out.Signup.AllowedDomains = slices.Clone(c.Signup.AllowedDomains)
	return out
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redactedSecret
	}
	return u.Redacted()
}

// AuthSettings returns the service tuning derived from c.
func (c Config) AuthSettings(version string) auth.Config {
	return auth.Config{
		OTPExpiry:           c.OTP.Expiry,
		MaxOTPAttempts:      c.OTP.MaxAttempts,
		NotifyTimeout:       c.Notifier.Timeout,
		AllowedEmailDomains: slices.Clone(c.Signup.AllowedDomains),
		Version:             version,
	}
}

// TokenSettings returns the codec configuration derived from c.
func (c Config) TokenSettings() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:            []byte(c.Token.Secret),
		Algorithm:         c.Token.Algorithm,
		AllowedAlgorithms: slices.Clone(c.Token.AllowedAlgorithms),
		AccessExpiry:      c.Token.AccessExpiry,
		RefreshExpiry:     c.Token.RefreshExpiry,
	}
}

// HashParams returns the argon2id parameters derived from c.
func (c Config) HashParams() auth.HashParams {
	return auth.HashParams{Memory: c.Hasher.Memory, Time: c.Hasher.Time, Threads: c.Hasher.Threads}
}
