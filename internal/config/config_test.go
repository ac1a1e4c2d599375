// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placy/placy/internal/auth"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = StorePostgres
	cfg.Notifier.Driver = NotifierRedis
	cfg.Log.Format = "xml"
	cfg.Token.Algorithm = "RS256"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "store.database_url is required")
	assert.Contains(t, msg, "redis.url is required")
	assert.Contains(t, msg, "log.format must be 'json' or 'text'")
	assert.Contains(t, msg, "token.algorithm must be one of")
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr is required"},
		{"unknown store", func(c *Config) { c.Store.Driver = "sqlite" }, "store.driver must be"},
		{"unknown notifier", func(c *Config) { c.Notifier.Driver = "smtp" }, "notifier.driver must be"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"allowed alg", func(c *Config) { c.Token.AllowedAlgorithms = []string{"HS256", "none"} }, `unsupported "none"`},
		{"otp expiry", func(c *Config) { c.OTP.Expiry = 0 }, "otp.expiry must be positive"},
		{"attempts", func(c *Config) { c.OTP.MaxAttempts = -1 }, "otp.max_attempts"},
		{"hasher", func(c *Config) { c.Hasher.Threads = 0 }, "hasher memory, time and threads"},
		{"notify timeout", func(c *Config) { c.Notifier.Timeout = 0 }, "notifier.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Token.Secret = "hunter2"
	cfg.Store.DatabaseURL = "postgres://placy:s3cret@db:5432/placy"
	cfg.Redis.URL = "redis://:pw@cache:6379/0"
	cfg.Signup.AllowedDomains = []string{"example.com"}

	red := cfg.Redacted()

	assert.Equal(t, "[redacted]", red.Token.Secret)
	assert.NotContains(t, red.Store.DatabaseURL, "s3cret")
	assert.Contains(t, red.Store.DatabaseURL, "db:5432")
	assert.NotContains(t, red.Redis.URL, "pw@")
	assert.Equal(t, "hunter2", cfg.Token.Secret, "original must be untouched")

	red.Signup.AllowedDomains[0] = "changed"
	assert.Equal(t, "example.com", cfg.Signup.AllowedDomains[0])
}

func TestRedacted_EmptySecretStaysEmpty(t *testing.T) {
	assert.Empty(t, Default().Redacted().Token.Secret)
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Token.Secret = "k"
	cfg.Signup.AllowedDomains = []string{"*.example.com"}
	cfg.OTP.MaxAttempts = 7

	settings := cfg.AuthSettings("1.2.3")
	assert.Equal(t, auth.Config{
		OTPExpiry:           auth.DefaultOTPExpiry,
		MaxOTPAttempts:      7,
		NotifyTimeout:       auth.DefaultNotifyTimeout,
		AllowedEmailDomains: []string{"*.example.com"},
		Version:             "1.2.3",
	}, settings)

	tokens := cfg.TokenSettings()
	assert.Equal(t, []byte("k"), tokens.Secret)
	assert.Equal(t, "HS256", tokens.Algorithm)
	assert.Equal(t, 24*time.Hour, tokens.AccessExpiry)

	assert.Equal(t, auth.DefaultHashParams(), cfg.HashParams())
}
