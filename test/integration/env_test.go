// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/placy/placy/internal/auth"
	authpg "github.com/placy/placy/internal/auth/postgres"
	"github.com/placy/placy/internal/httpapi"
	"github.com/placy/placy/internal/notify"
	"github.com/placy/placy/internal/store"
)

const testQueue = "placy:test:notifications"

// testEnv holds all the resources needed for integration tests.
type testEnv struct {
	ctx      context.Context
	cancel   context.CancelFunc
	pg       *postgres.PostgresContainer
	redisC   testcontainers.Container
	pool     *pgxpool.Pool
	redis    *redis.Client
	store    *authpg.Store
	service  *auth.Service
	server   *httptest.Server
	dbURL    string
	redisURL string
}

// setupTestEnv starts PostgreSQL and Redis, migrates the schema and serves
// the API on an httptest server.
func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel}

	var err error
	env.pg, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("placy_test"),
		postgres.WithUsername("placy"),
		postgres.WithPassword("placy"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		env.cleanup()
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	env.dbURL, err = env.pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	env.redisC, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		env.cleanup()
		return nil, fmt.Errorf("start redis: %w", err)
	}
	endpoint, err := env.redisC.PortEndpoint(ctx, "6379/tcp", "redis")
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.redisURL = endpoint

	migrator, err := store.NewMigrator(env.dbURL)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	err = migrator.Up()
	_ = migrator.Close()
	if err != nil {
		env.cleanup()
		return nil, err
	}

	env.pool, err = store.Connect(ctx, env.dbURL, store.DefaultConnectRetries)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.redis, err = notify.NewRedisClient(ctx, env.redisURL)
	if err != nil {
		env.cleanup()
		return nil, err
	}

	codec, err := auth.NewTokenCodec(auth.TokenConfig{Secret: []byte("integration-secret")}, nil)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	env.store = authpg.NewStore(env.pool)
	env.service, err = auth.NewService(auth.ServiceConfig{
		Store:    env.store,
		Notifier: notify.NewRedisNotifier(env.redis, testQueue),
		Tokens:   codec,
		Hasher:   auth.NewArgon2idHasher(auth.HashParams{Memory: 1024, Time: 1, Threads: 1}),
		Settings: auth.Config{OTPExpiry: 15 * time.Minute, MaxOTPAttempts: 3, Version: "integration"},
		Logger:   logger,
	})
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.server = httptest.NewServer(httpapi.NewRouter(env.service, httpapi.Options{Logger: logger}))
	return env, nil
}

func (e *testEnv) cleanup() {
	if e.server != nil {
		e.server.Close()
	}
	if e.service != nil {
		_ = e.service.Close(context.Background())
	}
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.redisC != nil {
		_ = e.redisC.Terminate(context.Background())
	}
	if e.pg != nil {
		_ = e.pg.Terminate(context.Background())
	}
	e.cancel()
}

// call sends a request to the API and decodes the envelope.
func (e *testEnv) call(method, path, body, bearer string) (int, httpapi.Envelope, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(e.ctx, method, e.server.URL+path, reader)
	if err != nil {
		return 0, httpapi.Envelope{}, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		return 0, httpapi.Envelope{}, err
	}
	defer resp.Body.Close()

	var env httpapi.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, httpapi.Envelope{}, err
	}
	return resp.StatusCode, env, nil
}

// nextCode waits for the next reset code job on the queue.
func (e *testEnv) nextCode() (string, error) {
	if err := e.service.Close(e.ctx); err != nil {
		return "", err
	}
	res, err := e.redis.BRPop(e.ctx, 5*time.Second, testQueue).Result()
	if err != nil {
		return "", err
	}
	var job notify.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return "", err
	}
	return job.Payload.Code, nil
}
