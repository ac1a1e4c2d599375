// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

// Package postgres provides the PostgreSQL implementation of auth.CredentialStore.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/placy/placy/internal/auth"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Compile-time interface checks.
var (
	_ auth.CredentialStore = (*Store)(nil)
	_ auth.OTPPurger       = (*Store)(nil)
)

// Store implements auth.CredentialStore on the credentials and
// one_time_codes tables.
type Store struct {
	db  DB
	now func() time.Time
}

// NewStore creates a Store.
func NewStore(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // the fn error is the one worth reporting
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}
