// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/placy/placy/internal/auth"
)

// FindByEmail retrieves a credential by its normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, username, password_hash, created_at, updated_at
		FROM credentials
		WHERE email = $1
	`, email)

	cred, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// Insert stores a new credential.
func (s *Store) Insert(ctx context.Context, cred *auth.Credential) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO credentials (id, email, username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cred.ID.String(), cred.Email, cred.Username, cred.PasswordHash, cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("CREDENTIAL_EXISTS").
				With("email", cred.Email).
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrConflict)
		}
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential").
			With("email", cred.Email).
			Wrap(err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash for email.
func (s *Store) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	return updatePasswordHash(ctx, s.db, email, hash, s.now())
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updatePasswordHash(ctx context.Context, db execer, email, hash string, now time.Time) error {
	result, err := db.Exec(ctx, `
		UPDATE credentials SET password_hash = $2, updated_at = $3
		WHERE email = $1
	`, email, hash, now)
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").
			With("operation", "update password hash").
			With("email", email).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanCredential scans a single row into a Credential.
// Callers are responsible for handling pgx.ErrNoRows.
func scanCredential(row pgx.Row) (*auth.Credential, error) {
	var (
		idStr string
		cred  auth.Credential
	)
	err := row.Scan(&idStr, &cred.Email, &cred.Username, &cred.PasswordHash, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("CREDENTIAL_SCAN_FAILED").
			With("operation", "scan credential").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_INVALID_ID").
			With("operation", "parse credential id").
			With("id", idStr).
			Wrap(err)
	}
	cred.ID = id
	return &cred, nil
}
