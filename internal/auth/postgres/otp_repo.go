// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/placy/placy/internal/auth"
)

// FindOTP retrieves the newest unconsumed code for email.
func (s *Store) FindOTP(ctx context.Context, email string) (*auth.OneTimeCode, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, code_hash, attempts, issued_at, expires_at, consumed
		FROM one_time_codes
		WHERE email = $1 AND NOT consumed
		ORDER BY issued_at DESC, id DESC
		LIMIT 1
	`, email)

	otp, err := scanOTP(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ONE_TIME_CODE_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return otp, nil
}

// InsertOTP consumes earlier codes for the email and stores code, in one
// transaction. The credential row is locked first so concurrent requests
// for one email supersede each other in order. Only the hash is persisted.
func (s *Store) InsertOTP(ctx context.Context, code *auth.OneTimeCode) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx, `
			SELECT 1 FROM credentials WHERE email = $1 FOR UPDATE
		`, code.Email).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return oops.Code("CREDENTIAL_NOT_FOUND").With("email", code.Email).Wrap(auth.ErrNotFound)
		}
		if err != nil {
			return oops.Code("CREDENTIAL_LOCK_FAILED").
				With("operation", "lock credential").
				With("email", code.Email).
				Wrap(err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE one_time_codes SET consumed = TRUE
			WHERE email = $1 AND NOT consumed
		`, code.Email); err != nil {
			return oops.Code("ONE_TIME_CODE_SUPERSEDE_FAILED").
				With("operation", "supersede one_time_codes").
				With("email", code.Email).
				Wrap(err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO one_time_codes (id, email, code_hash, attempts, issued_at, expires_at, consumed)
			VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		`, code.ID.String(), code.Email, code.CodeHash, code.Attempts, code.IssuedAt, code.ExpiresAt); err != nil {
			return oops.Code("ONE_TIME_CODE_CREATE_FAILED").
				With("operation", "insert one_time_code").
				With("email", code.Email).
				Wrap(err)
		}
		return nil
	})
}

// ConsumeOTPAndUpdatePassword locks the newest unconsumed code for email
// and checks code against it. A mismatch increments the attempt counter and
// commits; a match marks the code consumed and replaces the password hash.
// Concurrent callers serialize on the row lock, so no more than maxAttempts
// wrong guesses are ever evaluated.
func (s *Store) ConsumeOTPAndUpdatePassword(ctx context.Context, email, code, hash string, maxAttempts int) error {
	var mismatch error
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var (
			idStr     string
			codeHash  string
			attempts  int
			expiresAt time.Time
		)
		err := tx.QueryRow(ctx, `
			SELECT id, code_hash, attempts, expires_at
			FROM one_time_codes
			WHERE email = $1 AND NOT consumed
			ORDER BY issued_at DESC, id DESC
			LIMIT 1
			FOR UPDATE
		`, email).Scan(&idStr, &codeHash, &attempts, &expiresAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return oops.Code("ONE_TIME_CODE_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
		}
		if err != nil {
			return oops.Code("ONE_TIME_CODE_LOCK_FAILED").
				With("operation", "lock one_time_code").
				With("email", email).
				Wrap(err)
		}

		now := s.now()
		if now.After(expiresAt) {
			return oops.Code("ONE_TIME_CODE_EXPIRED").With("email", email).Wrap(auth.ErrOTPExpired)
		}
		if maxAttempts > 0 && attempts >= maxAttempts {
			return oops.Code("ONE_TIME_CODE_EXHAUSTED").With("email", email).Wrap(auth.ErrOTPAttemptsExhausted)
		}

		if !auth.VerifyCode(code, codeHash) {
			if _, err := tx.Exec(ctx, `
				UPDATE one_time_codes SET attempts = attempts + 1 WHERE id = $1
			`, idStr); err != nil {
				return oops.Code("ONE_TIME_CODE_UPDATE_FAILED").
					With("operation", "record attempt").
					With("otp_id", idStr).
					Wrap(err)
			}
			// Commit the counted attempt, then report the mismatch.
			mismatch = oops.Code("ONE_TIME_CODE_MISMATCH").
				With("email", email).
				With("attempts", attempts+1).
				Wrap(auth.ErrOTPMismatch)
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE one_time_codes SET consumed = TRUE WHERE id = $1
		`, idStr); err != nil {
			return oops.Code("ONE_TIME_CODE_UPDATE_FAILED").
				With("operation", "consume one_time_code").
				With("otp_id", idStr).
				Wrap(err)
		}

		return updatePasswordHash(ctx, tx, email, hash, now)
	})
	if err != nil {
		return err
	}
	return mismatch
}

// PurgeOTPs deletes consumed codes and codes expired before cutoff.
func (s *Store) PurgeOTPs(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(ctx, `
		DELETE FROM one_time_codes WHERE consumed OR expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, oops.Code("ONE_TIME_CODE_PURGE_FAILED").
			With("operation", "delete stale one_time_codes").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanOTP scans a single row into a OneTimeCode.
// Callers are responsible for handling pgx.ErrNoRows.
func scanOTP(row pgx.Row) (*auth.OneTimeCode, error) {
	var (
		idStr string
		otp   auth.OneTimeCode
	)
	err := row.Scan(&idStr, &otp.Email, &otp.CodeHash, &otp.Attempts, &otp.IssuedAt, &otp.ExpiresAt, &otp.Consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("ONE_TIME_CODE_SCAN_FAILED").
			With("operation", "scan one_time_code").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ONE_TIME_CODE_INVALID_ID").
			With("operation", "parse one_time_code id").
			With("id", idStr).
			Wrap(err)
	}
	otp.ID = id
	return &otp, nil
}
