// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

// Package memory provides an in-process auth.CredentialStore for tests and
// single-node development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/placy/placy/internal/auth"
)

// Compile-time interface checks.
var (
	_ auth.CredentialStore = (*Store)(nil)
	_ auth.OTPPurger       = (*Store)(nil)
)

// Store keeps credentials and one-time codes in maps guarded by one mutex,
// which makes every method atomic.
type Store struct {
	mu          sync.Mutex
	credentials map[string]auth.Credential
	// codes holds every issued code per email, oldest first.
	codes map[string][]*auth.OneTimeCode
	now   func() time.Time
}

// NewStore creates an empty store. A nil clock uses time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		credentials: make(map[string]auth.Credential),
		codes:       make(map[string][]*auth.OneTimeCode),
		now:         now,
	}
}

// FindByEmail returns a copy of the credential registered under email.
func (s *Store) FindByEmail(_ context.Context, email string) (*auth.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[auth.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return &cred, nil
}

// Insert stores a copy of cred.
func (s *Store) Insert(_ context.Context, cred *auth.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := auth.NormalizeEmail(cred.Email)
	if _, ok := s.credentials[key]; ok {
		return oops.Code("CREDENTIAL_EXISTS").With("email", key).Wrap(auth.ErrConflict)
	}
	s.credentials[key] = *cred
	return nil
}

// UpdatePasswordHash replaces the stored hash for email.
func (s *Store) UpdatePasswordHash(_ context.Context, email, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setHashLocked(auth.NormalizeEmail(email), hash)
}

func (s *Store) setHashLocked(email, hash string) error {
	cred, ok := s.credentials[email]
	if !ok {
		return oops.Code("CREDENTIAL_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	cred.PasswordHash = hash
	cred.UpdatedAt = s.now()
	s.credentials[email] = cred
	return nil
}

// FindOTP returns a copy of the newest unconsumed code for email.
func (s *Store) FindOTP(_ context.Context, email string) (*auth.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	otp := s.latestLocked(auth.NormalizeEmail(email))
	if otp == nil {
		return nil, oops.Code("ONE_TIME_CODE_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	found := *otp
	found.Code = ""
	return &found, nil
}

func (s *Store) latestLocked(email string) *auth.OneTimeCode {
	codes := s.codes[email]
	for i := len(codes) - 1; i >= 0; i-- {
		if !codes[i].Consumed {
			return codes[i]
		}
	}
	return nil
}

// InsertOTP stores code and consumes earlier codes for the same email.
// The plaintext is dropped; only the hash is kept.
func (s *Store) InsertOTP(_ context.Context, code *auth.OneTimeCode) error {
	if !code.ExpiresAt.After(code.IssuedAt) {
		return oops.Code("ONE_TIME_CODE_INVALID_EXPIRY").
			With("issued_at", code.IssuedAt).
			With("expires_at", code.ExpiresAt).
			Errorf("expiry must be after issue time")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := auth.NormalizeEmail(code.Email)
	for _, earlier := range s.codes[email] {
		earlier.Consumed = true
	}
	stored := *code
	stored.Email = email
	stored.Code = ""
	s.codes[email] = append(s.codes[email], &stored)
	return nil
}

// ConsumeOTPAndUpdatePassword checks code against the newest unconsumed
// code for email under one lock. A mismatch counts an attempt; a match
// consumes the code and replaces the password hash.
func (s *Store) ConsumeOTPAndUpdatePassword(_ context.Context, email, code, hash string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = auth.NormalizeEmail(email)
	otp := s.latestLocked(email)
	if otp == nil {
		return oops.Code("ONE_TIME_CODE_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if otp.IsExpired(s.now()) {
		return oops.Code("ONE_TIME_CODE_EXPIRED").With("email", email).Wrap(auth.ErrOTPExpired)
	}
	if otp.AttemptsExhausted(maxAttempts) {
		return oops.Code("ONE_TIME_CODE_EXHAUSTED").With("email", email).Wrap(auth.ErrOTPAttemptsExhausted)
	}
	if !auth.VerifyCode(code, otp.CodeHash) {
		otp.Attempts++
		return oops.Code("ONE_TIME_CODE_MISMATCH").
			With("email", email).
			With("attempts", otp.Attempts).
			Wrap(auth.ErrOTPMismatch)
	}
	if _, ok := s.credentials[email]; !ok {
		return oops.Code("CREDENTIAL_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}

	otp.Consumed = true
	return s.setHashLocked(email, hash)
}

// PurgeOTPs drops codes that are consumed or expired at cutoff.
func (s *Store) PurgeOTPs(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for email, codes := range s.codes {
		kept := codes[:0]
		for _, otp := range codes {
			if otp.Consumed || otp.IsExpired(cutoff) {
				purged++
				continue
			}
			kept = append(kept, otp)
		}
		if len(kept) == 0 {
			delete(s.codes, email)
			continue
		}
		s.codes[email] = kept
	}
	return purged, nil
}
