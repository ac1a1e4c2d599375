// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
)

// One-time code configuration.
const (
	OTPLength             = 6
	DefaultOTPExpiry      = 15 * time.Minute
	DefaultMaxOTPAttempts = 5
)

// OneTimeCode is a password-reset code issued to an email.
// Code holds the plaintext only until it is handed to the Notifier;
// stores persist CodeHash.
type OneTimeCode struct {
	ID        ulid.ULID
	Email     string
	Code      string
	CodeHash  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Attempts  int
	Consumed  bool
}

// IsExpired reports whether the code is past its expiry at now.
func (c *OneTimeCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// AttemptsExhausted reports whether the code has used up its wrong-guess budget.
// A non-positive limit disables the budget.
func (c *OneTimeCode) AttemptsExhausted(limit int) bool {
	return limit > 0 && c.Attempts >= limit
}

// OTPGenerator issues one-time codes.
type OTPGenerator struct {
	now func() time.Time
}

// NewOTPGenerator creates a generator. A nil clock uses time.Now.
func NewOTPGenerator(now func() time.Time) *OTPGenerator {
	if now == nil {
		now = time.Now
	}
	return &OTPGenerator{now: now}
}

// Generate issues a fresh code for email valid for expiry.
func (g *OTPGenerator) Generate(email string, expiry time.Duration) OneTimeCode {
	now := g.now()
	code := randomDigits(OTPLength)
	return OneTimeCode{
		ID:        ulid.Make(),
		Email:     email,
		Code:      code,
		CodeHash:  HashCode(code),
		IssuedAt:  now,
		ExpiresAt: now.Add(expiry),
	}
}

// randomDigits draws n uniformly distributed decimal digits from crypto/rand.
func randomDigits(n int) string {
	out := make([]byte, 0, n)
	buf := make([]byte, 2*n)
	for len(out) < n {
		// crypto/rand.Read never returns an error.
		_, _ = rand.Read(buf)
		for _, b := range buf {
			// 250 is the largest multiple of 10 not above 256; rejecting
			// the rest keeps every digit equally likely.
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

// HashCode computes the SHA256 hash of a code.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// VerifyCode checks if the plaintext code matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyCode(code, hash string) bool {
	if code == "" || hash == "" {
		return false
	}
	computed := HashCode(code)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
