// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 1
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Credential is a registered account: identity plus password hash.
type Credential struct {
	ID           ulid.ULID
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CredentialView is the public rendering of a Credential. It never carries
// the password hash.
type CredentialView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is a signup request.
type Candidate struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,max=1024"`
}

// Credentials is a login request.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// NewCredential builds a credential for a normalized email and an encoded hash.
func NewCredential(email, username, passwordHash string, now time.Time) (*Credential, error) {
	if email == "" {
		return nil, oops.Code("AUTH_INVALID_CREDENTIAL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_CREDENTIAL").Errorf("password hash cannot be empty")
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	return &Credential{
		ID:           ulid.Make(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// View returns the public rendering of c.
func (c *Credential) View() CredentialView {
	return CredentialView{
		ID:        c.ID.String(),
		Email:     c.Email,
		Username:  c.Username,
		CreatedAt: c.CreatedAt,
	}
}

// Identity returns the token subject for c.
func (c *Credential) Identity() Identity {
	return Identity{
		UserID:   c.ID.String(),
		Email:    c.Email,
		Username: c.Username,
	}
}

// NormalizeEmail lowercases and trims an email address.
// Every store lookup goes through it, so emails compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			With("max", MaxUsernameLength).
			Errorf("username must be %d-%d characters", MinUsernameLength, MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// CredentialStore persists credentials and one-time codes.
//
// Emails passed in are already normalized. Implementations return
// ErrNotFound and ErrConflict (possibly wrapped) for the matching cases;
// any other error is treated as a storage failure.
type CredentialStore interface {
	// FindByEmail returns the credential registered under email.
	FindByEmail(ctx context.Context, email string) (*Credential, error)

	// Insert stores a new credential. Returns ErrConflict when the email is taken.
	Insert(ctx context.Context, cred *Credential) error

	// UpdatePasswordHash replaces the stored hash for email.
	UpdatePasswordHash(ctx context.Context, email, hash string) error

	// FindOTP returns the newest unconsumed code issued to email.
	FindOTP(ctx context.Context, email string) (*OneTimeCode, error)

	// InsertOTP stores a code and consumes every earlier code for the same email.
	InsertOTP(ctx context.Context, code *OneTimeCode) error

	// ConsumeOTPAndUpdatePassword checks code against the newest unconsumed
	// code for email and, on a match, marks it consumed and replaces the
	// password hash. Checking and counting happen atomically:
	//   - ErrNotFound when email has no unconsumed code,
	//   - ErrOTPExpired when the code expired,
	//   - ErrOTPAttemptsExhausted when maxAttempts (> 0) wrong guesses were made,
	//   - ErrOTPMismatch after durably counting one more wrong guess.
	ConsumeOTPAndUpdatePassword(ctx context.Context, email, code, hash string, maxAttempts int) error
}

// OTPPurger is implemented by stores that can drop stale one-time codes.
type OTPPurger interface {
	// PurgeOTPs deletes codes that expired or were consumed before cutoff.
	PurgeOTPs(ctx context.Context, cutoff time.Time) (int64, error)
}
