// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token lifetimes used when none are configured.
const (
	DefaultAccessExpiry  = 24 * time.Hour
	DefaultRefreshExpiry = 7 * 24 * time.Hour
	DefaultAlgorithm     = "HS256"
)

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	Secret []byte
	// Algorithm signs new tokens. Only HMAC algorithms are supported.
	Algorithm string
	// AllowedAlgorithms are accepted on decode. Defaults to Algorithm alone.
	AllowedAlgorithms []string
	AccessExpiry      time.Duration
	RefreshExpiry     time.Duration
}

// Identity is the subject a token is issued for.
type Identity struct {
	UserID   string
	Email    string
	Username string
}

// Claims is the signed token payload. The user ID travels as the subject.
type Claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Identity returns the subject the claims were issued for.
func (c *Claims) Identity() Identity {
	return Identity{
		UserID:   c.Subject,
		Email:    c.Email,
		Username: c.Username,
	}
}

// TokenPair is an access token and a longer-lived refresh token for one subject.
type TokenPair struct {
	Access           string    `json:"token"`
	Refresh          string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenCodec issues and verifies HMAC-signed tokens.
type TokenCodec struct {
	secret        []byte
	method        jwt.SigningMethod
	algorithm     string
	allowed       []string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

// NewTokenCodec creates a codec. A nil clock uses time.Now.
// An empty secret is accepted here; issuing then fails with
// TOKEN_SIGNING_KEY_UNSET so misconfiguration surfaces per request.
func NewTokenCodec(cfg TokenConfig, now func() time.Time) (*TokenCodec, error) {
	if now == nil {
		now = time.Now
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, oops.Code(CodeAlgorithmUnsupported).With("algorithm", alg).
			Errorf("unsupported signing algorithm %q", alg)
	}

	allowed := slices.Clone(cfg.AllowedAlgorithms)
	if len(allowed) == 0 {
		allowed = []string{alg}
	}
	for _, a := range allowed {
		if _, ok := jwt.GetSigningMethod(a).(*jwt.SigningMethodHMAC); !ok {
			return nil, oops.Code(CodeAlgorithmUnsupported).With("algorithm", a).
				Errorf("unsupported signing algorithm %q", a)
		}
	}

	access := cfg.AccessExpiry
	if access <= 0 {
		access = DefaultAccessExpiry
	}
	refresh := cfg.RefreshExpiry
	if refresh <= 0 {
		refresh = DefaultRefreshExpiry
	}

	return &TokenCodec{
		secret:        slices.Clone(cfg.Secret),
		method:        method,
		algorithm:     alg,
		allowed:       allowed,
		accessExpiry:  access,
		refreshExpiry: refresh,
		now:           now,
	}, nil
}

// IssuePair signs an access and a refresh token for id.
func (c *TokenCodec) IssuePair(id Identity) (TokenPair, error) {
	if len(c.secret) == 0 {
		return TokenPair{}, oops.Code(CodeSigningKeyUnset).Errorf("can't generate token: signing secret is empty")
	}
	now := c.now()

	access, accessExp, err := c.sign(id, now, c.accessExpiry)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := c.sign(id, now, c.refreshExpiry)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (c *TokenCodec) sign(id Identity, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := Claims{
		Email:    id.Email,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, oops.Code(CodeTokenSignFailed).With("algorithm", c.algorithm).Wrap(err)
	}
	return signed, exp.Time, nil
}

// Decode verifies token and returns its claims.
// Expired tokens fail with TOKEN_EXPIRED; anything else that does not verify
// fails with TOKEN_MALFORMED.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	if len(c.secret) == 0 {
		return nil, oops.Code(CodeSigningKeyUnset).Errorf("can't verify token: signing secret is empty")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods(c.allowed),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code(CodeTokenExpired).Errorf("token has expired")
		}
		return nil, oops.Code(CodeTokenMalformed).Wrap(err)
	}
	return claims, nil
}
