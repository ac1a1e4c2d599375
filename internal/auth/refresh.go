// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// BearerToken extracts the token from an Authorization header value.
// Both the "Bearer" and the older "Token" schemes are accepted.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", oops.Code(CodeTokenMissing).Errorf("no authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", oops.Code(CodeTokenMalformed).Errorf("malformed authorization header")
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "Token") {
		return "", oops.Code(CodeTokenMalformed).With("scheme", scheme).
			Errorf("unsupported authorization scheme")
	}
	return token, nil
}

// Refresh issues a new token pair for the subject of the token in the
// Authorization header. Access and refresh tokens are both accepted.
func (s *Service) Refresh(ctx context.Context, authorization string) (_ *TokenPair, err error) {
	_, end := s.observe(ctx, opRefresh)
	defer func() { end(err) }()

	token, err := BearerToken(authorization)
	if err != nil {
		return nil, err
	}
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.IssuePair(claims.Identity())
	if err != nil {
		return nil, err
	}
	return &pair, nil
}
