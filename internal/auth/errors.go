// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import "errors"

// Sentinel errors returned by CredentialStore implementations.
var (
	// ErrNotFound is returned when a requested credential or code does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a credential with the same email already exists.
	ErrConflict = errors.New("already exists")

	// ErrOTPExpired is returned by ConsumeOTPAndUpdatePassword when the code expired
	// between lookup and consumption.
	ErrOTPExpired = errors.New("one-time code expired")

	// ErrOTPMismatch is returned by ConsumeOTPAndUpdatePassword when the presented
	// code does not match. The failed attempt has already been recorded.
	ErrOTPMismatch = errors.New("one-time code mismatch")

	// ErrOTPAttemptsExhausted is returned by ConsumeOTPAndUpdatePassword when the
	// code has no wrong guesses left.
	ErrOTPAttemptsExhausted = errors.New("one-time code attempts exhausted")
)

// Error codes attached to errors returned by this package.
const (
	CodeInvalidRequest       = "AUTH_INVALID_REQUEST"
	CodeEmailDomainRejected  = "AUTH_EMAIL_DOMAIN_REJECTED"
	CodeEmailTaken           = "AUTH_EMAIL_TAKEN"
	CodeUserNotFound         = "AUTH_USER_NOT_FOUND"
	CodeInvalidCredentials   = "AUTH_INVALID_CREDENTIALS"
	CodeSignupFailed         = "AUTH_SIGNUP_FAILED"
	CodeLoginFailed          = "AUTH_LOGIN_FAILED"
	CodeResetRequestFailed   = "RESET_REQUEST_FAILED"
	CodeResetPasswordFailed  = "RESET_PASSWORD_FAILED"
	CodeNotifyFailed         = "RESET_NOTIFY_FAILED"
	CodeOTPNotFound          = "OTP_NOT_FOUND"
	CodeOTPExpired           = "OTP_EXPIRED"
	CodeOTPInvalid           = "OTP_INVALID"
	CodeOTPAttemptsExceeded  = "OTP_ATTEMPTS_EXCEEDED"
	CodeTokenMissing         = "TOKEN_MISSING"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeTokenMalformed       = "TOKEN_MALFORMED"
	CodeSigningKeyUnset      = "TOKEN_SIGNING_KEY_UNSET"
	CodeAlgorithmUnsupported = "TOKEN_ALGORITHM_UNSUPPORTED"
	CodeTokenSignFailed      = "TOKEN_SIGN_FAILED"
)
