// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

// Package auth implements the credential and token core of Placy.
//
// # Leaf components
//
// The leaves have no dependencies on each other or on storage:
//   - Argon2idHasher - salted, self-describing password hashes
//   - OTPGenerator - six digit one-time codes for password reset
//   - TokenCodec - HMAC-signed access and refresh tokens
//
// # Service
//
// Service orchestrates signup, login, forgot-password, reset-password and
// token refresh on top of the leaves, a CredentialStore and a Notifier.
// Every operation returns (result, error); Describe maps any error to the
// Failure rendered to clients.
//
// Durable state lives in the CredentialStore. Implementations must enforce
// email uniqueness themselves and must check, count and consume codes in
// ConsumeOTPAndUpdatePassword atomically, so the wrong-guess budget holds
// under concurrent resets.
package auth
