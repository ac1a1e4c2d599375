// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

// Package notify delivers password reset codes.
//
// LogNotifier writes codes to the structured log and suits development.
// RedisNotifier pushes JSON jobs onto a Redis list for a mail worker.
package notify
