// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"context"
	"time"
)

// CodeNotification carries a freshly issued reset code to its recipient.
type CodeNotification struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notifier delivers reset codes out of band.
// Service calls SendCode from a background goroutine; a failure is logged
// and never reaches the client that requested the code.
type Notifier interface {
	SendCode(ctx context.Context, n CodeNotification) error
}
