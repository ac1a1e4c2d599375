// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/placy/placy/internal/auth"
)

var _ auth.Notifier = (*LogNotifier)(nil)

// LogNotifier logs each code instead of sending it.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendCode implements auth.Notifier.
func (n *LogNotifier) SendCode(ctx context.Context, msg auth.CodeNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "reset code issued",
		"email", msg.Email,
		"code", msg.Code,
		"expires_at", msg.ExpiresAt)
	return nil
}
