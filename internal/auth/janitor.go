// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/placy/placy/pkg/errutil"
)

// OTPJanitor periodically deletes expired and consumed one-time codes.
type OTPJanitor struct {
	purger   OTPPurger
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewOTPJanitor creates a janitor. A nil clock uses time.Now.
func NewOTPJanitor(purger OTPPurger, interval time.Duration, logger *slog.Logger, now func() time.Time) (*OTPJanitor, error) {
	if purger == nil {
		return nil, oops.Code("OTP_JANITOR_INVALID").Errorf("purger is required")
	}
	if interval <= 0 {
		return nil, oops.Code("OTP_JANITOR_INVALID").With("interval", interval).Errorf("interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &OTPJanitor{purger: purger, interval: interval, logger: logger, now: now}, nil
}

// Run purges on every tick until ctx is done.
func (j *OTPJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce runs a single purge and returns the number of deleted codes.
func (j *OTPJanitor) PurgeOnce(ctx context.Context) (int64, error) {
	n, err := j.purger.PurgeOTPs(ctx, j.now())
	if err != nil {
		err = oops.Code("OTP_PURGE_FAILED").Wrap(err)
		errutil.LogErrorContext(ctx, j.logger, "otp purge failed", err)
		return 0, err
	}
	if n > 0 {
		j.logger.DebugContext(ctx, "purged one-time codes", "count", n)
	}
	return n, nil
}
