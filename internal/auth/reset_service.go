// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/placy/placy/pkg/errutil"
)

// PasswordReset is a reset-password request.
type PasswordReset struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,max=1024"`
}

// ForgotPassword issues a reset code for email and hands it to the Notifier
// in the background.
// Unknown emails succeed without issuing anything so the response does not
// reveal which addresses are registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, end := s.observe(ctx, opForgot)
	defer func() { end(err) }()

	email = NormalizeEmail(email)
	if err := validateField("email", email, "required,email,max=254"); err != nil {
		return err
	}

	if _, err := s.store.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return oops.Code(CodeResetRequestFailed).With("operation", "find credential").Wrap(err)
	}

	otp := s.otps.Generate(email, s.cfg.OTPExpiry)
	if err := s.store.InsertOTP(ctx, &otp); err != nil {
		return oops.Code(CodeResetRequestFailed).With("operation", "insert otp").Wrap(err)
	}

	s.dispatch(ctx, CodeNotification{Email: email, Code: otp.Code, ExpiresAt: otp.ExpiresAt})
	return nil
}

// dispatch delivers n without blocking the caller. The delivery outlives
// the request context but is bounded by NotifyTimeout.
func (s *Service) dispatch(ctx context.Context, n CodeNotification) {
	ctx = context.WithoutCancel(ctx)
	s.inflight.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		defer cancel()

		if err := s.notifier.SendCode(ctx, n); err != nil {
			recordNotification(notifyFailed)
			errutil.LogErrorContext(ctx, s.logger, "reset code delivery failed",
				oops.Code(CodeNotifyFailed).With("email", n.Email).Wrap(err))
			return
		}
		recordNotification(notifySent)
	})
}

// ResetPassword replaces the password of req.Email if req.Code is the
// newest unconsumed, unexpired code issued to it. A successful reset
// consumes the code. The store checks the code and counts wrong guesses
// atomically; the lookup here only rejects dead codes before hashing.
func (s *Service) ResetPassword(ctx context.Context, req PasswordReset) (err error) {
	ctx, end := s.observe(ctx, opReset)
	defer func() { end(err) }()

	req.Email = NormalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return err
	}
	email := req.Email

	otp, err := s.store.FindOTP(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeOTPNotFound).With("email", email).Errorf("OTP not found")
		}
		return oops.Code(CodeResetPasswordFailed).With("operation", "find otp").Wrap(err)
	}
	if otp.IsExpired(s.now()) {
		return oops.Code(CodeOTPExpired).With("email", email).Errorf("OTP has expired")
	}
	if otp.AttemptsExhausted(s.cfg.MaxOTPAttempts) {
		return oops.Code(CodeOTPAttemptsExceeded).With("email", email).Errorf("OTP attempts exceeded")
	}

	hash := s.hasher.Hash(req.NewPassword)
	if err := s.store.ConsumeOTPAndUpdatePassword(ctx, email, req.Code, hash, s.cfg.MaxOTPAttempts); err != nil {
		switch {
		case errors.Is(err, ErrOTPMismatch):
			return oops.Code(CodeOTPInvalid).With("email", email).Errorf("OTP is invalid")
		case errors.Is(err, ErrOTPAttemptsExhausted):
			return oops.Code(CodeOTPAttemptsExceeded).With("email", email).Errorf("OTP attempts exceeded")
		case errors.Is(err, ErrOTPExpired):
			return oops.Code(CodeOTPExpired).With("email", email).Errorf("OTP has expired")
		case errors.Is(err, ErrNotFound):
			// Consumed concurrently by another reset.
			return oops.Code(CodeOTPNotFound).With("email", email).Errorf("OTP not found")
		default:
			return oops.Code(CodeResetPasswordFailed).With("operation", "consume otp").Wrap(err)
		}
	}

	s.logger.InfoContext(ctx, "password reset", "email", email)
	return nil
}
