// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"errors"
	"net/http"

	"github.com/samber/oops"
)

// Kind classifies a failed operation.
type Kind string

// Failure kinds.
const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindExpired      Kind = "expired"
	KindMalformed    Kind = "malformed"
	KindInvalid      Kind = "invalid"
	KindInternal     Kind = "internal"
)

// Failure is the client-facing description of an error.
// Message is always safe to show; raw error text never ends up here.
type Failure struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
}

var internalFailure = Failure{
	Kind:    KindInternal,
	Status:  http.StatusInternalServerError,
	Message: "internal server error",
}

var failures = map[string]Failure{
	CodeInvalidRequest:      {Kind: KindInvalid, Status: http.StatusBadRequest, Message: "invalid request"},
	CodeEmailDomainRejected: {Kind: KindInvalid, Status: http.StatusBadRequest, Message: "email domain is not allowed"},
	CodeEmailTaken:          {Kind: KindConflict, Status: http.StatusConflict, Message: "email already registered"},
	CodeUserNotFound:        {Kind: KindNotFound, Status: http.StatusNotFound, Message: "email/password wrong"},
	CodeInvalidCredentials:  {Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: "email/password wrong"},
	CodeOTPNotFound:         {Kind: KindNotFound, Status: http.StatusNotFound, Message: "OTP not found"},
	CodeOTPExpired:          {Kind: KindExpired, Status: http.StatusBadRequest, Message: "OTP has expired"},
	CodeOTPInvalid:          {Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: "OTP is invalid"},
	CodeOTPAttemptsExceeded: {Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: "too many attempts, request a new OTP"},
	CodeTokenMissing:        {Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: "no authorization header"},
	CodeTokenExpired:        {Kind: KindExpired, Status: http.StatusUnauthorized, Message: "token has expired"},
	CodeTokenMalformed:      {Kind: KindMalformed, Status: http.StatusInternalServerError, Message: "token could not be verified"},
	CodeSigningKeyUnset:     {Kind: KindInternal, Status: http.StatusInternalServerError, Message: "can't generate token"},
}

// ErrorCode returns the oops code carried by err, or "" when there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

// Describe maps err to the Failure shown to clients.
// Unknown errors, including every storage failure, describe as internal.
func Describe(err error) Failure {
	if err == nil {
		return Failure{}
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return Failure{
			Kind:    KindInvalid,
			Status:  http.StatusBadRequest,
			Code:    CodeInvalidRequest,
			Message: verr.Message,
		}
	}

	code := ErrorCode(err)
	f, ok := failures[code]
	if !ok {
		f = internalFailure
	}
	f.Code = code
	return f
}

// outcomeLabel is the metrics label for an operation result.
func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(Describe(err).Kind)
}
