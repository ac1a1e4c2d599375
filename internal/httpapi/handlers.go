// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/placy/placy/internal/auth"
)

// Service is the part of *auth.Service the API exposes.
type Service interface {
	Signup(ctx context.Context, c auth.Candidate) (*auth.Session, error)
	Login(ctx context.Context, creds auth.Credentials) (*auth.Session, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req auth.PasswordReset) error
	Refresh(ctx context.Context, authorization string) (*auth.TokenPair, error)
	Health() auth.Health
}

var _ Service = (*auth.Service)(nil)

// ForgotRequest is the body of POST /forgot.
type ForgotRequest struct {
	Email string `json:"email"`
}

type handlers struct {
	svc          Service
	maxBodyBytes int64
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req auth.Candidate
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSession(w, r, sess)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req auth.Credentials
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSession(w, r, sess)
}

func (h *handlers) forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, r, Envelope{})
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	var req auth.PasswordReset
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, r, Envelope{})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.svc.Refresh(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, r, Envelope{Token: pair.Access, Refresh: pair.Refresh})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeOK(w, r, Envelope{Payload: h.svc.Health()})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, r, Envelope{Status: http.StatusNotFound, ErrMsg: "route not found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, r, Envelope{Status: http.StatusMethodNotAllowed, ErrMsg: "method not allowed"})
}

// decode reads a JSON body into dst. On failure it writes a 400 and
// returns false.
func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil {
		if dec.More() {
			err = errors.New("trailing data after JSON body")
		} else {
			return true
		}
	}

	msg := "invalid request body"
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeEnvelope(w, r, Envelope{Status: http.StatusRequestEntityTooLarge, ErrMsg: "request body too large"})
		return false
	case errors.Is(err, io.EOF):
		msg = "request body is empty"
	}
	writeEnvelope(w, r, Envelope{Status: http.StatusBadRequest, ErrMsg: msg})
	return false
}
