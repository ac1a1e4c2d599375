// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/placy/placy/internal/auth"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	ErrMsg  string `json:"errmsg"`
	Payload any    `json:"payload,omitempty"`
	Token   string `json:"token,omitempty"`
	Refresh string `json:"refresh,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.DebugContext(r.Context(), "response write failed", "error", err)
	}
}

func writeOK(w http.ResponseWriter, r *http.Request, env Envelope) {
	env.Success = true
	if env.Status == 0 {
		env.Status = http.StatusOK
	}
	writeEnvelope(w, r, env)
}

// writeFailure renders err through auth.Describe, so only the safe
// message reaches the client.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	f := auth.Describe(err)
	writeEnvelope(w, r, Envelope{Status: f.Status, ErrMsg: f.Message})
}

func writeSession(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	writeOK(w, r, Envelope{
		Payload: sess.Credential,
		Token:   sess.Tokens.Access,
		Refresh: sess.Tokens.Refresh,
	})
}
