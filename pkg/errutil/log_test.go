// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placy/placy/pkg/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("TEST_ERROR").
		With("key", "value").
		Errorf("something failed")

	errutil.LogError(logger, "operation failed", err)

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Equal(t, "operation failed", logEntry["msg"])
	assert.Equal(t, "TEST_ERROR", logEntry["code"])
	require.IsType(t, map[string]any{}, logEntry["context"])
	assert.Equal(t, "value", logEntry["context"].(map[string]any)["key"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := errors.New("standard error")

	errutil.LogError(logger, "operation failed", err)

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Contains(t, logEntry["error"], "standard error")
	assert.NotContains(t, logEntry, "code")
}

type ctxKey struct{}

// ctxHandler records the context each record was logged with.
type ctxHandler struct {
	slog.Handler
	seen []context.Context
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	h.seen = append(h.seen, ctx)
	return h.Handler.Handle(ctx, r)
}

func TestLogErrorContext_PassesContext(t *testing.T) {
	var buf bytes.Buffer
	h := &ctxHandler{Handler: slog.NewJSONHandler(&buf, nil)}
	logger := slog.New(h)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	errutil.LogErrorContext(ctx, logger, "failed", oops.Code("X").Errorf("boom"))

	require.Len(t, h.seen, 1)
	assert.Equal(t, "req-1", h.seen[0].Value(ctxKey{}))
}
