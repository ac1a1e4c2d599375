// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stubStore struct {
	CredentialStore
	cred *Credential
}

func (s *stubStore) FindByEmail(context.Context, string) (*Credential, error) {
	if s.cred == nil {
		return nil, ErrNotFound
	}
	return s.cred, nil
}

func (s *stubStore) InsertOTP(context.Context, *OneTimeCode) error { return nil }

type blockingNotifier struct {
	release chan struct{}
	err     error
}

func (n *blockingNotifier) SendCode(ctx context.Context, _ CodeNotification) error {
	select {
	case <-n.release:
		return n.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTestService(t *testing.T, notifier Notifier, settings Config) *Service {
	t.Helper()
	codec, err := NewTokenCodec(TokenConfig{Secret: []byte("s")}, nil)
	require.NoError(t, err)
	cred, err := NewCredential("a@x.io", "alice", "h", time.Now())
	require.NoError(t, err)
	svc, err := NewService(ServiceConfig{
		Store:    &stubStore{cred: cred},
		Notifier: notifier,
		Tokens:   codec,
		Hasher:   NewArgon2idHasher(HashParams{Memory: 1024, Time: 1, Threads: 1}),
		Settings: settings,
		Logger:   slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	return svc
}

func TestClose_WaitsForNotifications(t *testing.T) {
	defer goleak.VerifyNone(t)

	notifier := &blockingNotifier{release: make(chan struct{})}
	svc := newTestService(t, notifier, Config{})
	require.NoError(t, svc.ForgotPassword(context.Background(), "a@x.io"))

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := svc.Close(short)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(notifier.release)
	require.NoError(t, svc.Close(context.Background()))
}

func TestNotifyTimeoutBoundsDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)

	before := testutil.ToFloat64(notificationsTotal.WithLabelValues(notifyFailed))

	notifier := &blockingNotifier{release: make(chan struct{})}
	svc := newTestService(t, notifier, Config{NotifyTimeout: 10 * time.Millisecond})
	require.NoError(t, svc.ForgotPassword(context.Background(), "a@x.io"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Close(ctx))

	assert.InDelta(t, before+1, testutil.ToFloat64(notificationsTotal.WithLabelValues(notifyFailed)), 0.001)
}

func TestOperationMetrics(t *testing.T) {
	notifier := &blockingNotifier{release: make(chan struct{})}
	close(notifier.release)
	svc := newTestService(t, notifier, Config{})

	okBefore := testutil.ToFloat64(operationsTotal.WithLabelValues(opForgot, "ok"))
	invalidBefore := testutil.ToFloat64(operationsTotal.WithLabelValues(opForgot, string(KindInvalid)))
	sentBefore := testutil.ToFloat64(notificationsTotal.WithLabelValues(notifySent))

	require.NoError(t, svc.ForgotPassword(context.Background(), "a@x.io"))
	require.Error(t, svc.ForgotPassword(context.Background(), "bad"))
	require.NoError(t, svc.Close(context.Background()))

	assert.InDelta(t, okBefore+1, testutil.ToFloat64(operationsTotal.WithLabelValues(opForgot, "ok")), 0.001)
	assert.InDelta(t, invalidBefore+1, testutil.ToFloat64(operationsTotal.WithLabelValues(opForgot, string(KindInvalid))), 0.001)
	assert.InDelta(t, sentBefore+1, testutil.ToFloat64(notificationsTotal.WithLabelValues(notifySent)), 0.001)
}

func TestCollectorsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Collectors()...)

	operationsTotal.WithLabelValues(opLogin, "ok").Add(0)
	notificationsTotal.WithLabelValues(notifySent).Add(0)
	operationDuration.WithLabelValues(opLogin).Observe(0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "placy_auth_operations_total")
	assert.Contains(t, names, "placy_auth_operation_duration_seconds")
	assert.Contains(t, names, "placy_auth_notifications_total")
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "ok", outcomeLabel(nil))
	assert.Equal(t, "internal", outcomeLabel(errors.New("x")))
}

func TestRandomDigits(t *testing.T) {
	counts := make(map[byte]int)
	for range 2000 {
		for _, d := range []byte(randomDigits(OTPLength)) {
			require.True(t, d >= '0' && d <= '9')
			counts[d]++
		}
	}
	assert.Len(t, counts, 10, "every digit appears")
}
