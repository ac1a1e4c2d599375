// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

// Package mocks provides testify mocks for the auth interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/placy/placy/internal/auth"
)

// Compile-time interface checks.
var (
	_ auth.CredentialStore = (*MockCredentialStore)(nil)
	_ auth.OTPPurger       = (*MockCredentialStore)(nil)
	_ auth.Notifier        = (*MockNotifier)(nil)
)

type cleanupT interface {
	mock.TestingT
	Cleanup(func())
}

// MockCredentialStore is a mock auth.CredentialStore.
type MockCredentialStore struct {
	mock.Mock
}

// NewMockCredentialStore creates a mock that asserts its expectations on cleanup.
func NewMockCredentialStore(t cleanupT) *MockCredentialStore {
	m := &MockCredentialStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCredentialStore) FindByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	args := m.Called(ctx, email)
	cred, _ := args.Get(0).(*auth.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentialStore) Insert(ctx context.Context, cred *auth.Credential) error {
	return m.Called(ctx, cred).Error(0)
}

func (m *MockCredentialStore) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	return m.Called(ctx, email, hash).Error(0)
}

func (m *MockCredentialStore) FindOTP(ctx context.Context, email string) (*auth.OneTimeCode, error) {
	args := m.Called(ctx, email)
	otp, _ := args.Get(0).(*auth.OneTimeCode)
	return otp, args.Error(1)
}

func (m *MockCredentialStore) InsertOTP(ctx context.Context, code *auth.OneTimeCode) error {
	return m.Called(ctx, code).Error(0)
}

func (m *MockCredentialStore) ConsumeOTPAndUpdatePassword(ctx context.Context, email, code, hash string, maxAttempts int) error {
	return m.Called(ctx, email, code, hash, maxAttempts).Error(0)
}

func (m *MockCredentialStore) PurgeOTPs(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockNotifier is a mock auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t cleanupT) *MockNotifier {
	m := &MockNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockNotifier) SendCode(ctx context.Context, n auth.CodeNotification) error {
	return m.Called(ctx, n).Error(0)
}
