// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/placy/placy/pkg/errutil"
)

var tracer = otel.Tracer("placy/auth")

// Operation names used for spans, metrics and logs.
const (
	opSignup  = "signup"
	opLogin   = "login"
	opForgot  = "forgot_password"
	opReset   = "reset_password"
	opRefresh = "refresh"
)

// DefaultNotifyTimeout bounds a single background reset code delivery.
const DefaultNotifyTimeout = 30 * time.Second

// Sentinel errors for service construction.
var (
	ErrNilStore    = oops.Code("AUTH_NIL_STORE").Errorf("credential store is required")
	ErrNilNotifier = oops.Code("AUTH_NIL_NOTIFIER").Errorf("notifier is required")
	ErrNilTokens   = oops.Code("AUTH_NIL_TOKENS").Errorf("token codec is required")
)

// Config tunes Service behaviour.
type Config struct {
	// OTPExpiry is how long a reset code stays valid.
	OTPExpiry time.Duration
	// MaxOTPAttempts is how many wrong guesses burn a code. Zero disables the limit.
	MaxOTPAttempts int
	// NotifyTimeout bounds each background notification.
	NotifyTimeout time.Duration
	// AllowedEmailDomains restricts signup to matching domains (glob patterns,
	// '.' separated). Empty allows every domain.
	AllowedEmailDomains []string
	// Version is reported by Health.
	Version string
}

// ServiceConfig holds Service dependencies.
type ServiceConfig struct {
	Store    CredentialStore
	Notifier Notifier
	Tokens   *TokenCodec
	Hasher   PasswordHasher   // defaults to NewArgon2idHasher(DefaultHashParams())
	Settings Config
	Logger   *slog.Logger     // defaults to slog.Default()
	Clock    func() time.Time // defaults to time.Now
}

// Health is the liveness payload.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Session is the result of a successful signup or login.
type Session struct {
	Credential CredentialView
	Tokens     TokenPair
}

// Service provides the credential lifecycle operations.
type Service struct {
	store    CredentialStore
	notifier Notifier
	tokens   *TokenCodec
	hasher   PasswordHasher
	otps     *OTPGenerator
	cfg      Config
	domains  []glob.Glob
	logger   *slog.Logger
	now      func() time.Time

	// dummyHash is verified when a login email is unknown so response time
	// does not reveal whether the account exists.
	dummyHash string

	inflight sync.WaitGroup
}

// NewService creates a Service. Store, Notifier and Tokens are required.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.Notifier == nil {
		return nil, ErrNilNotifier
	}
	if cfg.Tokens == nil {
		return nil, ErrNilTokens
	}
	if cfg.Hasher == nil {
		cfg.Hasher = NewArgon2idHasher(DefaultHashParams())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Settings.OTPExpiry <= 0 {
		cfg.Settings.OTPExpiry = DefaultOTPExpiry
	}
	if cfg.Settings.NotifyTimeout <= 0 {
		cfg.Settings.NotifyTimeout = DefaultNotifyTimeout
	}

	domains := make([]glob.Glob, 0, len(cfg.Settings.AllowedEmailDomains))
	for _, pattern := range cfg.Settings.AllowedEmailDomains {
		g, err := glob.Compile(strings.ToLower(pattern), '.')
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_DOMAIN_PATTERN").With("pattern", pattern).Wrap(err)
		}
		domains = append(domains, g)
	}

	return &Service{
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		tokens:    cfg.Tokens,
		hasher:    cfg.Hasher,
		otps:      NewOTPGenerator(cfg.Clock),
		cfg:       cfg.Settings,
		domains:   domains,
		logger:    cfg.Logger,
		now:       cfg.Clock,
		dummyHash: cfg.Hasher.Hash("placy-timing-equalizer"),
	}, nil
}

// Health reports liveness. It has no side effects and never fails.
func (s *Service) Health() Health {
	return Health{Status: "OK", Version: s.cfg.Version}
}

// Signup registers a new credential and logs it in.
func (s *Service) Signup(ctx context.Context, c Candidate) (_ *Session, err error) {
	ctx, end := s.observe(ctx, opSignup)
	defer func() { end(err) }()

	c.Email = NormalizeEmail(c.Email)
	if err := validateRequest(c); err != nil {
		return nil, err
	}
	email := c.Email
	if !s.domainAllowed(email) {
		return nil, oops.Code(CodeEmailDomainRejected).With("email", email).
			Errorf("email domain is not allowed")
	}

	cred, err := NewCredential(email, c.Username, s.hasher.Hash(c.Password), s.now())
	if err != nil {
		return nil, oops.Code(CodeSignupFailed).With("operation", "new credential").Wrap(err)
	}
	if err := s.store.Insert(ctx, cred); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, oops.Code(CodeEmailTaken).With("email", email).Errorf("email already registered")
		}
		return nil, oops.Code(CodeSignupFailed).With("operation", "insert credential").Wrap(err)
	}
	s.logger.InfoContext(ctx, "credential created", "user_id", cred.ID.String())

	return s.login(ctx, Credentials{Email: email, Password: c.Password})
}

// Login verifies an email/password pair and issues a token pair.
// Unknown emails and wrong passwords share a message but differ in code.
func (s *Service) Login(ctx context.Context, creds Credentials) (_ *Session, err error) {
	ctx, end := s.observe(ctx, opLogin)
	defer func() { end(err) }()

	creds.Email = NormalizeEmail(creds.Email)
	if err := validateRequest(creds); err != nil {
		return nil, err
	}
	return s.login(ctx, creds)
}

func (s *Service) login(ctx context.Context, creds Credentials) (*Session, error) {
	email := creds.Email

	cred, lookupErr := s.store.FindByEmail(ctx, email)
	found := lookupErr == nil
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code(CodeLoginFailed).With("operation", "find credential").Wrap(lookupErr)
	}

	// Always verify so unknown emails cost the same as wrong passwords.
	target := s.dummyHash
	if found {
		target = cred.PasswordHash
	}
	valid := s.hasher.Verify(creds.Password, target)

	if !found {
		return nil, oops.Code(CodeUserNotFound).With("email", email).Errorf("email/password wrong")
	}
	if !valid {
		return nil, oops.Code(CodeInvalidCredentials).With("email", email).Errorf("email/password wrong")
	}

	if s.hasher.NeedsUpgrade(cred.PasswordHash) {
		upgraded := s.hasher.Hash(creds.Password)
		if err := s.store.UpdatePasswordHash(ctx, cred.Email, upgraded); err != nil {
			// Login succeeds regardless; the upgrade is retried next time.
			errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed", err)
		} else {
			cred.PasswordHash = upgraded
		}
	}

	pair, err := s.tokens.IssuePair(cred.Identity())
	if err != nil {
		return nil, err
	}
	return &Session{Credential: cred.View(), Tokens: pair}, nil
}

// Close waits for background notifications to finish or ctx to end.
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("AUTH_CLOSE_TIMEOUT").Wrap(ctx.Err())
	}
}

func (s *Service) domainAllowed(email string) bool {
	if len(s.domains) == 0 {
		return true
	}
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return false
	}
	for _, g := range s.domains {
		if g.Match(domain) {
			return true
		}
	}
	return false
}

// observe starts a span for op and returns a func that ends it, records
// metrics and logs the outcome.
func (s *Service) observe(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "auth."+op, trace.WithAttributes(attribute.String("auth.operation", op)))
	start := time.Now()
	return ctx, func(err error) {
		defer span.End()
		recordOperation(op, err, time.Since(start))
		if err == nil {
			return
		}
		f := Describe(err)
		span.SetAttributes(attribute.String("auth.outcome", string(f.Kind)))
		if f.Kind == KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, f.Message)
			errutil.LogErrorContext(ctx, s.logger, op+" failed", err)
			return
		}
		s.logger.InfoContext(ctx, op+" rejected", "code", f.Code, "kind", string(f.Kind))
	}
}
