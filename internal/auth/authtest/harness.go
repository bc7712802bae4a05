// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package authtest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fellowhub/fellowhub/internal/auth"
	"github.com/fellowhub/fellowhub/internal/token"
)

// Secret is a token secret long enough for token.New.
var Secret = []byte("authtest-secret-authtest-secret-0123456789")

// CheapParams keeps argon2id fast in tests.
var CheapParams = auth.Argon2Params{Memory: 64, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}

// Harness wires a CredentialService over in-memory collaborators.
type Harness struct {
	Store    *Store
	Mailer   *Mailer
	Clock    *Clock
	Codec    *token.Codec
	Sessions *auth.SessionManager
	Service  *auth.CredentialService
}

type harnessConfig struct {
	service  auth.Config
	sessions auth.SessionConfig
	limiter  auth.AttemptLimiter
	logger   *slog.Logger
	hasher   auth.PasswordHasher
}

// HarnessOption customizes NewHarness.
type HarnessOption func(*harnessConfig)

// WithServiceConfig sets the CredentialService configuration.
func WithServiceConfig(cfg auth.Config) HarnessOption {
	return func(c *harnessConfig) { c.service = cfg }
}

// WithSessionConfig sets the session lifetimes.
func WithSessionConfig(cfg auth.SessionConfig) HarnessOption {
	return func(c *harnessConfig) { c.sessions = cfg }
}

// WithLimiter installs a per-IP attempt limiter.
func WithLimiter(l auth.AttemptLimiter) HarnessOption {
	return func(c *harnessConfig) { c.limiter = l }
}

// WithLogger sets the services' logger.
func WithLogger(l *slog.Logger) HarnessOption {
	return func(c *harnessConfig) { c.logger = l }
}

// WithHasher replaces the cheap argon2id hasher.
func WithHasher(h auth.PasswordHasher) HarnessOption {
	return func(c *harnessConfig) { c.hasher = h }
}

// NewHarness builds a Harness with the clock at a fixed instant.
func NewHarness(t testing.TB, opts ...HarnessOption) *Harness {
	t.Helper()

	cfg := harnessConfig{
		hasher: auth.NewArgon2idHasherWithParams(CheapParams),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Harness{
		Store:  NewStore(),
		Mailer: &Mailer{},
		Clock:  NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}

	var err error
	h.Codec, err = token.New(token.Config{Secret: Secret, Issuer: "fellowhub"}, token.WithClock(h.Clock.Now))
	require.NoError(t, err)

	svcOpts := []auth.Option{auth.WithClock(h.Clock.Now), auth.WithLogger(cfg.logger)}
	h.Sessions, err = auth.NewSessionManager(h.Store.Users(), h.Store.Sessions(), h.Codec, h.Store.Transactor(), cfg.sessions, svcOpts...)
	require.NoError(t, err)

	h.Service, err = auth.NewCredentialService(auth.Deps{
		Users:         h.Store.Users(),
		Verifications: h.Store.Verifications(),
		Resets:        h.Store.Resets(),
		Sessions:      h.Sessions,
		Hasher:        cfg.hasher,
		Transactor:    h.Store.Transactor(),
		Email:         h.Mailer,
		Limiter:       cfg.limiter,
	}, cfg.service, svcOpts...)
	require.NoError(t, err)

	return h
}

// SignUp registers an account and returns it.
func (h *Harness) SignUp(t testing.TB, email, password string) auth.UserView {
	t.Helper()
	view, err := h.Service.Signup(context.Background(), auth.SignupInput{
		Email:    email,
		Name:     "Test User",
		Password: password,
	})
	require.NoError(t, err)
	return *view
}

// LogIn logs in and returns the result.
func (h *Harness) LogIn(t testing.TB, email, password string) *auth.LoginResult {
	t.Helper()
	res, err := h.Service.Login(context.Background(), auth.LoginInput{
		Email:     email,
		Password:  password,
		IPAddress: "203.0.113.7",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/130.0",
	})
	require.NoError(t, err)
	return res
}
