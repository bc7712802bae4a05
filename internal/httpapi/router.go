// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

// Package httpapi exposes the credential service over HTTP with chi.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fellowhub/fellowhub/internal/auth"
	"github.com/fellowhub/fellowhub/internal/observability"
)

// Service is the part of *auth.CredentialService the handlers call.
type Service interface {
	Signup(ctx context.Context, in auth.SignupInput) (*auth.UserView, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	Logout(ctx context.Context, accessToken string) error
	LogoutSession(ctx context.Context, identity *auth.Identity) error
	Refresh(ctx context.Context, refreshToken string, meta auth.SessionMeta) (*auth.IssuedSession, error)
	ValidateSession(ctx context.Context, accessToken string) (*auth.Identity, error)
	ForgotPassword(ctx context.Context, email, ipAddress string) error
	ResetPassword(ctx context.Context, in auth.ResetPasswordInput) error
	VerifyEmail(ctx context.Context, userID, token string) error
	ResendVerification(ctx context.Context, email string) error
}

var _ Service = (*auth.CredentialService)(nil)

// Config controls cookies and proxy handling.
type Config struct {
	Cookies CookieConfig
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// Handler serves the /auth routes.
type Handler struct {
	svc     Service
	cfg     Config
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithMetrics records per-route request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithClock sets the time source used for cookie lifetimes.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a Handler.
func NewHandler(svc Service, cfg Config, opts ...Option) *Handler {
	h := &Handler{
		svc:    svc,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router with every auth endpoint mounted under /auth.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if h.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(h.recoverer)
	r.Use(h.observe)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.signup)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/forgot-password", h.forgotPassword)
		r.Post("/reset-password", h.resetPassword)
		r.Post("/verify-email", h.verifyEmail)
		r.Post("/resend-verification", h.resendVerification)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Post("/logout", h.logout)
			r.Get("/me", h.me)
		})
	})

	return r
}
