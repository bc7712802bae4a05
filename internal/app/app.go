// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

// Package app assembles the FellowHub server from configuration: database
// pool, repositories, token codec, credential service, HTTP API,
// observability server and the background pruner.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/fellowhub/fellowhub/internal/auth"
	"github.com/fellowhub/fellowhub/internal/auth/postgres"
	"github.com/fellowhub/fellowhub/internal/auth/redis"
	"github.com/fellowhub/fellowhub/internal/config"
	"github.com/fellowhub/fellowhub/internal/email"
	"github.com/fellowhub/fellowhub/internal/httpapi"
	"github.com/fellowhub/fellowhub/internal/observability"
	"github.com/fellowhub/fellowhub/internal/store"
	"github.com/fellowhub/fellowhub/internal/token"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 5 * time.Second

// Options override parts of the wiring. Zero values use the configured
// defaults.
type Options struct {
	Logger *slog.Logger
	// Clock is shared by the token codec, services and HTTP cookies.
	Clock func() time.Time
	// Transport replaces the transport selected by email.provider.
	Transport email.Transport
	// Limiter replaces the Redis limiter selected by auth.ip_lockout.
	Limiter auth.AttemptLimiter
}

// App is a fully wired server.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	pool    *pgxpool.Pool
	redis   *goredis.Client
	service *auth.CredentialService
	obs     *observability.Server
	api     *httpapi.Handler
	pruner  *Pruner

	listener net.Listener
}

// New validates cfg, connects to PostgreSQL (and Redis when IP lockout is
// enabled) and wires every component. Call Close when done.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL, logger); err != nil {
			return nil, err
		}
	}

	a.pool, err = store.OpenPool(ctx, cfg.Database.URL, store.PoolOptions{
		Attempts: cfg.Database.ConnectAttempts,
		Backoff:  cfg.Database.ConnectBackoff,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	codec, err := token.New(cfg.TokenConfig(), token.WithClock(now))
	if err != nil {
		return nil, err
	}

	authOpts := []auth.Option{auth.WithLogger(logger), auth.WithClock(now)}
	users := postgres.NewUserRepository(a.pool)
	tx := postgres.NewTransactor(a.pool)
	sessions, err := auth.NewSessionManager(users, postgres.NewSessionRepository(a.pool), codec, tx,
		cfg.SessionConfig(), authOpts...)
	if err != nil {
		return nil, err
	}

	limiter, err := a.limiter(ctx, opts.Limiter)
	if err != nil {
		return nil, err
	}

	transport, err := a.transport(opts.Transport)
	if err != nil {
		return nil, err
	}
	sender, err := email.NewSender(transport, email.SenderConfig{
		BaseURL:         cfg.Email.BaseURL,
		VerificationTTL: cfg.Auth.VerificationTTL,
		ResetTTL:        cfg.Auth.ResetTTL,
	})
	if err != nil {
		return nil, err
	}

	a.service, err = auth.NewCredentialService(auth.Deps{
		Users:         users,
		Verifications: postgres.NewVerificationTokenRepository(a.pool),
		Resets:        postgres.NewPasswordResetRepository(a.pool),
		Sessions:      sessions,
		Hasher:        auth.NewArgon2idHasher(),
		Transactor:    tx,
		Email:         sender,
		Limiter:       limiter,
	}, cfg.ServiceConfig(), authOpts...)
	if err != nil {
		return nil, err
	}

	a.obs = observability.NewServer(cfg.Server.MetricsAddr, a.pool.Ping, logger)
	auth.RegisterMetrics(a.obs.Registry())

	a.api = httpapi.NewHandler(a.service, httpapi.Config{
		Cookies: httpapi.CookieConfig{
			Secure: cfg.Cookies.Secure,
			Domain: cfg.Cookies.Domain,
		},
		TrustProxy: cfg.Server.TrustProxy,
	}, httpapi.WithLogger(logger), httpapi.WithMetrics(a.obs.Metrics()), httpapi.WithClock(now))

	a.pruner = NewPruner(a.service, cfg.Auth.PruneInterval, logger)
	return a, nil
}

func migrateUp(databaseURL string, logger *slog.Logger) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	if err := m.Up(); err != nil {
		return err
	}
	version, _, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("database schema up to date", "version", version)
	return nil
}

func (a *App) limiter(ctx context.Context, override auth.AttemptLimiter) (auth.AttemptLimiter, error) {
	if override != nil {
		return override, nil
	}
	cfg := a.cfg.Auth.IPLockout
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	limiter, err := redis.NewAttemptLimiter(client, redis.LimiterConfig{
		MaxAttempts: cfg.MaxAttempts,
		Window:      cfg.Window,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info("ip lockout enabled", "max_attempts", cfg.MaxAttempts, "window", cfg.Window)
	return limiter, nil
}

func (a *App) transport(override email.Transport) (email.Transport, error) {
	if override != nil {
		return override, nil
	}
	cfg := a.cfg.Email
	switch cfg.Provider {
	case config.EmailProviderPostmark:
		support := cfg.Support
		if support == "" {
			support = cfg.Sender
		}
		return email.NewPostmarkTransport(email.PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
			Sender:       cfg.Sender,
			Support:      support,
		})
	default:
		a.logger.Warn("email delivery disabled, messages are only logged")
		return email.NewLogTransport(a.logger), nil
	}
}

// Service returns the credential service.
func (a *App) Service() *auth.CredentialService { return a.service }

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler { return a.api.Routes() }

// Pruner returns the background pruner.
func (a *App) Pruner() *Pruner { return a.pruner }

// Addr returns the API listen address once Run has bound it.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Run serves the API and observability endpoints and runs the pruner until
// ctx is cancelled or a server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Server.MetricsAddr != "" {
		obsErrs, err := a.obs.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrs, "observability", a.logger)
		defer a.stopServer("observability", a.obs.Stop)
	}

	listener, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return oops.Code("APP_LISTEN_FAILED").With("addr", a.cfg.Server.Addr).Wrap(err)
	}
	a.listener = listener

	srv := newAPIServer(ctx, a.Handler())
	apiErrs := make(chan error, 1)
	go func() {
		defer close(apiErrs)
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrs <- serveErr
		}
	}()

	prunerDone := make(chan struct{})
	go func() {
		defer close(prunerDone)
		a.pruner.Run(ctx)
	}()

	a.logger.Info("fellowhub ready", "addr", listener.Addr().String(), "metrics_addr", a.obs.Addr())

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-apiErrs:
		runErr = oops.Code("APP_SERVE_FAILED").Wrap(err)
		cancel()
	}

	a.stopServer("api", srv.Shutdown)
	<-prunerDone
	return runErr
}

// newAPIServer builds the API server. Request contexts keep ctx's values
// but not its cancellation, so Shutdown drains in-flight requests.
func newAPIServer(ctx context.Context, handler http.Handler) *http.Server {
	base := context.WithoutCancel(ctx)
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
}

func (a *App) stopServer(name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		a.logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// Close releases the database pool and Redis client.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, server string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", server, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
