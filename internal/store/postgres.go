// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

// Package store owns the PostgreSQL connection pool and the schema
// migrations for the auth tables.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolOptions controls how OpenPool waits for the database.
type PoolOptions struct {
	// Attempts is the total number of pings before giving up. Zero means one.
	Attempts uint64
	// Backoff is the first delay between attempts; it doubles each retry.
	Backoff time.Duration
	Logger  *slog.Logger
}

// OpenPool connects to dsn and pings until the database answers or the
// attempts run out. A malformed dsn fails immediately.
func OpenPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("STORE_INVALID_DSN").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("STORE_POOL_FAILED").With("host", cfg.ConnConfig.Host).Wrap(err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	retries := uint64(0)
	if opts.Attempts > 1 {
		retries = opts.Attempts - 1
	}

	attempt := 0
	err = retry.Do(ctx, retry.WithMaxRetries(retries, retry.NewExponential(backoff)), func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database not ready",
				"host", cfg.ConnConfig.Host,
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}
