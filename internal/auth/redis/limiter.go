// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

// Package redis provides a Redis-backed auth.AttemptLimiter that counts
// failed logins per client IP.
package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/fellowhub/fellowhub/internal/auth"
)

const keyPrefix = "fellowhub:auth:ip_failures:"

// LimiterConfig sets the failure budget per key.
type LimiterConfig struct {
	// MaxAttempts failures inside Window block the key.
	MaxAttempts int
	// Window starts at the first failure and is not extended by later ones.
	Window time.Duration
}

// AttemptLimiter implements auth.AttemptLimiter with one expiring counter per
// key.
type AttemptLimiter struct {
	client goredis.Cmdable
	cfg    LimiterConfig
}

// NewAttemptLimiter creates a limiter on client.
func NewAttemptLimiter(client goredis.Cmdable, cfg LimiterConfig) (*AttemptLimiter, error) {
	if client == nil {
		return nil, oops.Code("LIMITER_INVALID_CONFIG").Errorf("redis client is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, oops.Code("LIMITER_INVALID_CONFIG").With("max_attempts", cfg.MaxAttempts).Errorf("max attempts must be at least 1")
	}
	if cfg.Window <= 0 {
		return nil, oops.Code("LIMITER_INVALID_CONFIG").With("window", cfg.Window).Errorf("window must be positive")
	}
	return &AttemptLimiter{client: client, cfg: cfg}, nil
}

func counterKey(key string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(key))
}

// Blocked reports whether key has used up its failure budget.
func (l *AttemptLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Get(ctx, counterKey(key)).Int()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("LIMITER_READ_FAILED").With("operation", "get failure counter").Wrap(err)
	}
	return n >= l.cfg.MaxAttempts, nil
}

// RecordFailure increments the counter for key, starting its window on the
// first failure.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, key string) error {
	k := counterKey(key)
	_, err := l.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Incr(ctx, k)
		p.ExpireNX(ctx, k, l.cfg.Window)
		return nil
	})
	if err != nil {
		return oops.Code("LIMITER_WRITE_FAILED").With("operation", "increment failure counter").Wrap(err)
	}
	return nil
}

// Reset clears the counter for key.
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, counterKey(key)).Err(); err != nil {
		return oops.Code("LIMITER_WRITE_FAILED").With("operation", "delete failure counter").Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.AttemptLimiter = (*AttemptLimiter)(nil)
