// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fellowhub/fellowhub/pkg/errutil"
)

func TestNewAttemptLimiter_Validates(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name   string
		client goredis.Cmdable
		cfg    LimiterConfig
	}{
		{"nil client", nil, LimiterConfig{MaxAttempts: 3, Window: time.Minute}},
		{"zero attempts", client, LimiterConfig{Window: time.Minute}},
		{"zero window", client, LimiterConfig{MaxAttempts: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAttemptLimiter(tt.client, tt.cfg)
			errutil.AssertErrorCode(t, err, "LIMITER_INVALID_CONFIG")
		})
	}
}

func TestCounterKey_Normalizes(t *testing.T) {
	assert.Equal(t, "fellowhub:auth:ip_failures:2001:db8::1", counterKey(" 2001:DB8::1 "))
}

func TestAttemptLimiter_UnreachableRedis(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	l, err := NewAttemptLimiter(client, LimiterConfig{MaxAttempts: 3, Window: time.Minute})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = l.Blocked(ctx, "203.0.113.7")
	errutil.AssertErrorCode(t, err, "LIMITER_READ_FAILED")
	errutil.AssertErrorCode(t, l.RecordFailure(ctx, "203.0.113.7"), "LIMITER_WRITE_FAILED")
	errutil.AssertErrorCode(t, l.Reset(ctx, "203.0.113.7"), "LIMITER_WRITE_FAILED")
}

func TestConnect_RejectsBadInput(t *testing.T) {
	_, err := Connect(context.Background(), "")
	errutil.AssertErrorCode(t, err, "REDIS_INVALID_URL")

	_, err = Connect(context.Background(), "redis://:%zz@localhost")
	errutil.AssertErrorCode(t, err, "REDIS_INVALID_URL")
}
