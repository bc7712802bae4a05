// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package redis

import (
	"context"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// Connect builds a client from a redis:// or rediss:// URL, or a bare
// host:port, and pings it once.
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	if redisURL == "" {
		return nil, oops.Code("REDIS_INVALID_URL").Errorf("redis URL is empty")
	}

	opts := &goredis.Options{Addr: redisURL}
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := goredis.ParseURL(redisURL)
		if err != nil {
			return nil, oops.Code("REDIS_INVALID_URL").Wrap(err)
		}
		opts = parsed
	}

	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_UNREACHABLE").With("addr", opts.Addr).Wrap(err)
	}
	return client, nil
}
