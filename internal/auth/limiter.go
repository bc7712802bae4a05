// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import "context"

// AttemptLimiter counts failed logins per client key, typically the client
// IP address. It complements per-account lockout by slowing down attackers
// who spread guesses across many accounts.
type AttemptLimiter interface {
	// Blocked reports whether key has exceeded its failure budget.
	Blocked(ctx context.Context, key string) (bool, error)

	// RecordFailure counts one failed attempt for key.
	RecordFailure(ctx context.Context, key string) error

	// Reset forgets the failures recorded for key.
	Reset(ctx context.Context, key string) error
}
