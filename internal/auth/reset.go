// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultResetTTL is how long a password reset link works.
const DefaultResetTTL = time.Hour

// PasswordResetToken is a hashed single-use password reset token.
type PasswordResetToken struct {
	ID        ulid.ULID
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	IPAddress string
	CreatedAt time.Time
}

// NewPasswordResetToken creates an unused token. ipAddress records who
// asked for it and may be empty.
func NewPasswordResetToken(userID int64, tokenHash, ipAddress string, expiresAt, now time.Time) (*PasswordResetToken, error) {
	if userID <= 0 {
		return nil, oops.Code("RESET_INVALID_USER").With("user_id", userID).Errorf("user ID must be positive")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry must be in the future")
	}
	return &PasswordResetToken{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		IPAddress: ipAddress,
		CreatedAt: now,
	}, nil
}

// RedeemableAt reports whether the token is unused and unexpired at t.
func (r *PasswordResetToken) RedeemableAt(t time.Time) bool {
	return !r.Used && t.Before(r.ExpiresAt)
}

func (r *PasswordResetToken) storedHash() string { return r.TokenHash }

// PasswordResetRepository manages password reset token persistence.
type PasswordResetRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *PasswordResetToken) error

	// ListRedeemable returns the user's unused, unexpired tokens. Inside a
	// transaction the rows are locked until commit.
	ListRedeemable(ctx context.Context, userID int64, now time.Time) ([]*PasswordResetToken, error)

	// MarkUsed flips used on an unused token. Returns ErrAlreadyConsumed if
	// the token was already used.
	MarkUsed(ctx context.Context, id ulid.ULID, at time.Time) error

	// InvalidateUnused marks every unused token of the user as used and
	// returns how many were changed.
	InvalidateUnused(ctx context.Context, userID int64, at time.Time) (int64, error)

	// DeleteExpired removes tokens that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
