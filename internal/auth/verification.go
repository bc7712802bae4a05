// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultVerificationTTL is how long an email verification link works.
const DefaultVerificationTTL = 48 * time.Hour

// VerificationType discriminates verification tokens.
type VerificationType string

// VerificationEmail confirms ownership of the account email.
const VerificationEmail VerificationType = "email"

// VerificationToken is a hashed single-use verification token.
type VerificationToken struct {
	ID        ulid.ULID
	UserID    int64
	Type      VerificationType
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// NewVerificationToken creates an unused token.
func NewVerificationToken(userID int64, typ VerificationType, tokenHash string, expiresAt, now time.Time) (*VerificationToken, error) {
	if userID <= 0 {
		return nil, oops.Code("VERIFICATION_INVALID_USER").With("user_id", userID).Errorf("user ID must be positive")
	}
	if typ == "" {
		return nil, oops.Code("VERIFICATION_INVALID_TYPE").Errorf("token type cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("VERIFICATION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("VERIFICATION_INVALID_EXPIRY").Errorf("expiry must be in the future")
	}
	return &VerificationToken{
		ID:        ulid.Make(),
		UserID:    userID,
		Type:      typ,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// RedeemableAt reports whether the token is unused and unexpired at t.
func (v *VerificationToken) RedeemableAt(t time.Time) bool {
	return !v.Used && t.Before(v.ExpiresAt)
}

func (v *VerificationToken) storedHash() string { return v.TokenHash }

// VerificationTokenRepository manages verification token persistence.
type VerificationTokenRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *VerificationToken) error

	// ListRedeemable returns the user's unused, unexpired tokens of typ.
	// Inside a transaction the rows are locked until commit.
	ListRedeemable(ctx context.Context, userID int64, typ VerificationType, now time.Time) ([]*VerificationToken, error)

	// MarkUsed flips used on an unused token. Returns ErrAlreadyConsumed if
	// the token was already used.
	MarkUsed(ctx context.Context, id ulid.ULID, at time.Time) error

	// InvalidateUnused marks every unused token of typ for the user as used
	// and returns how many were changed.
	InvalidateUnused(ctx context.Context, userID int64, typ VerificationType, at time.Time) (int64, error)

	// DeleteExpired removes tokens that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
