// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fellowhub/fellowhub/internal/auth"
)

const verificationColumns = `id, user_id, type, token_hash, expires_at, used, used_at, created_at`

// VerificationTokenRepository implements auth.VerificationTokenRepository
// using PostgreSQL.
type VerificationTokenRepository struct {
	db DB
}

// NewVerificationTokenRepository creates a new VerificationTokenRepository.
func NewVerificationTokenRepository(db DB) *VerificationTokenRepository {
	return &VerificationTokenRepository{db: db}
}

// Create stores a new verification token.
func (r *VerificationTokenRepository) Create(ctx context.Context, token *auth.VerificationToken) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO verification_tokens (id, user_id, type, token_hash, expires_at, used, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		token.ID.String(),
		token.UserID,
		string(token.Type),
		token.TokenHash,
		token.ExpiresAt,
		token.Used,
		token.UsedAt,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("VERIFICATION_CREATE_FAILED").
			With("operation", "insert verification_token").
			With("user_id", token.UserID).
			Wrap(err)
	}
	return nil
}

// ListRedeemable returns the unused, unexpired tokens of a user, newest
// first. Inside a transaction the rows are locked.
func (r *VerificationTokenRepository) ListRedeemable(ctx context.Context, userID int64, typ auth.VerificationType, now time.Time) ([]*auth.VerificationToken, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT `+verificationColumns+`
		FROM verification_tokens
		WHERE user_id = $1 AND type = $2 AND NOT used AND expires_at > $3
		ORDER BY created_at DESC`+lockClause(ctx), userID, string(typ), now)
	if err != nil {
		return nil, oops.Code("VERIFICATION_LIST_FAILED").
			With("operation", "list redeemable verification tokens").
			With("user_id", userID).
			Wrap(err)
	}
	defer rows.Close()

	var tokens []*auth.VerificationToken
	for rows.Next() {
		token, err := scanVerificationToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("VERIFICATION_ROWS_ERROR").
			With("operation", "iterate verification token rows").
			Wrap(err)
	}
	return tokens, nil
}

// MarkUsed consumes a token. A token that was already used yields
// auth.ErrAlreadyConsumed.
func (r *VerificationTokenRepository) MarkUsed(ctx context.Context, id ulid.ULID, at time.Time) error {
	q := conn(ctx, r.db)
	result, err := q.Exec(ctx, `
		UPDATE verification_tokens SET used = TRUE, used_at = $2
		WHERE id = $1 AND NOT used
	`, id.String(), at)
	if err != nil {
		return oops.Code("VERIFICATION_MARK_USED_FAILED").
			With("operation", "mark verification token used").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}
	err = consumedOrMissing(ctx, q, "verification_tokens", id.String(), auth.ErrAlreadyConsumed, auth.ErrNotFound)
	return oops.Code("VERIFICATION_NOT_REDEEMED").With("id", id.String()).Wrap(err)
}

// InvalidateUnused consumes every outstanding token of a user and type.
func (r *VerificationTokenRepository) InvalidateUnused(ctx context.Context, userID int64, typ auth.VerificationType, at time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE verification_tokens SET used = TRUE, used_at = $3
		WHERE user_id = $1 AND type = $2 AND NOT used
	`, userID, string(typ), at)
	if err != nil {
		return 0, oops.Code("VERIFICATION_INVALIDATE_FAILED").
			With("operation", "invalidate unused verification tokens").
			With("user_id", userID).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes tokens that expired before the cutoff.
func (r *VerificationTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM verification_tokens WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, oops.Code("VERIFICATION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired verification tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanVerificationToken(row pgx.Row) (*auth.VerificationToken, error) {
	var (
		t     auth.VerificationToken
		idStr string
		typ   string
	)
	err := row.Scan(&idStr, &t.UserID, &typ, &t.TokenHash, &t.ExpiresAt, &t.Used, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("VERIFICATION_SCAN_FAILED").
			With("operation", "scan verification token").
			Wrap(err)
	}
	t.Type = auth.VerificationType(typ)

	t.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("VERIFICATION_INVALID_ID").
			With("operation", "parse verification token id").
			With("id", idStr).
			Wrap(err)
	}
	return &t, nil
}

// Compile-time interface check.
var _ auth.VerificationTokenRepository = (*VerificationTokenRepository)(nil)
