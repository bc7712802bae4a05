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

const resetColumns = `id, user_id, token_hash, expires_at, used, used_at, ip_address, created_at`

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	db DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create stores a new password reset token.
func (r *PasswordResetRepository) Create(ctx context.Context, token *auth.PasswordResetToken) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, used, used_at, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		token.ID.String(),
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.Used,
		token.UsedAt,
		token.IPAddress,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset_token").
			With("user_id", token.UserID).
			Wrap(err)
	}
	return nil
}

// ListRedeemable returns the unused, unexpired reset tokens of a user,
// newest first. Inside a transaction the rows are locked.
func (r *PasswordResetRepository) ListRedeemable(ctx context.Context, userID int64, now time.Time) ([]*auth.PasswordResetToken, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT `+resetColumns+`
		FROM password_reset_tokens
		WHERE user_id = $1 AND NOT used AND expires_at > $2
		ORDER BY created_at DESC`+lockClause(ctx), userID, now)
	if err != nil {
		return nil, oops.Code("RESET_LIST_FAILED").
			With("operation", "list redeemable reset tokens").
			With("user_id", userID).
			Wrap(err)
	}
	defer rows.Close()

	var tokens []*auth.PasswordResetToken
	for rows.Next() {
		token, err := scanResetToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RESET_ROWS_ERROR").
			With("operation", "iterate reset token rows").
			Wrap(err)
	}
	return tokens, nil
}

// MarkUsed consumes a reset token. A token that was already used yields
// auth.ErrAlreadyConsumed.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id ulid.ULID, at time.Time) error {
	q := conn(ctx, r.db)
	result, err := q.Exec(ctx, `
		UPDATE password_reset_tokens SET used = TRUE, used_at = $2
		WHERE id = $1 AND NOT used
	`, id.String(), at)
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").
			With("operation", "mark reset token used").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}
	err = consumedOrMissing(ctx, q, "password_reset_tokens", id.String(), auth.ErrAlreadyConsumed, auth.ErrNotFound)
	return oops.Code("RESET_NOT_REDEEMED").With("id", id.String()).Wrap(err)
}

// InvalidateUnused consumes every outstanding reset token of a user.
func (r *PasswordResetRepository) InvalidateUnused(ctx context.Context, userID int64, at time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE password_reset_tokens SET used = TRUE, used_at = $2
		WHERE user_id = $1 AND NOT used
	`, userID, at)
	if err != nil {
		return 0, oops.Code("RESET_INVALIDATE_FAILED").
			With("operation", "invalidate unused reset tokens").
			With("user_id", userID).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes reset tokens that expired before the cutoff.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired reset tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanResetToken(row pgx.Row) (*auth.PasswordResetToken, error) {
	var (
		t     auth.PasswordResetToken
		idStr string
	)
	err := row.Scan(&idStr, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Used, &t.UsedAt, &t.IPAddress, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan password_reset_token").
			Wrap(err)
	}

	t.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse reset token id").
			With("id", idStr).
			Wrap(err)
	}
	return &t, nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
