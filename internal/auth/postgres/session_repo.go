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

const sessionColumns = `id, user_id, token_hash, refresh_token_hash, expires_at, last_activity,
		       ip_address, user_agent, device, remember_me, is_valid, created_at`

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO sessions (
			id, user_id, token_hash, refresh_token_hash, expires_at, last_activity,
			ip_address, user_agent, device, remember_me, is_valid, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		session.ID.String(),
		session.UserID,
		session.TokenHash,
		session.RefreshTokenHash,
		session.ExpiresAt,
		session.LastActivity,
		session.IPAddress,
		session.UserAgent,
		session.Device,
		session.RememberMe,
		session.IsValid,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", session.UserID).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Session, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = $1
	`, id.String())

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_ID_FAILED").
			With("operation", "get session by id").
			With("id", id.String()).
			Wrap(err)
	}
	return session, nil
}

// GetByTokenHash retrieves a session by its access token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	return r.getByHash(ctx, "token_hash", tokenHash)
}

// GetByRefreshTokenHash retrieves a session by its refresh token hash.
func (r *SessionRepository) GetByRefreshTokenHash(ctx context.Context, refreshTokenHash string) (*auth.Session, error) {
	return r.getByHash(ctx, "refresh_token_hash", refreshTokenHash)
}

// column is one of the two indexed hash columns, never caller input.
func (r *SessionRepository) getByHash(ctx context.Context, column, hash string) (*auth.Session, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE `+column+` = $1`+lockClause(ctx), hash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_HASH_FAILED").
			With("operation", "get session by "+column).
			Wrap(err)
	}
	return session, nil
}

// ListByUser returns every session of a user, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID int64) ([]*auth.Session, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_BY_USER_FAILED").
			With("operation", "list sessions by user").
			With("user_id", userID).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}
	return sessions, nil
}

// TouchLastActivity records activity on a session.
func (r *SessionRepository) TouchLastActivity(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE sessions SET last_activity = $2
		WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").
			With("operation", "update last_activity").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Invalidate marks one session invalid. Only one caller can win: a session
// that is already invalid yields auth.ErrAlreadyConsumed.
func (r *SessionRepository) Invalidate(ctx context.Context, id ulid.ULID) error {
	q := conn(ctx, r.db)
	result, err := q.Exec(ctx, `
		UPDATE sessions SET is_valid = FALSE
		WHERE id = $1 AND is_valid
	`, id.String())
	if err != nil {
		return oops.Code("SESSION_INVALIDATE_FAILED").
			With("operation", "invalidate session").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}
	err = consumedOrMissing(ctx, q, "sessions", id.String(), auth.ErrAlreadyConsumed, auth.ErrNotFound)
	return oops.Code("SESSION_NOT_INVALIDATED").With("id", id.String()).Wrap(err)
}

// InvalidateByUser marks every valid session of a user invalid and returns
// how many changed.
func (r *SessionRepository) InvalidateByUser(ctx context.Context, userID int64) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE sessions SET is_valid = FALSE
		WHERE user_id = $1 AND is_valid
	`, userID)
	if err != nil {
		return 0, oops.Code("SESSION_INVALIDATE_BY_USER_FAILED").
			With("operation", "invalidate sessions by user").
			With("user_id", userID).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes sessions that expired before the cutoff.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		s     auth.Session
		idStr string
	)
	err := row.Scan(
		&idStr,
		&s.UserID,
		&s.TokenHash,
		&s.RefreshTokenHash,
		&s.ExpiresAt,
		&s.LastActivity,
		&s.IPAddress,
		&s.UserAgent,
		&s.Device,
		&s.RememberMe,
		&s.IsValid,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	s.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	return &s, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
