// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fellowhub/fellowhub/internal/token"
)

// Session lifetime defaults.
const (
	DefaultAccessTTL        = 15 * time.Minute
	DefaultRefreshTTL       = 7 * 24 * time.Hour
	DefaultRememberMeTTL    = 30 * 24 * time.Hour
	DefaultSessionRetention = 24 * time.Hour
)

// Session invalidation reasons, used as metric labels.
const (
	ReasonLogout        = "logout"
	ReasonLogoutSession = "logout_session"
	ReasonRefresh       = "refresh"
	ReasonPasswordReset = "password_reset"
	ReasonDeactivated   = "deactivated"
	ReasonRoleChanged   = "role_changed"
	ReasonRevoked       = "revoked"
)

// TokenCodec issues and verifies tokens. *token.Codec implements it.
type TokenCodec interface {
	Issue(claims token.Claims, ttl time.Duration) (string, token.Claims, error)
	Verify(raw string) (token.Claims, error)
	VerifyAccess(raw string) (token.Access, error)
	VerifyRefresh(raw string) (token.Refresh, error)
}

var _ TokenCodec = (*token.Codec)(nil)

// SessionConfig controls token lifetimes.
type SessionConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration
	// Retention is how long expired sessions are kept before Prune removes
	// them.
	Retention time.Duration
}

// DefaultSessionConfig returns the default lifetimes.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AccessTTL:     DefaultAccessTTL,
		RefreshTTL:    DefaultRefreshTTL,
		RememberMeTTL: DefaultRememberMeTTL,
		Retention:     DefaultSessionRetention,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	d := DefaultSessionConfig()
	if c.AccessTTL <= 0 {
		c.AccessTTL = d.AccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = d.RefreshTTL
	}
	if c.RememberMeTTL <= 0 {
		c.RememberMeTTL = d.RememberMeTTL
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	return c
}

// SessionManager issues, validates, rotates and revokes sessions.
type SessionManager struct {
	users    UserRepository
	sessions SessionRepository
	codec    TokenCodec
	tx       Transactor
	cfg      SessionConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionManager creates a SessionManager. Zero durations in cfg take
// their defaults.
func NewSessionManager(users UserRepository, sessions SessionRepository, codec TokenCodec, tx Transactor, cfg SessionConfig, opts ...Option) (*SessionManager, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("sessions repository is required")
	}
	if codec == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token codec is required")
	}
	if tx == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("transactor is required")
	}

	s := newSettings(opts)
	return &SessionManager{
		users:    users,
		sessions: sessions,
		codec:    codec,
		tx:       tx,
		cfg:      cfg.withDefaults(),
		logger:   s.logger,
		now:      s.now,
	}, nil
}

// Config returns the effective lifetimes.
func (m *SessionManager) Config() SessionConfig { return m.cfg }

// CreateSession mints an access/refresh pair for user and persists the
// session. It uses the transaction in ctx when called inside one.
func (m *SessionManager) CreateSession(ctx context.Context, user *User, meta SessionMeta) (*IssuedSession, error) {
	id := ulid.Make()
	common := token.Common{Subject: user.IDString(), SessionID: id.String()}

	accessRaw, accessClaims, err := m.codec.Issue(token.Access{
		Common: common,
		Email:  user.Email,
		Name:   user.Name,
		Role:   string(user.Role),
	}, m.cfg.AccessTTL)
	if err != nil {
		return nil, internalError("issue access token", err)
	}

	refreshTTL := m.cfg.RefreshTTL
	if meta.RememberMe {
		refreshTTL = m.cfg.RememberMeTTL
	}
	refreshRaw, refreshClaims, err := m.codec.Issue(token.Refresh{Common: common}, refreshTTL)
	if err != nil {
		return nil, internalError("issue refresh token", err)
	}

	session, err := NewSession(
		id,
		user.ID,
		HashToken(accessRaw),
		HashToken(refreshRaw),
		meta,
		refreshClaims.Base().ExpiresAt,
		m.now(),
	)
	if err != nil {
		return nil, internalError("build session", err)
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, internalError("persist session", err)
	}

	return &IssuedSession{
		Session: session,
		Tokens: TokenPair{
			AccessToken:      accessRaw,
			AccessExpiresAt:  accessClaims.Base().ExpiresAt,
			RefreshToken:     refreshRaw,
			RefreshExpiresAt: refreshClaims.Base().ExpiresAt,
		},
	}, nil
}

// Validate authenticates an access token against its session and returns
// the caller's identity. Every rejection is KindUnauthorized.
func (m *SessionManager) Validate(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := m.codec.VerifyAccess(accessToken)
	if err != nil {
		return nil, unauthorized()
	}

	session, err := m.sessions.GetByTokenHash(ctx, HashToken(accessToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unauthorized()
		}
		return nil, internalError("get session by token hash", err)
	}

	now := m.now()
	if !session.ActiveAt(now) ||
		session.ID.String() != claims.SessionID ||
		FormatUserID(session.UserID) != claims.Subject {
		return nil, unauthorized()
	}

	user, err := m.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unauthorized()
		}
		return nil, internalError("get session user", err)
	}
	if !user.IsActive {
		return nil, unauthorized()
	}

	if err := m.sessions.TouchLastActivity(ctx, session.ID, now); err != nil {
		m.logger.WarnContext(ctx, "best-effort last activity update failed",
			"operation", "touch_last_activity",
			"session_id", session.ID.String(),
			"error", err)
	} else {
		session.LastActivity = now
	}

	return &Identity{User: user, Session: session, Claims: claims}, nil
}

// Invalidate revokes every session of the user owning tok, which may be an
// access or a refresh token. It returns the number of sessions revoked.
func (m *SessionManager) Invalidate(ctx context.Context, tok string) (int64, error) {
	userID, err := m.ownerOf(ctx, tok)
	if err != nil {
		return 0, err
	}
	return m.InvalidateUser(ctx, userID, ReasonLogout)
}

func (m *SessionManager) ownerOf(ctx context.Context, tok string) (int64, error) {
	if tok == "" {
		return 0, unauthorized()
	}

	hash := HashToken(tok)
	session, err := m.sessions.GetByTokenHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		session, err = m.sessions.GetByRefreshTokenHash(ctx, hash)
	}
	switch {
	case err == nil:
		return session.UserID, nil
	case !errors.Is(err, ErrNotFound):
		return 0, internalError("get session for invalidation", err)
	}

	// No session row (already pruned); fall back to an authentic token.
	claims, err := m.codec.Verify(tok)
	if err != nil {
		return 0, unauthorized()
	}
	userID, err := ParseUserID(claims.Base().Subject)
	if err != nil {
		return 0, unauthorized()
	}
	return userID, nil
}

// InvalidateSession revokes a single session. Revoking an already revoked
// session is not an error.
func (m *SessionManager) InvalidateSession(ctx context.Context, id ulid.ULID) error {
	return m.invalidateSession(ctx, id, ReasonLogoutSession)
}

func (m *SessionManager) invalidateSession(ctx context.Context, id ulid.ULID, reason string) error {
	err := m.sessions.Invalidate(ctx, id)
	switch {
	case err == nil:
		SessionsInvalidatedTotal.WithLabelValues(reason).Inc()
		return nil
	case errors.Is(err, ErrAlreadyConsumed):
		return nil
	case errors.Is(err, ErrNotFound):
		return unauthorized()
	default:
		return internalError("invalidate session", err)
	}
}

// ListSessions returns every stored session of a user, newest first,
// including revoked and expired ones not yet pruned.
func (m *SessionManager) ListSessions(ctx context.Context, userID int64) ([]*Session, error) {
	sessions, err := m.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, internalError("list sessions", err)
	}
	return sessions, nil
}

// RevokeSession revokes one session of userID. A session that does not
// exist or belongs to someone else is KindInvalidInput.
func (m *SessionManager) RevokeSession(ctx context.Context, userID int64, id ulid.ULID) error {
	sess, err := m.sessions.GetByID(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return internalError("get session", err)
	}
	if err != nil || sess.UserID != userID {
		return withKind(KindInvalidInput, failure(KindInvalidInput).
			With("user_id", userID).
			With("session_id", id.String()).
			Errorf("no such session"))
	}
	return m.invalidateSession(ctx, id, ReasonRevoked)
}

// InvalidateUser revokes every valid session of a user. It uses the
// transaction in ctx when called inside one.
func (m *SessionManager) InvalidateUser(ctx context.Context, userID int64, reason string) (int64, error) {
	n, err := m.sessions.InvalidateByUser(ctx, userID)
	if err != nil {
		return 0, internalError("invalidate user sessions", err)
	}
	SessionsInvalidatedTotal.WithLabelValues(reason).Add(float64(n))
	return n, nil
}

// Refresh rotates the session behind refreshToken: the old session is
// revoked and a new one issued in the same transaction. A refresh token
// works at most once. meta fields left empty are inherited from the old
// session.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*IssuedSession, error) {
	issued, err := m.refresh(ctx, refreshToken, meta)
	RefreshTotal.WithLabelValues(outcomeOf(err)).Inc()
	return issued, err
}

func (m *SessionManager) refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*IssuedSession, error) {
	claims, err := m.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, unauthorized()
	}

	old, err := m.sessions.GetByRefreshTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unauthorized()
		}
		return nil, internalError("get session by refresh hash", err)
	}
	if !old.ActiveAt(m.now()) ||
		old.ID.String() != claims.SessionID ||
		FormatUserID(old.UserID) != claims.Subject {
		return nil, unauthorized()
	}

	user, err := m.users.GetByID(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unauthorized()
		}
		return nil, internalError("get refresh user", err)
	}
	if !user.IsActive {
		return nil, unauthorized()
	}

	meta.RememberMe = old.RememberMe
	if meta.IPAddress == "" {
		meta.IPAddress = old.IPAddress
	}
	if meta.UserAgent == "" {
		meta.UserAgent = old.UserAgent
	}

	var issued *IssuedSession
	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := m.sessions.Invalidate(ctx, old.ID); err != nil {
			if errors.Is(err, ErrAlreadyConsumed) || errors.Is(err, ErrNotFound) {
				return unauthorized()
			}
			return err
		}
		var err error
		issued, err = m.CreateSession(ctx, user, meta)
		return err
	})
	if err != nil {
		return nil, internalError("rotate session", err)
	}

	SessionsInvalidatedTotal.WithLabelValues(ReasonRefresh).Inc()
	return issued, nil
}

// PruneSessions deletes sessions that expired longer than the retention
// period ago.
func (m *SessionManager) PruneSessions(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpired(ctx, m.now().Add(-m.cfg.Retention))
	if err != nil {
		return 0, internalError("prune sessions", err)
	}
	return n, nil
}

func unauthorized() error {
	return newError(KindUnauthorized, "authentication required")
}
