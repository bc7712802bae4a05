// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session is the server-side record behind an access/refresh token pair.
// ExpiresAt is the refresh token's expiry and is never extended.
type Session struct {
	ID               ulid.ULID
	UserID           int64
	TokenHash        string
	RefreshTokenHash string
	ExpiresAt        time.Time
	LastActivity     time.Time
	IPAddress        string
	UserAgent        string
	Device           string
	RememberMe       bool
	IsValid          bool
	CreatedAt        time.Time
}

// SessionMeta describes the client a session is issued to.
type SessionMeta struct {
	IPAddress  string
	UserAgent  string
	RememberMe bool
}

// NewSession creates a valid Session. UserAgent and IPAddress are optional.
func NewSession(id ulid.ULID, userID int64, tokenHash, refreshTokenHash string, meta SessionMeta, expiresAt, now time.Time) (*Session, error) {
	if id.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ID").Errorf("session ID cannot be zero")
	}
	if userID <= 0 {
		return nil, oops.Code("SESSION_INVALID_USER").With("user_id", userID).Errorf("user ID must be positive")
	}
	if tokenHash == "" || refreshTokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hashes cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry must be in the future")
	}

	return &Session{
		ID:               id,
		UserID:           userID,
		TokenHash:        tokenHash,
		RefreshTokenHash: refreshTokenHash,
		ExpiresAt:        expiresAt,
		LastActivity:     now,
		IPAddress:        meta.IPAddress,
		UserAgent:        meta.UserAgent,
		Device:           DeviceLabel(meta.UserAgent),
		RememberMe:       meta.RememberMe,
		IsValid:          true,
		CreatedAt:        now,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// ActiveAt reports whether the session can authenticate at t.
func (s *Session) ActiveAt(t time.Time) bool {
	return s.IsValid && !s.IsExpiredAt(t)
}

// HashToken computes the hex SHA256 of a token. Issued tokens and random
// single-use tokens are stored only in this form.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenMatchesHash checks token against a stored hash in constant time.
func TokenMatchesHash(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// DeviceLabel derives a short "Browser on OS" label from a user agent.
func DeviceLabel(userAgent string) string {
	if userAgent == "" {
		return ""
	}

	var os string
	switch {
	case strings.Contains(userAgent, "iPhone"), strings.Contains(userAgent, "iPad"):
		os = "iOS"
	case strings.Contains(userAgent, "Android"):
		os = "Android"
	case strings.Contains(userAgent, "Windows"):
		os = "Windows"
	case strings.Contains(userAgent, "Mac OS X"), strings.Contains(userAgent, "Macintosh"):
		os = "macOS"
	case strings.Contains(userAgent, "Linux"):
		os = "Linux"
	}

	// Order matters: Edge and Chrome both claim Safari, Edge claims Chrome.
	var browser string
	switch {
	case strings.Contains(userAgent, "Edg/"):
		browser = "Edge"
	case strings.Contains(userAgent, "Firefox/"):
		browser = "Firefox"
	case strings.Contains(userAgent, "Chrome/"):
		browser = "Chrome"
	case strings.Contains(userAgent, "Safari/"):
		browser = "Safari"
	}

	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "Unknown"
	}
}

// SessionRepository manages session persistence. Methods use the
// transaction in ctx when there is one.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByID returns ErrNotFound if the session does not exist.
	GetByID(ctx context.Context, id ulid.ULID) (*Session, error)

	// GetByTokenHash looks a session up by its access token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// GetByRefreshTokenHash looks a session up by its refresh token hash.
	GetByRefreshTokenHash(ctx context.Context, refreshTokenHash string) (*Session, error)

	// ListByUser returns all sessions for a user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*Session, error)

	// TouchLastActivity stamps last_activity.
	TouchLastActivity(ctx context.Context, id ulid.ULID, at time.Time) error

	// Invalidate marks one session invalid. It returns ErrAlreadyConsumed
	// when the session exists but was already invalid, and ErrNotFound when
	// it does not exist.
	Invalidate(ctx context.Context, id ulid.ULID) error

	// InvalidateByUser marks every valid session of a user invalid and
	// returns how many were changed.
	InvalidateByUser(ctx context.Context, userID int64) (int64, error)

	// DeleteExpired removes sessions that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
