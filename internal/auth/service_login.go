// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"context"
	"errors"
	"time"
)

// LoginInput carries credentials and client metadata.
type LoginInput struct {
	Email      string
	Password   string
	IPAddress  string
	UserAgent  string
	RememberMe bool
}

// Login authenticates by email and password and creates a session.
//
// Unknown, inactive and wrong-password logins all fail with
// KindInvalidCredentials after a full password verification, so the
// response does not reveal which check failed.
func (s *CredentialService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	result, err := s.login(ctx, in)
	LoginsTotal.WithLabelValues(outcomeOf(err)).Inc()
	return result, err
}

func (s *CredentialService) login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if s.ipBlocked(ctx, in.IPAddress) {
		return nil, newError(KindTooManyAttempts, "too many failed attempts, try again later")
	}

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(in.Email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, internalError("get user by email", err)
		}
		s.verifyPassword(in.Password, dummyPasswordHash)
		s.recordIPFailure(ctx, in.IPAddress)
		return nil, invalidCredentials()
	}
	if !user.IsActive {
		s.verifyPassword(in.Password, dummyPasswordHash)
		s.recordIPFailure(ctx, in.IPAddress)
		return nil, invalidCredentials()
	}

	now := s.now()
	if user.AccountLocked {
		if s.cfg.Lockout.LockedAt(user, now) {
			return nil, s.accountLocked(user, now)
		}
		if err := s.users.Update(ctx, user.ID, unlockUpdate()); err != nil {
			return nil, internalError("auto unlock", err)
		}
		unlockUpdate().Apply(user)
		s.logger.InfoContext(ctx, "account lockout expired", "user_id", user.ID)
	}

	if !s.verifyPassword(in.Password, user.PasswordHash) {
		outcome, err := s.users.RecordLoginFailure(ctx, user.ID, now, s.cfg.Lockout.MaxAttempts)
		if err != nil {
			return nil, internalError("record login failure", err)
		}
		s.recordIPFailure(ctx, in.IPAddress)
		if outcome.Locked {
			s.logger.WarnContext(ctx, "account locked after failed logins",
				"user_id", user.ID,
				"attempts", outcome.Attempts)
		}
		return nil, invalidCredentials()
	}

	if s.cfg.RequireVerifiedEmail && !user.EmailVerified {
		return nil, newError(KindEmailNotVerified, "email address has not been verified")
	}

	var upgraded string
	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if upgraded, err = s.hashPassword(in.Password); err != nil {
			s.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
				"operation", "upgrade_hash",
				"user_id", user.ID,
				"error", err)
			upgraded = ""
		}
	}

	meta := SessionMeta{IPAddress: in.IPAddress, UserAgent: in.UserAgent, RememberMe: in.RememberMe}
	var issued *IssuedSession
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		// Re-read under lock: the account can change while the password is
		// being verified.
		current, err := s.users.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
		if !current.IsActive || current.PasswordHash != user.PasswordHash {
			return invalidCredentials()
		}
		if s.cfg.Lockout.LockedAt(current, now) {
			return s.accountLocked(current, now)
		}
		user = current

		if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
			return err
		}
		if upgraded != "" {
			if err := s.users.Update(ctx, user.ID, UserUpdate{PasswordHash: &upgraded}); err != nil {
				return err
			}
		}
		issued, err = s.sessions.CreateSession(ctx, user, meta)
		return err
	})
	if err != nil {
		return nil, internalError("complete login", err)
	}

	s.resetIPFailures(ctx, in.IPAddress)
	return &LoginResult{
		Tokens:     issued.Tokens,
		RememberMe: in.RememberMe,
		User:       user.View(),
	}, nil
}

func (s *CredentialService) accountLocked(user *User, now time.Time) error {
	return withKind(KindAccountLocked, failure(KindAccountLocked).
		With("user_id", user.ID).
		With("retry_after", s.cfg.Lockout.Remaining(user, now).Round(time.Second).String()).
		Errorf("account is temporarily locked"))
}

// Logout revokes every session of the user owning accessToken. The token
// must authenticate.
func (s *CredentialService) Logout(ctx context.Context, accessToken string) error {
	identity, err := s.sessions.Validate(ctx, accessToken)
	if err != nil {
		return err
	}
	n, err := s.sessions.Invalidate(ctx, accessToken)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", identity.User.ID, "sessions", n)
	return nil
}

// LogoutSession revokes only the session behind identity.
func (s *CredentialService) LogoutSession(ctx context.Context, identity *Identity) error {
	if identity == nil || identity.Session == nil {
		return unauthorized()
	}
	return s.sessions.InvalidateSession(ctx, identity.Session.ID)
}

// Refresh rotates a refresh token into a new token pair. Every failure
// other than an internal one is KindUnauthorized.
func (s *CredentialService) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*IssuedSession, error) {
	return s.sessions.Refresh(ctx, refreshToken, meta)
}

// ValidateSession authenticates an access token.
func (s *CredentialService) ValidateSession(ctx context.Context, accessToken string) (*Identity, error) {
	return s.sessions.Validate(ctx, accessToken)
}

func (s *CredentialService) ipBlocked(ctx context.Context, ip string) bool {
	if s.limiter == nil || ip == "" {
		return false
	}
	blocked, err := s.limiter.Blocked(ctx, ip)
	if err != nil {
		// Fail open: the per-account lockout still applies.
		s.logger.WarnContext(ctx, "best-effort ip limiter check failed",
			"operation", "ip_limiter_blocked",
			"error", err)
		return false
	}
	return blocked
}

func (s *CredentialService) recordIPFailure(ctx context.Context, ip string) {
	if s.limiter == nil || ip == "" {
		return
	}
	if err := s.limiter.RecordFailure(ctx, ip); err != nil {
		s.logger.WarnContext(ctx, "best-effort ip failure record failed",
			"operation", "ip_limiter_record",
			"error", err)
	}
}

func (s *CredentialService) resetIPFailures(ctx context.Context, ip string) {
	if s.limiter == nil || ip == "" {
		return
	}
	if err := s.limiter.Reset(ctx, ip); err != nil {
		s.logger.WarnContext(ctx, "best-effort ip failure reset failed",
			"operation", "ip_limiter_reset",
			"error", err)
	}
}

func invalidCredentials() error {
	return newError(KindInvalidCredentials, "invalid email or password")
}
