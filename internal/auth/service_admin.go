// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
)

// LookupUser returns the account registered under email.
func (s *CredentialService) LookupUser(ctx context.Context, email string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, withKind(KindInvalidInput, failure(KindInvalidInput).
				With("email", NormalizeEmail(email)).
				Errorf("no user with that email"))
		}
		return nil, internalError("get user by email", err)
	}
	return user, nil
}

// UnlockUser clears a lockout and the failure counter.
func (s *CredentialService) UnlockUser(ctx context.Context, email string) error {
	user, err := s.LookupUser(ctx, email)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, user.ID, unlockUpdate()); err != nil {
		return internalError("unlock user", err)
	}
	s.logger.InfoContext(ctx, "user unlocked", "user_id", user.ID)
	return nil
}

// DeactivateUser disables an account and revokes its sessions. Users are
// never deleted.
func (s *CredentialService) DeactivateUser(ctx context.Context, email string) error {
	user, err := s.LookupUser(ctx, email)
	if err != nil {
		return err
	}

	var revoked int64
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		active := false
		if err := s.users.Update(ctx, user.ID, UserUpdate{IsActive: &active}); err != nil {
			return err
		}
		var err error
		revoked, err = s.sessions.InvalidateUser(ctx, user.ID, ReasonDeactivated)
		return err
	})
	if err != nil {
		return internalError("deactivate user", err)
	}
	s.logger.InfoContext(ctx, "user deactivated", "user_id", user.ID, "sessions_revoked", revoked)
	return nil
}

// ChangeRole sets a user's role. The role is embedded in access tokens, so
// the user's sessions are revoked.
func (s *CredentialService) ChangeRole(ctx context.Context, email string, role Role) error {
	if !role.Valid() {
		return withKind(KindInvalidInput, failure(KindInvalidInput).
			With("role", string(role)).
			Errorf("unknown role %q", role))
	}
	user, err := s.LookupUser(ctx, email)
	if err != nil {
		return err
	}

	var revoked int64
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, user.ID, UserUpdate{Role: &role}); err != nil {
			return err
		}
		var err error
		revoked, err = s.sessions.InvalidateUser(ctx, user.ID, ReasonRoleChanged)
		return err
	})
	if err != nil {
		return internalError("change role", err)
	}
	s.logger.InfoContext(ctx, "user role changed",
		"user_id", user.ID,
		"from", string(user.Role),
		"to", string(role),
		"sessions_revoked", revoked)
	return nil
}

// ListUserSessions returns the sessions of the account registered under
// email, newest first.
func (s *CredentialService) ListUserSessions(ctx context.Context, email string) ([]*Session, error) {
	user, err := s.LookupUser(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.sessions.ListSessions(ctx, user.ID)
}

// RevokeUserSession revokes one session of the account registered under
// email. sessionID is the session's ULID.
func (s *CredentialService) RevokeUserSession(ctx context.Context, email, sessionID string) error {
	id, err := ulid.ParseStrict(sessionID)
	if err != nil {
		return withKind(KindInvalidInput, failure(KindInvalidInput).
			With("session_id", sessionID).
			Wrapf(err, "invalid session id"))
	}
	user, err := s.LookupUser(ctx, email)
	if err != nil {
		return err
	}
	if err := s.sessions.RevokeSession(ctx, user.ID, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "session revoked", "user_id", user.ID, "session_id", sessionID)
	return nil
}

// PruneReport counts rows removed by Prune.
type PruneReport struct {
	Sessions           int64
	VerificationTokens int64
	ResetTokens        int64
}

// Prune removes expired sessions and expired single-use tokens.
func (s *CredentialService) Prune(ctx context.Context) (PruneReport, error) {
	var report PruneReport
	var err error

	if report.Sessions, err = s.sessions.PruneSessions(ctx); err != nil {
		return report, err
	}
	cutoff := s.now()
	if report.VerificationTokens, err = s.verifications.DeleteExpired(ctx, cutoff); err != nil {
		return report, internalError("prune verification tokens", err)
	}
	if report.ResetTokens, err = s.resets.DeleteExpired(ctx, cutoff); err != nil {
		return report, internalError("prune reset tokens", err)
	}
	return report, nil
}
