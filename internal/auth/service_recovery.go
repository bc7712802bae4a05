// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"context"
	"errors"

	"github.com/fellowhub/fellowhub/pkg/errutil"
)

// Single-use token kinds, used as metric labels.
const (
	redeemVerification = "verification"
	redeemReset        = "reset"
)

// ForgotPassword emails a password reset link when email belongs to an
// active account. The result is nil whether or not the account exists;
// failures after the lookup are logged, not returned.
func (s *CredentialService) ForgotPassword(ctx context.Context, email, ipAddress string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return internalError("get user by email", err)
	}
	if !user.IsActive {
		return nil
	}

	raw, hash, err := GenerateSingleUseToken()
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password reset request failed", err)
		return nil
	}

	now := s.now()
	reset, err := NewPasswordResetToken(user.ID, hash, ipAddress, now.Add(s.cfg.ResetTTL), now)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password reset request failed", err)
		return nil
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.resets.InvalidateUnused(ctx, user.ID, now); err != nil {
			return err
		}
		return s.resets.Create(ctx, reset)
	})
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password reset request failed", internalError("store reset token", err))
		return nil
	}

	s.deliver(ctx, "password_reset", user, func(ctx context.Context) error {
		return s.email.SendPasswordResetEmail(ctx, user, raw)
	})
	return nil
}

// ResetPasswordInput identifies the account, the emailed token and the new
// password.
type ResetPasswordInput struct {
	UserID      string
	Token       string
	NewPassword string
}

// ResetPassword redeems a reset token, sets the new password, clears any
// lockout and revokes every session of the user. A token works once.
func (s *CredentialService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	err := s.resetPassword(ctx, in)
	TokenRedemptionsTotal.WithLabelValues(redeemReset, outcomeOf(err)).Inc()
	return err
}

func (s *CredentialService) resetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := ValidatePassword(in.NewPassword); err != nil {
		return withKind(KindInvalidInput, err)
	}
	userID, err := ParseUserID(in.UserID)
	if err != nil || in.Token == "" {
		return invalidOrExpired()
	}

	hash, err := s.hashPassword(in.NewPassword)
	if err != nil {
		return internalError("hash password", err)
	}

	var revoked int64
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.activeUser(ctx, userID); err != nil {
			return err
		}

		now := s.now()
		candidates, err := s.resets.ListRedeemable(ctx, userID, now)
		if err != nil {
			return err
		}
		match, ok := matchToken(in.Token, candidates)
		if !ok {
			return invalidOrExpired()
		}
		if err := s.resets.MarkUsed(ctx, match.ID, now); err != nil {
			if errors.Is(err, ErrAlreadyConsumed) || errors.Is(err, ErrNotFound) {
				return invalidOrExpired()
			}
			return err
		}

		update := unlockUpdate()
		update.PasswordHash = &hash
		if err := s.users.Update(ctx, userID, update); err != nil {
			return err
		}
		if _, err := s.resets.InvalidateUnused(ctx, userID, now); err != nil {
			return err
		}
		revoked, err = s.sessions.InvalidateUser(ctx, userID, ReasonPasswordReset)
		return err
	})
	if err != nil {
		return internalError("reset password", err)
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", userID, "sessions_revoked", revoked)
	return nil
}

// VerifyEmail redeems an email verification token and marks the user's
// email verified.
func (s *CredentialService) VerifyEmail(ctx context.Context, userID, tok string) error {
	err := s.verifyEmail(ctx, userID, tok)
	TokenRedemptionsTotal.WithLabelValues(redeemVerification, outcomeOf(err)).Inc()
	return err
}

func (s *CredentialService) verifyEmail(ctx context.Context, rawUserID, tok string) error {
	userID, err := ParseUserID(rawUserID)
	if err != nil || tok == "" {
		return invalidOrExpired()
	}

	return internalErrorOrNil("verify email", s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.activeUser(ctx, userID); err != nil {
			return err
		}

		now := s.now()
		candidates, err := s.verifications.ListRedeemable(ctx, userID, VerificationEmail, now)
		if err != nil {
			return err
		}
		match, ok := matchToken(tok, candidates)
		if !ok {
			return invalidOrExpired()
		}
		if err := s.verifications.MarkUsed(ctx, match.ID, now); err != nil {
			if errors.Is(err, ErrAlreadyConsumed) || errors.Is(err, ErrNotFound) {
				return invalidOrExpired()
			}
			return err
		}

		verified := true
		return s.users.Update(ctx, userID, UserUpdate{EmailVerified: &verified})
	}))
}

// ResendVerification issues a fresh verification link, invalidating older
// ones. Unknown, inactive and already verified accounts get nil and no
// email.
func (s *CredentialService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return internalError("get user by email", err)
	}
	if !user.IsActive || user.EmailVerified {
		return nil
	}

	var raw string
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		now := s.now()
		if _, err := s.verifications.InvalidateUnused(ctx, user.ID, VerificationEmail, now); err != nil {
			return err
		}
		var err error
		raw, err = s.issueVerification(ctx, user, now)
		return err
	})
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "resend verification failed", internalError("store verification token", err))
		return nil
	}

	s.deliver(ctx, "verification", user, func(ctx context.Context) error {
		return s.email.SendVerificationEmail(ctx, user, raw)
	})
	return nil
}

// activeUser loads a user that single-use tokens may be redeemed for.
// Missing and inactive users look like a bad token.
func (s *CredentialService) activeUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidOrExpired()
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, invalidOrExpired()
	}
	return user, nil
}

func internalErrorOrNil(operation string, err error) error {
	if err == nil {
		return nil
	}
	return internalError(operation, err)
}

func invalidOrExpired() error {
	return newError(KindInvalidOrExpiredToken, "token is invalid or has expired")
}
