// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultEmailTimeout bounds a single email delivery.
const DefaultEmailTimeout = 10 * time.Second

// Deps are the collaborators of a CredentialService. Limiter is optional.
type Deps struct {
	Users         UserRepository
	Verifications VerificationTokenRepository
	Resets        PasswordResetRepository
	Sessions      *SessionManager
	Hasher        PasswordHasher
	Transactor    Transactor
	Email         EmailSender
	Limiter       AttemptLimiter
}

// Config tunes a CredentialService. Zero values take defaults.
type Config struct {
	Lockout              LockoutPolicy
	VerificationTTL      time.Duration
	ResetTTL             time.Duration
	RequireVerifiedEmail bool
	EmailTimeout         time.Duration
}

func (c Config) withDefaults() Config {
	c.Lockout = c.Lockout.withDefaults()
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = DefaultVerificationTTL
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = DefaultResetTTL
	}
	if c.EmailTimeout <= 0 {
		c.EmailTimeout = DefaultEmailTimeout
	}
	return c
}

// CredentialService orchestrates signup, login, logout, refresh, password
// recovery and email verification.
type CredentialService struct {
	users         UserRepository
	verifications VerificationTokenRepository
	resets        PasswordResetRepository
	sessions      *SessionManager
	hasher        PasswordHasher
	tx            Transactor
	email         EmailSender
	limiter       AttemptLimiter
	cfg           Config
	logger        *slog.Logger
	now           func() time.Time
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(deps Deps, cfg Config, opts ...Option) (*CredentialService, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	case deps.Verifications == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("verification repository is required")
	case deps.Resets == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("reset repository is required")
	case deps.Sessions == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session manager is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	case deps.Transactor == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("transactor is required")
	case deps.Email == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("email sender is required")
	}

	s := newSettings(opts)
	return &CredentialService{
		users:         deps.Users,
		verifications: deps.Verifications,
		resets:        deps.Resets,
		sessions:      deps.Sessions,
		hasher:        deps.Hasher,
		tx:            deps.Transactor,
		email:         deps.Email,
		limiter:       deps.Limiter,
		cfg:           cfg.withDefaults(),
		logger:        s.logger,
		now:           s.now,
	}, nil
}

// Sessions exposes the session manager.
func (s *CredentialService) Sessions() *SessionManager { return s.sessions }

// SignupInput is the data needed to register.
type SignupInput struct {
	Email    string
	Name     string
	Password string
}

// Signup registers a new account with DefaultRole and emails a verification
// link. The account is usable before verification unless the service
// requires verified email at login.
func (s *CredentialService) Signup(ctx context.Context, in SignupInput) (*UserView, error) {
	view, err := s.signup(ctx, in)
	SignupsTotal.WithLabelValues(outcomeOf(err)).Inc()
	return view, err
}

func (s *CredentialService) signup(ctx context.Context, in SignupInput) (*UserView, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, withKind(KindInvalidInput, err)
	}
	if err := ValidateName(in.Name); err != nil {
		return nil, withKind(KindInvalidInput, err)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, withKind(KindInvalidInput, err)
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, emailInUse()
	case !errors.Is(err, ErrNotFound):
		return nil, internalError("get user by email", err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, internalError("hash password", err)
	}

	now := s.now()
	user, err := NewUser(email, in.Name, hash, now)
	if err != nil {
		return nil, withKind(KindInvalidInput, err)
	}

	var rawToken string
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		var err error
		rawToken, err = s.issueVerification(ctx, user, now)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, emailInUse()
		}
		return nil, internalError("create user", err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	s.deliver(ctx, "verification", user, func(ctx context.Context) error {
		return s.email.SendVerificationEmail(ctx, user, rawToken)
	})

	view := user.View()
	return &view, nil
}

// issueVerification stores a new email verification token for user and
// returns the plaintext.
func (s *CredentialService) issueVerification(ctx context.Context, user *User, now time.Time) (string, error) {
	raw, hash, err := GenerateSingleUseToken()
	if err != nil {
		return "", err
	}
	vt, err := NewVerificationToken(user.ID, VerificationEmail, hash, now.Add(s.cfg.VerificationTTL), now)
	if err != nil {
		return "", err
	}
	if err := s.verifications.Create(ctx, vt); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *CredentialService) hashPassword(password string) (string, error) {
	defer observeHash(time.Now())
	return s.hasher.Hash(password)
}

func (s *CredentialService) verifyPassword(password, hash string) bool {
	defer observeHash(time.Now())
	return s.hasher.Verify(password, hash)
}

// deliver sends an email after the triggering transaction committed. The
// send gets its own timeout and survives cancellation of ctx; failures are
// logged and dropped.
func (s *CredentialService) deliver(ctx context.Context, kind string, user *User, send func(context.Context) error) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EmailTimeout)
	defer cancel()

	if err := send(sendCtx); err != nil {
		EmailsTotal.WithLabelValues(kind, OutcomeError).Inc()
		s.logger.WarnContext(ctx, "best-effort email delivery failed",
			"operation", "send_"+kind+"_email",
			"user_id", user.ID,
			"error", err)
		return
	}
	EmailsTotal.WithLabelValues(kind, OutcomeSuccess).Inc()
}

func emailInUse() error {
	return newError(KindEmailAlreadyInUse, "email already in use")
}
