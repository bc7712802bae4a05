// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

// Package authtest provides in-memory implementations of the auth
// repositories and collaborators for tests.
package authtest

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fellowhub/fellowhub/internal/auth"
)

// Store holds users, sessions and single-use tokens in memory. Its
// transactor serializes transactions and restores a snapshot on rollback,
// which is enough to exercise the services' transactional behavior.
type Store struct {
	mu            sync.Mutex
	txMu          sync.Mutex
	nextUserID    int64
	users         map[int64]auth.User
	sessions      map[ulid.ULID]auth.Session
	verifications map[ulid.ULID]auth.VerificationToken
	resets        map[ulid.ULID]auth.PasswordResetToken
	failures      map[string]error
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		users:         make(map[int64]auth.User),
		sessions:      make(map[ulid.ULID]auth.Session),
		verifications: make(map[ulid.ULID]auth.VerificationToken),
		resets:        make(map[ulid.ULID]auth.PasswordResetToken),
		failures:      make(map[string]error),
	}
}

// FailOn makes the named operation (for example "sessions.TouchLastActivity")
// return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// injected must be called with mu held.
func (s *Store) injected(op string) error {
	return s.failures[op]
}

// Users returns the user repository.
func (s *Store) Users() auth.UserRepository { return (*userRepo)(s) }

// Sessions returns the session repository.
func (s *Store) Sessions() auth.SessionRepository { return (*sessionRepo)(s) }

// Verifications returns the verification token repository.
func (s *Store) Verifications() auth.VerificationTokenRepository { return (*verificationRepo)(s) }

// Resets returns the password reset token repository.
func (s *Store) Resets() auth.PasswordResetRepository { return (*resetRepo)(s) }

// Transactor returns a transactor over the store.
func (s *Store) Transactor() auth.Transactor { return (*transactor)(s) }

// User returns a copy of a stored user.
func (s *Store) User(id int64) (auth.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// SessionsOf returns copies of a user's sessions.
func (s *Store) SessionsOf(userID int64) []auth.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out
}

// ResetTokensOf returns copies of a user's reset tokens.
func (s *Store) ResetTokensOf(userID int64) []auth.PasswordResetToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.PasswordResetToken
	for _, r := range s.resets {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// VerificationTokensOf returns copies of a user's verification tokens.
func (s *Store) VerificationTokensOf(userID int64) []auth.VerificationToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.VerificationToken
	for _, v := range s.verifications {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out
}

// AddUser stores u directly, assigning an ID when it has none.
func (s *Store) AddUser(u auth.User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.nextUserID++
		u.ID = s.nextUserID
	} else if u.ID > s.nextUserID {
		s.nextUserID = u.ID
	}
	s.users[u.ID] = u
	return u.ID
}

type snapshot struct {
	nextUserID    int64
	users         map[int64]auth.User
	sessions      map[ulid.ULID]auth.Session
	verifications map[ulid.ULID]auth.VerificationToken
	resets        map[ulid.ULID]auth.PasswordResetToken
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		nextUserID:    s.nextUserID,
		users:         maps.Clone(s.users),
		sessions:      maps.Clone(s.sessions),
		verifications: maps.Clone(s.verifications),
		resets:        maps.Clone(s.resets),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID = snap.nextUserID
	s.users = snap.users
	s.sessions = snap.sessions
	s.verifications = snap.verifications
	s.resets = snap.resets
}

type txKey struct{}

type transactor Store

func (t *transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s := (*Store)(t)
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	err := s.injected("tx.Begin")
	s.mu.Unlock()
	if err != nil {
		return err
	}

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type userRepo Store

func (r *userRepo) Create(_ context.Context, u *auth.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("users.Create"); err != nil {
		return err
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return auth.ErrEmailTaken
		}
	}
	s.nextUserID++
	u.ID = s.nextUserID
	s.users[u.ID] = *u
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*auth.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *userRepo) Update(_ context.Context, id int64, update auth.UserUpdate) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("users.Update"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	update.Apply(&u)
	s.users[id] = u
	return nil
}

func (r *userRepo) RecordLoginFailure(_ context.Context, id int64, at time.Time, maxAttempts int) (auth.LoginFailure, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("users.RecordLoginFailure"); err != nil {
		return auth.LoginFailure{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return auth.LoginFailure{}, auth.ErrNotFound
	}
	u.FailedLoginAttempts++
	u.LastFailedAttempt = &at
	if u.FailedLoginAttempts >= maxAttempts {
		u.AccountLocked = true
	}
	s.users[id] = u
	return auth.LoginFailure{Attempts: u.FailedLoginAttempts, Locked: u.AccountLocked}, nil
}

func (r *userRepo) RecordLoginSuccess(_ context.Context, id int64, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("users.RecordLoginSuccess"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.AccountLocked = false
	u.LastLogin = &at
	s.users[id] = u
	return nil
}

type sessionRepo Store

func (r *sessionRepo) Create(_ context.Context, sess *auth.Session) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("sessions.Create"); err != nil {
		return err
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (r *sessionRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.Session, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &sess, nil
}

func (r *sessionRepo) GetByTokenHash(_ context.Context, hash string) (*auth.Session, error) {
	return r.find(func(sess auth.Session) bool { return sess.TokenHash == hash })
}

func (r *sessionRepo) GetByRefreshTokenHash(_ context.Context, hash string) (*auth.Session, error) {
	return r.find(func(sess auth.Session) bool { return sess.RefreshTokenHash == hash })
}

func (r *sessionRepo) find(match func(auth.Session) bool) (*auth.Session, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("sessions.Get"); err != nil {
		return nil, err
	}
	for _, sess := range s.sessions {
		if match(sess) {
			return &sess, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *sessionRepo) ListByUser(_ context.Context, userID int64) ([]*auth.Session, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, &sess)
		}
	}
	slices.SortFunc(out, func(a, b *auth.Session) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r *sessionRepo) TouchLastActivity(_ context.Context, id ulid.ULID, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("sessions.TouchLastActivity"); err != nil {
		return err
	}
	sess, ok := s.sessions[id]
	if !ok {
		return auth.ErrNotFound
	}
	sess.LastActivity = at
	s.sessions[id] = sess
	return nil
}

func (r *sessionRepo) Invalidate(_ context.Context, id ulid.ULID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("sessions.Invalidate"); err != nil {
		return err
	}
	sess, ok := s.sessions[id]
	if !ok {
		return auth.ErrNotFound
	}
	if !sess.IsValid {
		return auth.ErrAlreadyConsumed
	}
	sess.IsValid = false
	s.sessions[id] = sess
	return nil
}

func (r *sessionRepo) InvalidateByUser(_ context.Context, userID int64) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("sessions.InvalidateByUser"); err != nil {
		return 0, err
	}
	var n int64
	for id, sess := range s.sessions {
		if sess.UserID == userID && sess.IsValid {
			sess.IsValid = false
			s.sessions[id] = sess
			n++
		}
	}
	return n, nil
}

func (r *sessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

type verificationRepo Store

func (r *verificationRepo) Create(_ context.Context, v *auth.VerificationToken) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("verifications.Create"); err != nil {
		return err
	}
	s.verifications[v.ID] = *v
	return nil
}

func (r *verificationRepo) ListRedeemable(_ context.Context, userID int64, typ auth.VerificationType, now time.Time) ([]*auth.VerificationToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.VerificationToken
	for _, v := range s.verifications {
		if v.UserID == userID && v.Type == typ && v.RedeemableAt(now) {
			out = append(out, &v)
		}
	}
	return out, nil
}

func (r *verificationRepo) MarkUsed(_ context.Context, id ulid.ULID, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verifications[id]
	if !ok {
		return auth.ErrNotFound
	}
	if v.Used {
		return auth.ErrAlreadyConsumed
	}
	v.Used = true
	v.UsedAt = &at
	s.verifications[id] = v
	return nil
}

func (r *verificationRepo) InvalidateUnused(_ context.Context, userID int64, typ auth.VerificationType, at time.Time) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, v := range s.verifications {
		if v.UserID == userID && v.Type == typ && !v.Used {
			v.Used = true
			v.UsedAt = &at
			s.verifications[id] = v
			n++
		}
	}
	return n, nil
}

func (r *verificationRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, v := range s.verifications {
		if v.ExpiresAt.Before(before) {
			delete(s.verifications, id)
			n++
		}
	}
	return n, nil
}

type resetRepo Store

func (r *resetRepo) Create(_ context.Context, t *auth.PasswordResetToken) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("resets.Create"); err != nil {
		return err
	}
	s.resets[t.ID] = *t
	return nil
}

func (r *resetRepo) ListRedeemable(_ context.Context, userID int64, now time.Time) ([]*auth.PasswordResetToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.PasswordResetToken
	for _, t := range s.resets {
		if t.UserID == userID && t.RedeemableAt(now) {
			out = append(out, &t)
		}
	}
	return out, nil
}

func (r *resetRepo) MarkUsed(_ context.Context, id ulid.ULID, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.resets[id]
	if !ok {
		return auth.ErrNotFound
	}
	if t.Used {
		return auth.ErrAlreadyConsumed
	}
	t.Used = true
	t.UsedAt = &at
	s.resets[id] = t
	return nil
}

func (r *resetRepo) InvalidateUnused(_ context.Context, userID int64, at time.Time) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.resets {
		if t.UserID == userID && !t.Used {
			t.Used = true
			t.UsedAt = &at
			s.resets[id] = t
			n++
		}
	}
	return n, nil
}

func (r *resetRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.resets {
		if t.ExpiresAt.Before(before) {
			delete(s.resets, id)
			n++
		}
	}
	return n, nil
}

var (
	_ auth.UserRepository              = (*userRepo)(nil)
	_ auth.SessionRepository           = (*sessionRepo)(nil)
	_ auth.VerificationTokenRepository = (*verificationRepo)(nil)
	_ auth.PasswordResetRepository     = (*resetRepo)(nil)
	_ auth.Transactor                  = (*transactor)(nil)
)
