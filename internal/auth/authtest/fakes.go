// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/fellowhub/fellowhub/internal/auth"
)

// Mail is an email captured by Mailer.
type Mail struct {
	Kind   string // "verification" or "password_reset"
	UserID int64
	To     string
	Token  string
}

// Mailer records emails instead of sending them.
type Mailer struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

// Fail makes subsequent sends return err (nil restores success). Failed
// sends are not recorded.
func (m *Mailer) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Sent returns the captured emails in order.
func (m *Mailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.sent...)
}

// Last returns the most recent email of kind.
func (m *Mailer) Last(kind string) (Mail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind {
			return m.sent[i], true
		}
	}
	return Mail{}, false
}

// SendVerificationEmail implements auth.EmailSender.
func (m *Mailer) SendVerificationEmail(ctx context.Context, user *auth.User, token string) error {
	return m.record(ctx, Mail{Kind: "verification", UserID: user.ID, To: user.Email, Token: token})
}

// SendPasswordResetEmail implements auth.EmailSender.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, user *auth.User, token string) error {
	return m.record(ctx, Mail{Kind: "password_reset", UserID: user.ID, To: user.Email, Token: token})
}

func (m *Mailer) record(ctx context.Context, mail Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

var _ auth.EmailSender = (*Mailer)(nil)

// Clock is a settable time source shared by the codec and the services.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a clock set to t.
func NewClock(t time.Time) *Clock { return &Clock{t: t} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Limiter is an in-memory auth.AttemptLimiter without expiry.
type Limiter struct {
	mu       sync.Mutex
	Max      int
	failures map[string]int
}

// NewLimiter blocks a key after max failures.
func NewLimiter(maxFailures int) *Limiter {
	return &Limiter{Max: maxFailures, failures: make(map[string]int)}
}

// Blocked implements auth.AttemptLimiter.
func (l *Limiter) Blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[key] >= l.Max, nil
}

// RecordFailure implements auth.AttemptLimiter.
func (l *Limiter) RecordFailure(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key]++
	return nil
}

// Reset implements auth.AttemptLimiter.
func (l *Limiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
	return nil
}

// Failures returns the count recorded for key.
func (l *Limiter) Failures(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[key]
}

var _ auth.AttemptLimiter = (*Limiter)(nil)
