// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"time"
)

// Account lockout defaults.
const (
	// DefaultLockoutThreshold is the number of consecutive failures that
	// locks an account.
	DefaultLockoutThreshold = 5

	// DefaultLockoutWindow is how long a locked account stays locked after
	// its last failed attempt.
	DefaultLockoutWindow = 15 * time.Minute
)

// LockoutPolicy configures per-account lockout.
type LockoutPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultLockoutPolicy returns the default policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxAttempts: DefaultLockoutThreshold, Window: DefaultLockoutWindow}
}

func (p LockoutPolicy) withDefaults() LockoutPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultLockoutThreshold
	}
	if p.Window <= 0 {
		p.Window = DefaultLockoutWindow
	}
	return p
}

// LockedAt reports whether u is still locked at now. A locked account
// whose window has elapsed is no longer locked, even before the flag is
// cleared in storage.
func (p LockoutPolicy) LockedAt(u *User, now time.Time) bool {
	return u.AccountLocked && p.Remaining(u, now) > 0
}

// Remaining returns how long u stays locked after now. Zero means the
// window has elapsed. An account locked without a recorded attempt time,
// which no login failure produces, has no window and stays locked until
// UnlockUser.
func (p LockoutPolicy) Remaining(u *User, now time.Time) time.Duration {
	if !u.AccountLocked {
		return 0
	}
	if u.LastFailedAttempt == nil {
		return p.Window
	}
	remaining := u.LastFailedAttempt.Add(p.Window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ShouldLock reports whether attempts consecutive failures lock the account.
func (p LockoutPolicy) ShouldLock(attempts int) bool {
	return attempts >= p.MaxAttempts
}
