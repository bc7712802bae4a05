// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fellowhub/fellowhub/internal/auth"
)

func TestLockoutPolicy(t *testing.T) {
	policy := auth.DefaultLockoutPolicy()
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 15*time.Minute, policy.Window)

	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unlocked account has no remaining time", func(t *testing.T) {
		u := &auth.User{LastFailedAttempt: &last}
		assert.Zero(t, policy.Remaining(u, last))
		assert.False(t, policy.LockedAt(u, last))
	})

	t.Run("locked within window", func(t *testing.T) {
		u := &auth.User{AccountLocked: true, LastFailedAttempt: &last}
		now := last.Add(10 * time.Minute)
		assert.Equal(t, 5*time.Minute, policy.Remaining(u, now))
		assert.True(t, policy.LockedAt(u, now))
	})

	t.Run("window elapsed", func(t *testing.T) {
		u := &auth.User{AccountLocked: true, LastFailedAttempt: &last}
		now := last.Add(15 * time.Minute)
		assert.Zero(t, policy.Remaining(u, now))
		assert.False(t, policy.LockedAt(u, now))
	})

	t.Run("locked without attempt time stays locked", func(t *testing.T) {
		u := &auth.User{AccountLocked: true}
		assert.True(t, policy.LockedAt(u, last.Add(24*time.Hour)))
	})

	t.Run("threshold", func(t *testing.T) {
		assert.False(t, policy.ShouldLock(4))
		assert.True(t, policy.ShouldLock(5))
		assert.True(t, policy.ShouldLock(6))
	})
}
