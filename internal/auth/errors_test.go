// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fellowhub/fellowhub/internal/auth"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, auth.KindInternal, auth.KindOf(nil))
	assert.Equal(t, auth.KindInternal, auth.KindOf(errors.New("boom")))
	assert.False(t, auth.IsKind(nil, auth.KindInternal))
}

func TestKind_Code(t *testing.T) {
	assert.Equal(t, "AUTH_INVALID_CREDENTIALS", auth.KindInvalidCredentials.Code())
	assert.Equal(t, "AUTH_ACCOUNT_LOCKED", auth.KindAccountLocked.String())
	assert.Equal(t, "AUTH_INTERNAL", auth.Kind(99).Code())
}

func TestKindOf_SurvivesWrapping(t *testing.T) {
	h := newHarness(t)

	_, err := h.Service.Login(t.Context(), auth.LoginInput{Email: "nobody@example.com", Password: "whatever1"})
	wrapped := fmt.Errorf("handler: %w", err)

	assert.Equal(t, auth.KindInvalidCredentials, auth.KindOf(wrapped))
	assert.True(t, auth.IsKind(wrapped, auth.KindInvalidCredentials))
}
