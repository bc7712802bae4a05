// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"context"
	"slices"
	"time"

	"github.com/fellowhub/fellowhub/internal/token"
)

// Identity is an authenticated caller: the live user, the session backing
// the presented token, and the token's claims.
type Identity struct {
	User    *User
	Session *Session
	Claims  token.Access
}

// HasRole reports whether the caller's current role is one of roles.
func (i *Identity) HasRole(roles ...Role) bool {
	return i != nil && i.User != nil && slices.Contains(roles, i.User.Role)
}

// TokenPair is the access/refresh pair handed to a client.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// IssuedSession is a freshly created session and its tokens.
type IssuedSession struct {
	Session *Session
	Tokens  TokenPair
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Tokens     TokenPair
	RememberMe bool
	User       UserView
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
