// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package token

import "time"

// Kind discriminates access tokens from refresh tokens.
type Kind string

// Token kinds carried in the "type" claim.
const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Common holds the claims every token carries.
type Common struct {
	Subject   string // user id, decimal
	SessionID string
	ID        string // jti
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Base returns the shared claims.
func (c Common) Base() Common { return c }

// Claims is the closed set of token payloads: Access or Refresh.
type Claims interface {
	Kind() Kind
	Base() Common
	sealed()
}

// Access is the payload of a short-lived access token.
type Access struct {
	Common
	Email string
	Name  string
	Role  string
}

// Kind implements Claims.
func (Access) Kind() Kind { return KindAccess }

func (Access) sealed() {}

// Refresh is the payload of a refresh token. It deliberately carries no
// profile data; refresh looks the user up again.
type Refresh struct {
	Common
}

// Kind implements Claims.
func (Refresh) Kind() Kind { return KindRefresh }

func (Refresh) sealed() {}

// withBase returns a copy of c with its shared claims replaced.
func withBase(c Claims, base Common) Claims {
	switch v := c.(type) {
	case Access:
		v.Common = base
		return v
	case Refresh:
		v.Common = base
		return v
	default:
		return nil
	}
}
