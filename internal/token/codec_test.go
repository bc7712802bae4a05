// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package token_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fellowhub/fellowhub/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef-test")

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newCodec(t *testing.T, cfg token.Config, clock *fakeClock) *token.Codec {
	t.Helper()
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	var opts []token.Option
	if clock != nil {
		opts = append(opts, token.WithClock(clock.Now))
	}
	c, err := token.New(cfg, opts...)
	require.NoError(t, err)
	return c
}

func sampleAccess() token.Access {
	return token.Access{
		Common: token.Common{Subject: "42", SessionID: "01HZX0SESSION0000000000000"},
		Email:  "a@x.com",
		Name:   "Ada",
		Role:   "fellow",
	}
}

func TestNew_RejectsShortSecret(t *testing.T) {
	_, err := token.New(token.Config{Secret: []byte("too-short")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, token.ErrWeakSecret))
}

func TestNew_RejectsUnknownMode(t *testing.T) {
	_, err := token.New(token.Config{Secret: testSecret, Mode: "jwt"})
	require.Error(t, err)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    token.Mode
		wantErr bool
	}{
		{in: "", want: token.ModeLocal},
		{in: "local", want: token.ModeLocal},
		{in: " PUBLIC ", want: token.ModePublic},
		{in: "v2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := token.ParseMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, mode := range []token.Mode{token.ModeLocal, token.ModePublic} {
		t.Run(string(mode), func(t *testing.T) {
			clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
			codec := newCodec(t, token.Config{Mode: mode, Issuer: "fellowhub", Audience: "portal"}, clock)

			raw, issued, err := codec.Issue(sampleAccess(), 15*time.Minute)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(raw, "v4."+string(mode)+"."))

			got, err := codec.Verify(raw)
			require.NoError(t, err)
			assert.Equal(t, issued, got)

			access, ok := got.(token.Access)
			require.True(t, ok)
			assert.Equal(t, "42", access.Subject)
			assert.Equal(t, "01HZX0SESSION0000000000000", access.SessionID)
			assert.Equal(t, "a@x.com", access.Email)
			assert.Equal(t, "fellow", access.Role)
			assert.Equal(t, clock.t, access.IssuedAt)
			assert.Equal(t, clock.t.Add(15*time.Minute), access.ExpiresAt)
			assert.NotEmpty(t, access.ID)
		})
	}
}

func TestCodec_RefreshRoundTrip(t *testing.T) {
	codec := newCodec(t, token.Config{}, nil)

	raw, _, err := codec.Issue(token.Refresh{Common: token.Common{Subject: "7", SessionID: "s1"}}, time.Hour)
	require.NoError(t, err)

	refresh, err := codec.VerifyRefresh(raw)
	require.NoError(t, err)
	assert.Equal(t, "7", refresh.Subject)
	assert.Equal(t, token.KindRefresh, refresh.Kind())
}

func TestCodec_ExpiredTokenIsInvalid(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := newCodec(t, token.Config{}, clock)

	raw, _, err := codec.Issue(sampleAccess(), time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = codec.Verify(raw)
	require.NoError(t, err, "still valid before expiry")

	clock.Advance(2 * time.Second)
	_, err = codec.Verify(raw)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestCodec_RejectsTokenFromTheFuture(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := newCodec(t, token.Config{}, clock)

	raw, _, err := codec.Issue(sampleAccess(), time.Hour)
	require.NoError(t, err)

	clock.Advance(-time.Minute)
	_, err = codec.Verify(raw)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestCodec_FailuresCollapseToInvalidToken(t *testing.T) {
	codec := newCodec(t, token.Config{Issuer: "fellowhub", Audience: "portal"}, nil)
	raw, _, err := codec.Issue(sampleAccess(), time.Hour)
	require.NoError(t, err)

	otherKey := newCodec(t, token.Config{
		Secret:   []byte("another-secret-another-secret-0000"),
		Issuer:   "fellowhub",
		Audience: "portal",
	}, nil)
	wrongIssuer := newCodec(t, token.Config{Issuer: "someone-else", Audience: "portal"}, nil)
	wrongAudience := newCodec(t, token.Config{Issuer: "fellowhub", Audience: "admin"}, nil)
	publicCodec := newCodec(t, token.Config{Mode: token.ModePublic, Issuer: "fellowhub", Audience: "portal"}, nil)

	tampered := raw[:len(raw)-4] + flip(raw[len(raw)-4:])

	tests := []struct {
		name  string
		codec *token.Codec
		raw   string
	}{
		{name: "empty", codec: codec, raw: ""},
		{name: "garbage", codec: codec, raw: "not-a-token"},
		{name: "wrong purpose header", codec: codec, raw: strings.Replace(raw, "v4.local.", "v4.public.", 1)},
		{name: "tampered", codec: codec, raw: tampered},
		{name: "different key", codec: otherKey, raw: raw},
		{name: "wrong issuer", codec: wrongIssuer, raw: raw},
		{name: "wrong audience", codec: wrongAudience, raw: raw},
		{name: "local token to public codec", codec: publicCodec, raw: raw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Verify(tt.raw)
			require.Error(t, err)
			assert.Same(t, token.ErrInvalidToken, err)
		})
	}
}

func TestCodec_TypeAssertions(t *testing.T) {
	codec := newCodec(t, token.Config{}, nil)

	accessRaw, _, err := codec.Issue(sampleAccess(), time.Hour)
	require.NoError(t, err)
	refreshRaw, _, err := codec.Issue(token.Refresh{Common: token.Common{Subject: "42", SessionID: "s"}}, time.Hour)
	require.NoError(t, err)

	_, err = codec.VerifyRefresh(accessRaw)
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = codec.VerifyAccess(refreshRaw)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestCodec_LocalTokensHideClaims(t *testing.T) {
	codec := newCodec(t, token.Config{}, nil)
	raw, _, err := codec.Issue(sampleAccess(), time.Hour)
	require.NoError(t, err)

	assert.NotContains(t, raw, "a@x.com")
	assert.NotContains(t, raw, "fellow")
}

func TestCodec_IssueAssignsUniqueIDs(t *testing.T) {
	codec := newCodec(t, token.Config{}, nil)

	seen := make(map[string]bool)
	for range 20 {
		_, issued, err := codec.Issue(sampleAccess(), time.Hour)
		require.NoError(t, err)
		id := issued.Base().ID
		assert.False(t, seen[id], "duplicate jti %s", id)
		seen[id] = true
	}
}

func TestCodec_IssueValidation(t *testing.T) {
	codec := newCodec(t, token.Config{}, nil)

	_, _, err := codec.Issue(nil, time.Hour)
	require.Error(t, err)

	_, _, err = codec.Issue(sampleAccess(), 0)
	require.Error(t, err)

	noSubject := sampleAccess()
	noSubject.Subject = ""
	_, _, err = codec.Issue(noSubject, time.Hour)
	require.Error(t, err)

	noSession := sampleAccess()
	noSession.SessionID = ""
	_, _, err = codec.Issue(noSession, time.Hour)
	require.Error(t, err)
}

func TestCodec_SameSecretSameKey(t *testing.T) {
	a := newCodec(t, token.Config{}, nil)
	b := newCodec(t, token.Config{}, nil)

	raw, _, err := a.Issue(sampleAccess(), time.Hour)
	require.NoError(t, err)

	_, err = b.Verify(raw)
	require.NoError(t, err, "codecs built from the same secret must agree")
}

// flip changes every character of s so the MAC no longer matches.
func flip(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c == 'A' {
			out[i] = 'B'
		} else {
			out[i] = 'A'
		}
	}
	return string(out)
}
