// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

// Package token issues and verifies PASETO v4 tokens carrying FellowHub
// session claims.
//
// A Codec is built once at startup from a secret of at least
// MinSecretLength bytes and shared by reference. In ModeLocal (the default)
// tokens are v4.local: claims are encrypted and authenticated, so holders can
// neither read nor alter their role or session id. ModePublic produces
// v4.public tokens, which are signed but readable.
//
// Verification failures of any kind are reported as ErrInvalidToken.
package token

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"io"
	"strings"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the minimum accepted secret length in bytes.
const MinSecretLength = 32

// Mode selects the PASETO v4 purpose.
type Mode string

// Supported modes.
const (
	ModeLocal  Mode = "local"
	ModePublic Mode = "public"
)

// HKDF info strings; changing them rotates every derived key.
const (
	localKeyInfo  = "fellowhub/paseto/v4.local"
	publicKeyInfo = "fellowhub/paseto/v4.public"
)

// Claim names beyond the registered PASETO claims.
const (
	claimType      = "type"
	claimSessionID = "sid"
	claimEmail     = "email"
	claimName      = "name"
	claimRole      = "role"
)

// ErrInvalidToken is returned, unwrapped, for every verification failure.
var ErrInvalidToken = errors.New("invalid token")

// ErrWeakSecret is wrapped when the configured secret is too short.
var ErrWeakSecret = errors.New("token secret too short")

// ParseMode converts a configuration string to a Mode. Empty means ModeLocal.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLocal:
		return ModeLocal, nil
	case ModePublic:
		return ModePublic, nil
	default:
		return "", oops.Code("TOKEN_INVALID_MODE").
			With("mode", s).
			Errorf("unknown token mode %q (want local or public)", s)
	}
}

// Config describes key material and optional claim constraints.
type Config struct {
	Secret   []byte
	Mode     Mode
	Issuer   string
	Audience string
}

// Codec creates and verifies tokens. It is safe for concurrent use.
type Codec struct {
	mode      Mode
	localKey  paseto.V4SymmetricKey
	secretKey paseto.V4AsymmetricSecretKey
	publicKey paseto.V4AsymmetricPublicKey
	issuer    string
	audience  string
	now       func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// New derives the key for cfg.Mode and returns a ready Codec.
func New(cfg Config, opts ...Option) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_WEAK_SECRET").
			With("length", len(cfg.Secret)).
			With("min", MinSecretLength).
			Wrap(ErrWeakSecret)
	}

	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}

	c := &Codec{
		mode:     mode,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch mode {
	case ModeLocal:
		keyBytes, err := deriveKey(cfg.Secret, localKeyInfo)
		if err != nil {
			return nil, err
		}
		c.localKey, err = paseto.V4SymmetricKeyFromBytes(keyBytes)
		if err != nil {
			return nil, oops.Code("TOKEN_KEY_FAILED").With("mode", mode).Wrap(err)
		}
	case ModePublic:
		seed, err := deriveKey(cfg.Secret, publicKeyInfo)
		if err != nil {
			return nil, err
		}
		c.secretKey, err = paseto.NewV4AsymmetricSecretKeyFromEd25519(ed25519.NewKeyFromSeed(seed))
		if err != nil {
			return nil, oops.Code("TOKEN_KEY_FAILED").With("mode", mode).Wrap(err)
		}
		c.publicKey = c.secretKey.Public()
	}

	return c, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, oops.Code("TOKEN_KEY_FAILED").With("operation", "hkdf").Wrap(err)
	}
	return key, nil
}

// Mode reports the PASETO purpose this codec produces.
func (c *Codec) Mode() Mode { return c.mode }

// Issue mints a token for claims that expires ttl from now. The returned
// Claims carry the issued-at, expiry and token id that were embedded.
// Times are truncated to whole seconds, the precision of the wire format.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, Claims, error) {
	if claims == nil {
		return "", nil, oops.Code("TOKEN_ISSUE_FAILED").Errorf("claims are required")
	}
	if ttl < time.Second {
		return "", nil, oops.Code("TOKEN_ISSUE_FAILED").With("ttl", ttl).Errorf("ttl must be at least one second")
	}

	base := claims.Base()
	if base.Subject == "" {
		return "", nil, oops.Code("TOKEN_ISSUE_FAILED").Errorf("subject is required")
	}
	if base.SessionID == "" {
		return "", nil, oops.Code("TOKEN_ISSUE_FAILED").Errorf("session id is required")
	}

	now := c.now().UTC().Truncate(time.Second)
	base.IssuedAt = now
	base.ExpiresAt = now.Add(ttl).Truncate(time.Second)
	base.ID = ulid.Make().String()
	issued := withBase(claims, base)

	t := paseto.NewToken()
	t.SetIssuedAt(base.IssuedAt)
	t.SetNotBefore(base.IssuedAt)
	t.SetExpiration(base.ExpiresAt)
	t.SetSubject(base.Subject)
	t.SetJti(base.ID)
	t.SetString(claimType, string(claims.Kind()))
	t.SetString(claimSessionID, base.SessionID)
	if c.issuer != "" {
		t.SetIssuer(c.issuer)
	}
	if c.audience != "" {
		t.SetAudience(c.audience)
	}
	if access, ok := issued.(Access); ok {
		t.SetString(claimEmail, access.Email)
		t.SetString(claimName, access.Name)
		t.SetString(claimRole, access.Role)
	}

	if c.mode == ModePublic {
		return t.V4Sign(c.secretKey, nil), issued, nil
	}
	return t.V4Encrypt(c.localKey, nil), issued, nil
}

// Verify authenticates raw and returns its claims as Access or Refresh.
func (c *Codec) Verify(raw string) (Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ValidAt(c.now()))
	if c.issuer != "" {
		parser.AddRule(paseto.IssuedBy(c.issuer))
	}
	if c.audience != "" {
		parser.AddRule(paseto.ForAudience(c.audience))
	}

	var (
		t   *paseto.Token
		err error
	)
	if c.mode == ModePublic {
		t, err = parser.ParseV4Public(c.publicKey, raw, nil)
	} else {
		t, err = parser.ParseV4Local(c.localKey, raw, nil)
	}
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := decode(t)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess verifies raw and requires it to be an access token.
func (c *Codec) VerifyAccess(raw string) (Access, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return Access{}, err
	}
	access, ok := claims.(Access)
	if !ok {
		return Access{}, ErrInvalidToken
	}
	return access, nil
}

// VerifyRefresh verifies raw and requires it to be a refresh token.
func (c *Codec) VerifyRefresh(raw string) (Refresh, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return Refresh{}, err
	}
	refresh, ok := claims.(Refresh)
	if !ok {
		return Refresh{}, ErrInvalidToken
	}
	return refresh, nil
}

func decode(t *paseto.Token) (Claims, bool) {
	kind, err := t.GetString(claimType)
	if err != nil {
		return nil, false
	}
	subject, err := t.GetSubject()
	if err != nil || subject == "" {
		return nil, false
	}
	jti, err := t.GetJti()
	if err != nil || jti == "" {
		return nil, false
	}
	sessionID, err := t.GetString(claimSessionID)
	if err != nil || sessionID == "" {
		return nil, false
	}
	iat, err := t.GetIssuedAt()
	if err != nil {
		return nil, false
	}
	exp, err := t.GetExpiration()
	if err != nil {
		return nil, false
	}

	base := Common{
		Subject:   subject,
		SessionID: sessionID,
		ID:        jti,
		IssuedAt:  iat.UTC(),
		ExpiresAt: exp.UTC(),
	}

	switch Kind(kind) {
	case KindAccess:
		access := Access{Common: base}
		if access.Email, err = t.GetString(claimEmail); err != nil {
			return nil, false
		}
		if access.Name, err = t.GetString(claimName); err != nil {
			return nil, false
		}
		if access.Role, err = t.GetString(claimRole); err != nil {
			return nil, false
		}
		return access, true
	case KindRefresh:
		return Refresh{Common: base}, true
	default:
		return nil, false
	}
}
