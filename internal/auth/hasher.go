// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2Params are the argon2id cost parameters embedded in every hash.
type Argon2Params struct {
	Memory  uint32 // KiB
	Time    uint32 // iterations
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2Params returns the production cost parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:  64 * 1024,
		Time:    3,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Upper bounds applied when parsing stored hashes, so a corrupted or hostile
// row cannot make Verify allocate gigabytes.
const (
	maxArgon2Memory = 1 << 20 // 1 GiB in KiB
	maxArgon2Time   = 64
	minArgon2Salt   = 8
	minArgon2Key    = 16
	maxArgon2Key    = 1024
)

// dummyPasswordHash is verified against when the account does not exist or
// is inactive, so those paths cost the same as a real mismatch. It matches no
// password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-describing hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches hash. Malformed hashes
	// report false.
	Verify(password, hash string) bool

	// NeedsUpgrade reports whether hash should be replaced with a fresh
	// Hash of the same password.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id, with read-only
// support for legacy bcrypt hashes.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher with DefaultArgon2Params.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params()}
}

// NewArgon2idHasherWithParams creates a hasher with custom cost parameters.
// Tests use it to keep hashing cheap.
func NewArgon2idHasherWithParams(p Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: p}
}

// Hash produces an argon2id hash of the password in PHC string format:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
	}

	decoded, ok := parseArgon2id(encodedHash)
	if !ok {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password),
		decoded.salt,
		decoded.params.Time,
		decoded.params.Memory,
		decoded.params.Threads,
		uint32(len(decoded.key)),
	)
	return subtle.ConstantTimeCompare(computed, decoded.key) == 1
}

// NeedsUpgrade returns true for bcrypt hashes and for argon2id hashes whose
// parameters differ from the hasher's.
func (h *Argon2idHasher) NeedsUpgrade(encodedHash string) bool {
	decoded, ok := parseArgon2id(encodedHash)
	if !ok {
		return true
	}
	p := decoded.params
	return p.Memory != h.params.Memory ||
		p.Time != h.params.Time ||
		p.Threads != h.params.Threads ||
		p.SaltLen != h.params.SaltLen ||
		p.KeyLen != h.params.KeyLen
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

type argon2idHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func parseArgon2id(encoded string) (argon2idHash, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argon2idHash{}, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argon2idHash{}, false
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return argon2idHash{}, false
	}
	if memory == 0 || memory > maxArgon2Memory ||
		iterations == 0 || iterations > maxArgon2Time ||
		threads == 0 || threads > 255 {
		return argon2idHash{}, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minArgon2Salt {
		return argon2idHash{}, false
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < minArgon2Key || len(key) > maxArgon2Key {
		return argon2idHash{}, false
	}

	return argon2idHash{
		params: Argon2Params{
			Memory:  memory,
			Time:    iterations,
			Threads: uint8(threads),
			SaltLen: uint32(len(salt)),
			KeyLen:  uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}, true
}
