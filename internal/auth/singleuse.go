// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/samber/oops"
)

// SingleUseTokenBytes is the entropy of verification and reset tokens.
const SingleUseTokenBytes = 32 // 64 hex chars

// GenerateSingleUseToken creates a random token and its hash.
// Returns (plaintext_token, sha256_hash, error). The plaintext goes into the
// emailed link; only the hash is stored.
func GenerateSingleUseToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SingleUseTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SingleUseTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashToken(token), nil
}

// hashedToken is a stored single-use token.
type hashedToken interface {
	storedHash() string
}

// matchToken finds the candidate whose hash matches raw. Every candidate is
// compared, so the time taken depends only on the number of candidates.
func matchToken[T hashedToken](raw string, candidates []T) (T, bool) {
	var (
		match T
		found bool
	)
	if raw == "" {
		return match, false
	}

	computed := []byte(HashToken(raw))
	for _, c := range candidates {
		if subtle.ConstantTimeCompare(computed, []byte(c.storedHash())) == 1 && !found {
			match = c
			found = true
		}
	}
	return match, found
}
