// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by UserRepository.Create when the email is
// already registered.
var ErrEmailTaken = errors.New("email already registered")

// ErrAlreadyConsumed is returned by conditional updates (single-use token
// redemption, session rotation) that lost the race or found the row already
// consumed.
var ErrAlreadyConsumed = errors.New("already consumed")

// Kind classifies the failures surfaced to callers of this package.
// Kinds are deliberately coarse so responses do not leak which check failed.
type Kind int

// Failure kinds.
const (
	KindInternal Kind = iota
	KindInvalidInput
	KindInvalidCredentials
	KindAccountLocked
	KindUnauthorized
	KindEmailAlreadyInUse
	KindInvalidOrExpiredToken
	KindEmailNotVerified
	KindTooManyAttempts
)

var kindCodes = map[Kind]string{
	KindInternal:              "AUTH_INTERNAL",
	KindInvalidInput:          "AUTH_INVALID_INPUT",
	KindInvalidCredentials:    "AUTH_INVALID_CREDENTIALS",
	KindAccountLocked:         "AUTH_ACCOUNT_LOCKED",
	KindUnauthorized:          "AUTH_UNAUTHORIZED",
	KindEmailAlreadyInUse:     "AUTH_EMAIL_IN_USE",
	KindInvalidOrExpiredToken: "AUTH_INVALID_OR_EXPIRED_TOKEN",
	KindEmailNotVerified:      "AUTH_EMAIL_NOT_VERIFIED",
	KindTooManyAttempts:       "AUTH_TOO_MANY_ATTEMPTS",
}

// Code returns the stable error code for k.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindInternal]
}

// String implements fmt.Stringer.
func (k Kind) String() string { return k.Code() }

// Error is the error type returned by the services in this package.
type Error struct {
	kind Kind
	err  error
}

// Error implements error.
func (e *Error) Error() string { return e.err.Error() }

// Unwrap exposes the underlying oops error for logging.
func (e *Error) Unwrap() error { return e.err }

// Kind reports the failure class.
func (e *Error) Kind() Kind { return e.kind }

// KindOf extracts the Kind from err. Errors that did not originate in this
// package, and nil, report KindInternal.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// failure starts an oops builder coded for k.
func failure(k Kind) oops.OopsErrorBuilder {
	return oops.Code(k.Code())
}

// newError builds a kind-tagged error with a client-safe message.
func newError(k Kind, msg string) error {
	return &Error{kind: k, err: failure(k).Errorf("%s", msg)}
}

// withKind tags an already-built error.
func withKind(k Kind, err error) error {
	return &Error{kind: k, err: err}
}

// internalError wraps an unexpected failure. Errors that already carry a
// kind are returned unchanged.
func internalError(operation string, err error) error {
	var authErr *Error
	if errors.As(err, &authErr) {
		return err
	}
	return &Error{
		kind: KindInternal,
		err:  failure(KindInternal).With("operation", operation).Wrap(err),
	}
}
