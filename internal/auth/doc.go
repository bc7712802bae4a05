// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

// Package auth implements FellowHub authentication: password hashing,
// sessions backed by PASETO tokens, account lockout, and the single-use
// token flows for email verification and password reset.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - validated, normalized account with DefaultRole
//   - NewSession - session keyed by the hashes of its token pair
//   - NewVerificationToken, NewPasswordResetToken - hashed single-use tokens
//
// Repository implementations receive pre-validated types from these
// constructors. Raw tokens and passwords never reach a repository.
//
// # Services
//
//   - SessionManager - issue, validate, rotate and revoke sessions
//   - CredentialService - signup, login, logout, refresh, password
//     recovery, email verification and account administration
//
// Errors returned by the services carry a Kind; use KindOf to map them to
// a response.
package auth
