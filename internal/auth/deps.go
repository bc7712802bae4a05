// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import "context"

// Transactor runs fn inside a transaction. Repositories called with the
// ctx passed to fn take part in it. A non-nil error from fn rolls back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EmailSender delivers account emails. Delivery is best-effort: failures
// are logged and never undo the operation that triggered them.
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, user *User, token string) error
	SendPasswordResetEmail(ctx context.Context, user *User, token string) error
}
