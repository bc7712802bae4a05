// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/fellowhub/fellowhub/internal/auth"
)

const userColumns = `id, email, name, password_hash, role, email_verified, is_active,
		       account_locked, failed_login_attempts, last_failed_attempt, last_login,
		       created_at, updated_at`

// emailConstraint is the unique index on lower(email).
const emailConstraint = "users_email_key"

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts user and sets its ID.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	err := conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO users (
			email, name, password_hash, role, email_verified, is_active,
			account_locked, failed_login_attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		user.Email,
		user.Name,
		user.PasswordHash,
		string(user.Role),
		user.EmailVerified,
		user.IsActive,
		user.AccountLocked,
		user.FailedLoginAttempts,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if isUniqueViolation(err, emailConstraint) {
		return oops.Code("USER_EMAIL_TAKEN").
			With("email", user.Email).
			Wrap(auth.ErrEmailTaken)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1`+lockClause(ctx), id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// Update writes the fields set in update. An empty update only checks that
// the user exists.
func (r *UserRepository) Update(ctx context.Context, id int64, update auth.UserUpdate) error {
	if update.Empty() {
		_, err := r.GetByID(ctx, id)
		return err
	}

	sets, args := updateAssignments(update)
	args = append(args, id)
	sql := fmt.Sprintf(`UPDATE users SET %s, updated_at = now() WHERE id = $%d`,
		strings.Join(sets, ", "), len(args))

	result, err := conn(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// updateAssignments renders the non-nil fields of update as numbered SET
// clauses in a fixed column order.
func updateAssignments(update auth.UserUpdate) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.PasswordHash != nil {
		add("password_hash", *update.PasswordHash)
	}
	if update.Role != nil {
		add("role", string(*update.Role))
	}
	if update.EmailVerified != nil {
		add("email_verified", *update.EmailVerified)
	}
	if update.IsActive != nil {
		add("is_active", *update.IsActive)
	}
	if update.AccountLocked != nil {
		add("account_locked", *update.AccountLocked)
	}
	if update.FailedLoginAttempts != nil {
		add("failed_login_attempts", *update.FailedLoginAttempts)
	}
	return sets, args
}

// RecordLoginFailure increments the failure counter in a single statement
// and locks the account once the counter reaches maxAttempts.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id int64, at time.Time, maxAttempts int) (auth.LoginFailure, error) {
	var out auth.LoginFailure
	err := conn(ctx, r.db).QueryRow(ctx, `
		UPDATE users SET
			failed_login_attempts = failed_login_attempts + 1,
			last_failed_attempt = $2,
			account_locked = account_locked OR failed_login_attempts + 1 >= $3,
			updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts, account_locked
	`, id, at, maxAttempts).Scan(&out.Attempts, &out.Locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.LoginFailure{}, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return auth.LoginFailure{}, oops.Code("USER_RECORD_FAILURE_FAILED").
			With("operation", "record login failure").
			With("id", id).
			Wrap(err)
	}
	return out, nil
}

// RecordLoginSuccess clears the failure counter and lock and stamps the
// login time.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE users SET
			failed_login_attempts = 0,
			account_locked = FALSE,
			last_login = $2,
			updated_at = now()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return oops.Code("USER_RECORD_SUCCESS_FAILED").
			With("operation", "record login success").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u    auth.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&role,
		&u.EmailVerified,
		&u.IsActive,
		&u.AccountLocked,
		&u.FailedLoginAttempts,
		&u.LastFailedAttempt,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}
	u.Role = auth.Role(role)
	return &u, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
