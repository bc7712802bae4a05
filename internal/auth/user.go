// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"context"
	"net/mail"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Role is a user's base role.
type Role string

// Roles, lowest privilege first.
const (
	RolePublic     Role = "public"
	RoleApplicant  Role = "applicant"
	RoleFellow     Role = "fellow"
	RoleEmployee   Role = "employee"
	RoleAlumni     Role = "alumni"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// DefaultRole is assigned on signup.
const DefaultRole = RolePublic

var allRoles = []Role{RolePublic, RoleApplicant, RoleFellow, RoleEmployee, RoleAlumni, RoleAdmin, RoleSuperAdmin}

var knownRoles = func() map[Role]bool {
	m := make(map[Role]bool, len(allRoles))
	for _, r := range allRoles {
		m[r] = true
	}
	return m
}()

// Roles returns every known role, lowest privilege first.
func Roles() []Role { return slices.Clone(allRoles) }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return knownRoles[r] }

// IsAdmin reports whether r grants administrative access.
func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// ParseRole converts s to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Errorf("unknown role %q", s)
	}
	return r, nil
}

// Input limits.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxNameLength     = 100
	MaxEmailLength    = 254
)

// User is an account. Users are deactivated, never deleted.
type User struct {
	ID                  int64
	Email               string
	Name                string
	PasswordHash        string
	Role                Role
	EmailVerified       bool
	IsActive            bool
	AccountLocked       bool
	FailedLoginAttempts int
	LastFailedAttempt   *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewUser creates an active, unverified user with DefaultRole. The email is
// normalized; ID is assigned by the repository on Create.
func NewUser(email, name, passwordHash string, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_PASSWORD").Errorf("password hash cannot be empty")
	}

	return &User{
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         DefaultRole,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IDString returns the user id in its API form.
func (u *User) IDString() string {
	return FormatUserID(u.ID)
}

// View returns the projection safe to hand to clients.
func (u *User) View() UserView {
	return UserView{
		ID:    u.IDString(),
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

// UserView is the minimal client-facing projection of a User.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// FormatUserID renders a user id as a decimal string.
func FormatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseUserID parses a decimal user id.
func ParseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, oops.Code("AUTH_INVALID_USER_ID").With("user_id", s).Errorf("invalid user id")
	}
	return id, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address of sane length.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").With("max", MaxEmailLength).Errorf("email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email address is not valid")
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email address is not valid")
	}
	return nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return oops.Code("AUTH_INVALID_NAME").Errorf("name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return oops.Code("AUTH_INVALID_NAME").With("max", MaxNameLength).Errorf("name is too long")
	}
	return nil
}

// ValidatePassword enforces the password length policy.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if n > MaxPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	Name                *string
	PasswordHash        *string
	Role                *Role
	EmailVerified       *bool
	IsActive            *bool
	AccountLocked       *bool
	FailedLoginAttempts *int
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.PasswordHash == nil && u.Role == nil &&
		u.EmailVerified == nil && u.IsActive == nil &&
		u.AccountLocked == nil && u.FailedLoginAttempts == nil
}

// Apply copies the set fields onto user.
func (u UserUpdate) Apply(user *User) {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.PasswordHash != nil {
		user.PasswordHash = *u.PasswordHash
	}
	if u.Role != nil {
		user.Role = *u.Role
	}
	if u.EmailVerified != nil {
		user.EmailVerified = *u.EmailVerified
	}
	if u.IsActive != nil {
		user.IsActive = *u.IsActive
	}
	if u.AccountLocked != nil {
		user.AccountLocked = *u.AccountLocked
	}
	if u.FailedLoginAttempts != nil {
		user.FailedLoginAttempts = *u.FailedLoginAttempts
	}
}

// unlockUpdate clears the lock and the failure counter.
func unlockUpdate() UserUpdate {
	locked, attempts := false, 0
	return UserUpdate{AccountLocked: &locked, FailedLoginAttempts: &attempts}
}

// LoginFailure is the counter state after a failed attempt was recorded.
type LoginFailure struct {
	Attempts int
	Locked   bool
}

// UserRepository manages user persistence. Methods use the transaction in
// ctx when there is one.
type UserRepository interface {
	// Create inserts user and sets its ID. Returns ErrEmailTaken when the
	// email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID returns ErrNotFound if the user does not exist.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail looks up a normalized email. Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update applies a partial update. Returns ErrNotFound if the user does
	// not exist.
	Update(ctx context.Context, id int64, update UserUpdate) error

	// RecordLoginFailure atomically increments the failure counter, stamps
	// the attempt time and locks the account once maxAttempts is reached.
	RecordLoginFailure(ctx context.Context, id int64, at time.Time, maxAttempts int) (LoginFailure, error)

	// RecordLoginSuccess clears the failure counter and lock and stamps
	// last_login.
	RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error
}
