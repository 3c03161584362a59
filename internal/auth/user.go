// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Login validation constraints.
const (
	MinLoginLength = 3
	MaxLoginLength = 10
)

var loginRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]*$`)

// User is the subset of an account that credential flows read and write.
// The directory owns the record; this package never mutates it directly.
type User struct {
	ID             ulid.ULID
	Login          string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// IsDeleted reports whether the user was soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// NewUser creates a validated, unconfirmed User.
func NewUser(login, email, passwordHash string) (*User, error) {
	if err := ValidateLogin(login); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Login:        login,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateLogin checks length and character set of a login.
func ValidateLogin(login string) error {
	if len(login) < MinLoginLength || len(login) > MaxLoginLength {
		return oops.Code("USER_INVALID_LOGIN").
			With("min", MinLoginLength).
			With("max", MaxLoginLength).
			Errorf("login must be between %d and %d characters", MinLoginLength, MaxLoginLength)
	}
	if !loginRegex.MatchString(login) {
		return oops.Code("USER_INVALID_LOGIN").
			Errorf("login may contain only letters, numbers, underscores and dashes")
	}
	return nil
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, ".") {
		return oops.Code("USER_INVALID_EMAIL").
			With("email", email).
			Errorf("email is not a valid address")
	}
	return nil
}

// UserDirectory looks up and updates users. Every method ignores soft-deleted
// users, and lookups return ErrNotFound when nothing matches.
type UserDirectory interface {
	FindByID(ctx context.Context, id ulid.ULID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByLoginOrEmail matches value against both login and email.
	FindByLoginOrEmail(ctx context.Context, value string) (*User, error)

	// Create stores a new user. A login or email collision is reported as ALREADY_EXISTS.
	Create(ctx context.Context, user *User) error

	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
	UpdateEmailConfirmed(ctx context.Context, id ulid.ULID, confirmed bool) error

	// SoftDelete sets deleted_at. Returns ErrNotFound if the user is absent or already deleted.
	SoftDelete(ctx context.Context, id ulid.ULID) error
}
