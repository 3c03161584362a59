// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package memory

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/credentia/credentia/internal/auth"
)

// UserDirectory implements auth.UserDirectory in memory.
type UserDirectory struct {
	db *DB
}

// FindByID returns a copy of the live user with id.
func (r *UserDirectory) FindByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	defer r.db.lock(ctx)()

	u, ok := r.db.users[id]
	if !ok || u.IsDeleted() {
		return nil, auth.ErrNotFound
	}
	return copyUser(u), nil
}

// FindByEmail returns a copy of the live user with email.
func (r *UserDirectory) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	defer r.db.lock(ctx)()

	return r.find(func(u *auth.User) bool { return u.Email == email })
}

// FindByLoginOrEmail returns a copy of the live user whose login or email is value.
func (r *UserDirectory) FindByLoginOrEmail(ctx context.Context, value string) (*auth.User, error) {
	defer r.db.lock(ctx)()

	return r.find(func(u *auth.User) bool { return u.Login == value || u.Email == value })
}

// Create stores a copy of user. Live login and email values must be unique.
func (r *UserDirectory) Create(ctx context.Context, user *auth.User) error {
	defer r.db.lock(ctx)()

	var fields []auth.FieldError
	for _, u := range r.db.users {
		if u.IsDeleted() {
			continue
		}
		if u.Login == user.Login {
			fields = append(fields, auth.FieldError{Field: "login", Message: "login already exists"})
		}
		if u.Email == user.Email {
			fields = append(fields, auth.FieldError{Field: "email", Message: "email already exists"})
		}
	}
	if len(fields) > 0 {
		return auth.ErrAlreadyExists(fields)
	}

	r.db.users[user.ID] = copyUser(user)
	return nil
}

// UpdatePassword replaces the password hash of a live user.
func (r *UserDirectory) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.update(ctx, id, func(u *auth.User) { u.PasswordHash = passwordHash })
}

// UpdateEmailConfirmed sets the email confirmation flag of a live user.
func (r *UserDirectory) UpdateEmailConfirmed(ctx context.Context, id ulid.ULID, confirmed bool) error {
	return r.update(ctx, id, func(u *auth.User) { u.EmailConfirmed = confirmed })
}

// SoftDelete marks a live user deleted.
func (r *UserDirectory) SoftDelete(ctx context.Context, id ulid.ULID) error {
	return r.update(ctx, id, func(u *auth.User) {
		now := time.Now()
		u.DeletedAt = &now
	})
}

func (r *UserDirectory) update(ctx context.Context, id ulid.ULID, fn func(u *auth.User)) error {
	defer r.db.lock(ctx)()

	stored, ok := r.db.users[id]
	if !ok || stored.IsDeleted() {
		return auth.ErrNotFound
	}
	u := copyUser(stored)
	fn(u)
	u.UpdatedAt = time.Now()
	r.db.users[id] = u
	return nil
}

// find must be called with the lock held.
func (r *UserDirectory) find(match func(u *auth.User) bool) (*auth.User, error) {
	for _, u := range r.db.users {
		if !u.IsDeleted() && match(u) {
			return copyUser(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

func copyUser(u *auth.User) *auth.User {
	c := *u
	if u.DeletedAt != nil {
		t := *u.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

var _ auth.UserDirectory = (*UserDirectory)(nil)
