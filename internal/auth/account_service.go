// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AccountService handles administrative account operations that bypass the
// confirmation flow.
type AccountService struct {
	users  UserDirectory
	hasher PasswordHasher
	logger *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(users UserDirectory, hasher PasswordHasher, opts ...Option) (*AccountService, error) {
	if users == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("password hasher is required")
	}
	o := newOptions(opts)
	return &AccountService{users: users, hasher: hasher, logger: o.logger}, nil
}

// CreateUser creates a user whose email is already confirmed.
func (s *AccountService) CreateUser(ctx context.Context, login, email, password string) (*User, error) {
	if err := checkAvailable(ctx, s.users, login, email); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("CREATE_USER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(login, email, passwordHash)
	if err != nil {
		return nil, err
	}
	user.EmailConfirmed = true

	if err := s.users.Create(ctx, user); err != nil {
		if IsAlreadyExists(err) {
			return nil, err
		}
		return nil, oops.Code("CREATE_USER_FAILED").
			With("operation", "create user").
			With("login", login).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "user created", "user_id", user.ID.String())
	return user, nil
}

// DeleteUser soft-deletes a user. A user that is absent or already deleted
// fails with NOT_FOUND.
func (s *AccountService) DeleteUser(ctx context.Context, id ulid.ULID) error {
	err := s.users.SoftDelete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ErrUserNotFound(id.String())
	}
	if err != nil {
		return oops.Code("DELETE_USER_FAILED").
			With("operation", "soft delete").
			With("user_id", id.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", id.String())
	return nil
}

// checkAvailable reports ALREADY_EXISTS with one FieldError per colliding
// field. Both fields are checked so the caller sees every conflict at once.
func checkAvailable(ctx context.Context, users UserDirectory, login, email string) error {
	var fields []FieldError

	taken, err := isTaken(ctx, users, login)
	if err != nil {
		return err
	}
	if taken {
		fields = append(fields, FieldError{Field: "login", Message: "login already exists"})
	}

	taken, err = isTaken(ctx, users, email)
	if err != nil {
		return err
	}
	if taken {
		fields = append(fields, FieldError{Field: "email", Message: "email already exists"})
	}

	if len(fields) > 0 {
		return ErrAlreadyExists(fields)
	}
	return nil
}

func isTaken(ctx context.Context, users UserDirectory, value string) (bool, error) {
	_, err := users.FindByLoginOrEmail(ctx, value)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, oops.Code("AVAILABILITY_CHECK_FAILED").
			With("operation", "find user by login or email").
			Wrap(err)
	}
}
