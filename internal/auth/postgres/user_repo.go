// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/credentia/credentia/internal/auth"
)

// Unique index names from the users migration.
const (
	usersLoginIndex = "users_login_active_idx"
	usersEmailIndex = "users_email_active_idx"
)

const userColumns = `id, login, email, password_hash, email_confirmed, created_at, updated_at, deleted_at`

// UserDirectory implements auth.UserDirectory using PostgreSQL.
// Soft-deleted rows are invisible to every method.
type UserDirectory struct {
	pool Pool
}

// NewUserDirectory creates a new UserDirectory.
func NewUserDirectory(pool Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

// FindByID retrieves a live user by ID.
func (r *UserDirectory) FindByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`, id.String())

	return r.findOne(row, "find user by id", "id", id.String())
}

// FindByEmail retrieves a live user by email.
func (r *UserDirectory) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`, email)

	return r.findOne(row, "find user by email", "email", email)
}

// FindByLoginOrEmail retrieves a live user whose login or email equals value.
func (r *UserDirectory) FindByLoginOrEmail(ctx context.Context, value string) (*auth.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE (login = $1 OR email = $1) AND deleted_at IS NULL
		ORDER BY created_at
		LIMIT 1
	`, value)

	return r.findOne(row, "find user by login or email", "value", value)
}

// Create stores a new user. Unique index violations become ALREADY_EXISTS.
func (r *UserDirectory) Create(ctx context.Context, user *auth.User) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (id, login, email, password_hash, email_confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		user.ID.String(),
		user.Login,
		user.Email,
		user.PasswordHash,
		user.EmailConfirmed,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if constraint, ok := uniqueViolation(err); ok {
		return auth.ErrAlreadyExists([]auth.FieldError{conflictField(constraint)})
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("login", user.Login).
			Wrap(err)
	}
	return nil
}

// UpdatePassword replaces a live user's password hash.
func (r *UserDirectory) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.update(ctx, "update password_hash", id, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, passwordHash)
}

// UpdateEmailConfirmed sets a live user's email confirmation flag.
func (r *UserDirectory) UpdateEmailConfirmed(ctx context.Context, id ulid.ULID, confirmed bool) error {
	return r.update(ctx, "update email_confirmed", id, `
		UPDATE users SET email_confirmed = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, confirmed)
}

// SoftDelete stamps deleted_at on a live user.
func (r *UserDirectory) SoftDelete(ctx context.Context, id ulid.ULID) error {
	return r.update(ctx, "soft delete user", id, `
		UPDATE users SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`)
}

func (r *UserDirectory) update(ctx context.Context, operation string, id ulid.ULID, sql string, args ...any) error {
	result, err := conn(ctx, r.pool).Exec(ctx, sql, append([]any{id.String()}, args...)...)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *UserDirectory) findOne(row pgx.Row, operation, key, value string) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With(key, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").
			With("operation", operation).
			With(key, value).
			Wrap(err)
	}
	return user, nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr     string
		user      auth.User
		deletedAt *time.Time
	)
	err := row.Scan(
		&idStr,
		&user.Login,
		&user.Email,
		&user.PasswordHash,
		&user.EmailConfirmed,
		&user.CreatedAt,
		&user.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}

	user.ID, err = parseULID(idStr, "id")
	if err != nil {
		return nil, err
	}
	user.DeletedAt = deletedAt
	return &user, nil
}

func conflictField(constraint string) auth.FieldError {
	if constraint == usersLoginIndex {
		return auth.FieldError{Field: "login", Message: "login already exists"}
	}
	return auth.FieldError{Field: "email", Message: "email already exists"}
}

var _ auth.UserDirectory = (*UserDirectory)(nil)
