// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/credentia/credentia/internal/auth"
)

// Code tables share one layout: user_id primary key, unique code. Both are
// read and written as auth.EmailConfirmation, which has the same fields as
// auth.PasswordRecovery.
const (
	emailConfirmationsTable = "email_confirmations"
	passwordRecoveriesTable = "password_recoveries"
)

// CodeStore implements auth.CredentialCodeStore using PostgreSQL.
type CodeStore struct {
	pool Pool
}

// NewCodeStore creates a new CodeStore.
func NewCodeStore(pool Pool) *CodeStore {
	return &CodeStore{pool: pool}
}

// SaveEmailConfirmation upserts the user's confirmation row.
func (s *CodeStore) SaveEmailConfirmation(ctx context.Context, c *auth.EmailConfirmation) error {
	return s.save(ctx, emailConfirmationsTable, c)
}

// GetEmailConfirmationByCode retrieves the confirmation row holding code.
func (s *CodeStore) GetEmailConfirmationByCode(ctx context.Context, code string) (*auth.EmailConfirmation, error) {
	return s.getByCode(ctx, emailConfirmationsTable, code)
}

// MarkEmailConfirmed confirms the user's row only while it still holds code
// and is unconfirmed.
func (s *CodeStore) MarkEmailConfirmed(ctx context.Context, userID ulid.ULID, code string) error {
	return s.markConfirmed(ctx, emailConfirmationsTable, userID, code)
}

// SavePasswordRecovery upserts the user's recovery row.
func (s *CodeStore) SavePasswordRecovery(ctx context.Context, r *auth.PasswordRecovery) error {
	rec := auth.EmailConfirmation(*r)
	return s.save(ctx, passwordRecoveriesTable, &rec)
}

// GetPasswordRecoveryByCode retrieves the recovery row holding code.
func (s *CodeStore) GetPasswordRecoveryByCode(ctx context.Context, code string) (*auth.PasswordRecovery, error) {
	rec, err := s.getByCode(ctx, passwordRecoveriesTable, code)
	if err != nil {
		return nil, err
	}
	recovery := auth.PasswordRecovery(*rec)
	return &recovery, nil
}

// MarkRecoveryConfirmed confirms the user's recovery row only while it still
// holds code and is unconfirmed.
func (s *CodeStore) MarkRecoveryConfirmed(ctx context.Context, userID ulid.ULID, code string) error {
	return s.markConfirmed(ctx, passwordRecoveriesTable, userID, code)
}

// save inserts or overwrites a code row. Overwriting always resets confirmed
// so a re-issued code is usable again.
func (s *CodeStore) save(ctx context.Context, table string, rec *auth.EmailConfirmation) error {
	_, err := conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO `+table+` (user_id, code, expires_at, confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, false, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET code = EXCLUDED.code,
			expires_at = EXCLUDED.expires_at,
			confirmed = false,
			updated_at = EXCLUDED.updated_at
	`,
		rec.UserID.String(),
		rec.Code,
		rec.ExpiresAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return oops.Code("CODE_SAVE_FAILED").
			With("operation", "upsert "+table).
			With("user_id", rec.UserID.String()).
			Wrap(err)
	}
	return nil
}

func (s *CodeStore) getByCode(ctx context.Context, table, code string) (*auth.EmailConfirmation, error) {
	row := conn(ctx, s.pool).QueryRow(ctx, `
		SELECT user_id, code, expires_at, confirmed, created_at, updated_at
		FROM `+table+`
		WHERE code = $1
	`, code)

	var (
		userIDStr string
		rec       auth.EmailConfirmation
	)
	err := row.Scan(&userIDStr, &rec.Code, &rec.ExpiresAt, &rec.Confirmed, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CODE_NOT_FOUND").
			With("table", table).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CODE_QUERY_FAILED").
			With("operation", "select "+table+" by code").
			Wrap(err)
	}

	rec.UserID, err = parseULID(userIDStr, "user_id")
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *CodeStore) markConfirmed(ctx context.Context, table string, userID ulid.ULID, code string) error {
	result, err := conn(ctx, s.pool).Exec(ctx, `
		UPDATE `+table+` SET confirmed = true, updated_at = now()
		WHERE user_id = $1 AND code = $2 AND confirmed = false
	`, userID.String(), code)
	if err != nil {
		return oops.Code("CODE_CONFIRM_FAILED").
			With("operation", "confirm "+table).
			With("user_id", userID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CODE_NOT_FOUND").
			With("table", table).
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

var _ auth.CredentialCodeStore = (*CodeStore)(nil)
