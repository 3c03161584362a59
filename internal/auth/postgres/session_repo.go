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

const sessionColumns = `id, token_hash, user_id, device_id, ip, user_agent, created_at, last_active_at, expires_at, revoked_at`

// SessionStore implements auth.SessionStore using PostgreSQL.
// The sessions_device_live_idx partial unique index allows one
// non-revoked row per (user_id, device_id).
type SessionStore struct {
	pool Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Create stores a new session.
func (r *SessionStore) Create(ctx context.Context, s *auth.Session) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO sessions (id, token_hash, user_id, device_id, ip, user_agent, created_at, last_active_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		s.ID.String(),
		s.TokenHash,
		s.UserID.String(),
		s.DeviceID,
		s.IP,
		s.UserAgent,
		s.CreatedAt,
		s.LastActiveAt,
		s.ExpiresAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", s.UserID.String()).
			With("device_id", s.DeviceID).
			Wrap(err)
	}
	return nil
}

// GetActive retrieves the live session for a device.
func (r *SessionStore) GetActive(ctx context.Context, userID ulid.ULID, deviceID string, now time.Time) (*auth.Session, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND device_id = $2 AND revoked_at IS NULL AND expires_at >= $3
	`, userID.String(), deviceID, now)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("user_id", userID.String()).
			With("device_id", deviceID).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_ACTIVE_FAILED").
			With("operation", "get active session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return session, nil
}

// ListActive retrieves every live session of a user, most recently used first.
func (r *SessionStore) ListActive(ctx context.Context, userID ulid.ULID, now time.Time) ([]*auth.Session, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at >= $2
		ORDER BY last_active_at DESC
	`, userID.String(), now)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "list active sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan session row").
				Wrap(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}
	return sessions, nil
}

// Rotate swaps the token hash only if the row still holds oldHash and is live
// at s.LastActiveAt. Two refreshes racing with the same token cannot both win.
func (r *SessionStore) Rotate(ctx context.Context, s *auth.Session, oldHash string) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE sessions
		SET token_hash = $3, last_active_at = $4, expires_at = $5
		WHERE id = $1 AND token_hash = $2 AND revoked_at IS NULL AND expires_at >= $4
	`, s.ID.String(), oldHash, s.TokenHash, s.LastActiveAt, s.ExpiresAt)
	if err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").
			With("operation", "rotate session token").
			With("id", s.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_STALE_TOKEN").
			With("id", s.ID.String()).
			Wrap(auth.ErrStaleToken)
	}
	return nil
}

// Revoke stamps revoked_at on a session that is not yet revoked.
func (r *SessionStore) Revoke(ctx context.Context, id ulid.ULID, at time.Time) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE sessions SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`, id.String(), at)
	if err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "revoke session").
			With("id", id.String()).
			Wrap(err)
	}
	return nil
}

// RevokeDevice revokes every non-revoked session of a device, expired or not.
func (r *SessionStore) RevokeDevice(ctx context.Context, userID ulid.ULID, deviceID string, at time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE sessions SET revoked_at = $3
		WHERE user_id = $1 AND device_id = $2 AND revoked_at IS NULL
	`, userID.String(), deviceID, at)
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_DEVICE_FAILED").
			With("operation", "revoke device sessions").
			With("user_id", userID.String()).
			With("device_id", deviceID).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a Session. pgx.Rows satisfies pgx.Row,
// so it serves both QueryRow and Query results.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr     string
		userIDStr string
		s         auth.Session
	)
	err := row.Scan(
		&idStr,
		&s.TokenHash,
		&userIDStr,
		&s.DeviceID,
		&s.IP,
		&s.UserAgent,
		&s.CreatedAt,
		&s.LastActiveAt,
		&s.ExpiresAt,
		&s.RevokedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}

	if s.ID, err = parseULID(idStr, "id"); err != nil {
		return nil, err
	}
	if s.UserID, err = parseULID(userIDStr, "user_id"); err != nil {
		return nil, err
	}
	return &s, nil
}

var _ auth.SessionStore = (*SessionStore)(nil)
