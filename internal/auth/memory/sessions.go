// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package memory

import (
	"context"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/credentia/credentia/internal/auth"
)

// SessionStore implements auth.SessionStore in memory.
type SessionStore struct {
	db *DB
}

// Create stores a copy of s. Like the database index, it refuses a second
// non-revoked session for the same device.
func (r *SessionStore) Create(ctx context.Context, s *auth.Session) error {
	defer r.db.lock(ctx)()

	for _, existing := range r.db.sessions {
		if existing.UserID == s.UserID && existing.DeviceID == s.DeviceID && !existing.IsRevoked() {
			return oops.Code("SESSION_CREATE_FAILED").
				With("user_id", s.UserID.String()).
				With("device_id", s.DeviceID).
				Errorf("device already has a live session")
		}
	}
	r.db.sessions[s.ID] = copySession(s)
	return nil
}

// GetActive returns a copy of the device's session that is active at now.
func (r *SessionStore) GetActive(ctx context.Context, userID ulid.ULID, deviceID string, now time.Time) (*auth.Session, error) {
	defer r.db.lock(ctx)()

	for _, s := range r.db.sessions {
		if s.UserID == userID && s.DeviceID == deviceID && s.IsActiveAt(now) {
			return copySession(s), nil
		}
	}
	return nil, auth.ErrNotFound
}

// ListActive returns copies of the user's sessions active at now, most
// recently used first.
func (r *SessionStore) ListActive(ctx context.Context, userID ulid.ULID, now time.Time) ([]*auth.Session, error) {
	defer r.db.lock(ctx)()

	var active []*auth.Session
	for _, s := range r.db.sessions {
		if s.UserID == userID && s.IsActiveAt(now) {
			active = append(active, copySession(s))
		}
	}
	slices.SortFunc(active, func(a, b *auth.Session) int {
		return b.LastActiveAt.Compare(a.LastActiveAt)
	})
	return active, nil
}

// Rotate applies s's token hash, last activity and expiry if the stored
// session still holds oldHash and is active at s.LastActiveAt.
func (r *SessionStore) Rotate(ctx context.Context, s *auth.Session, oldHash string) error {
	defer r.db.lock(ctx)()

	stored, ok := r.db.sessions[s.ID]
	if !ok || stored.TokenHash != oldHash || !stored.IsActiveAt(s.LastActiveAt) {
		return auth.ErrStaleToken
	}
	updated := copySession(stored)
	updated.TokenHash = s.TokenHash
	updated.LastActiveAt = s.LastActiveAt
	updated.ExpiresAt = s.ExpiresAt
	r.db.sessions[s.ID] = updated
	return nil
}

// Revoke marks session id revoked at at, keeping an earlier revocation.
func (r *SessionStore) Revoke(ctx context.Context, id ulid.ULID, at time.Time) error {
	defer r.db.lock(ctx)()

	stored, ok := r.db.sessions[id]
	if !ok || stored.IsRevoked() {
		return nil
	}
	updated := copySession(stored)
	updated.Revoke(at)
	r.db.sessions[id] = updated
	return nil
}

// RevokeDevice revokes every non-revoked session of the device.
func (r *SessionStore) RevokeDevice(ctx context.Context, userID ulid.ULID, deviceID string, at time.Time) (int64, error) {
	defer r.db.lock(ctx)()

	var n int64
	for id, s := range r.db.sessions {
		if s.UserID != userID || s.DeviceID != deviceID || s.IsRevoked() {
			continue
		}
		updated := copySession(s)
		updated.Revoke(at)
		r.db.sessions[id] = updated
		n++
	}
	return n, nil
}

// All returns copies of every stored session, revoked and expired included.
func (r *SessionStore) All(ctx context.Context) []*auth.Session {
	defer r.db.lock(ctx)()

	all := make([]*auth.Session, 0, len(r.db.sessions))
	for _, s := range r.db.sessions {
		all = append(all, copySession(s))
	}
	return all
}

func copySession(s *auth.Session) *auth.Session {
	c := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}

var _ auth.SessionStore = (*SessionStore)(nil)
