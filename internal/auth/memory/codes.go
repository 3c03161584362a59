// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package memory

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/credentia/credentia/internal/auth"
)

// CodeStore implements auth.CredentialCodeStore in memory.
type CodeStore struct {
	db *DB
}

// SaveEmailConfirmation inserts or overwrites the user's confirmation record.
func (s *CodeStore) SaveEmailConfirmation(ctx context.Context, c *auth.EmailConfirmation) error {
	defer s.db.lock(ctx)()

	rec := *c
	rec.Confirmed = false
	if existing, ok := s.db.confirmations[c.UserID]; ok {
		rec.CreatedAt = existing.CreatedAt
	}
	s.db.confirmations[c.UserID] = &rec
	return nil
}

// GetEmailConfirmationByCode returns a copy of the confirmation record holding code.
func (s *CodeStore) GetEmailConfirmationByCode(ctx context.Context, code string) (*auth.EmailConfirmation, error) {
	defer s.db.lock(ctx)()

	for _, c := range s.db.confirmations {
		if c.Code == code {
			rec := *c
			return &rec, nil
		}
	}
	return nil, auth.ErrNotFound
}

// MarkEmailConfirmed confirms the user's record if it still holds code unconfirmed.
func (s *CodeStore) MarkEmailConfirmed(ctx context.Context, userID ulid.ULID, code string) error {
	defer s.db.lock(ctx)()

	c, ok := s.db.confirmations[userID]
	if !ok || c.Code != code || c.Confirmed {
		return auth.ErrNotFound
	}
	rec := *c
	rec.Confirmed = true
	rec.UpdatedAt = time.Now()
	s.db.confirmations[userID] = &rec
	return nil
}

// SavePasswordRecovery inserts or overwrites the user's recovery record.
func (s *CodeStore) SavePasswordRecovery(ctx context.Context, r *auth.PasswordRecovery) error {
	defer s.db.lock(ctx)()

	rec := *r
	rec.Confirmed = false
	if existing, ok := s.db.recoveries[r.UserID]; ok {
		rec.CreatedAt = existing.CreatedAt
	}
	s.db.recoveries[r.UserID] = &rec
	return nil
}

// GetPasswordRecoveryByCode returns a copy of the recovery record holding code.
func (s *CodeStore) GetPasswordRecoveryByCode(ctx context.Context, code string) (*auth.PasswordRecovery, error) {
	defer s.db.lock(ctx)()

	for _, r := range s.db.recoveries {
		if r.Code == code {
			rec := *r
			return &rec, nil
		}
	}
	return nil, auth.ErrNotFound
}

// MarkRecoveryConfirmed confirms the user's recovery record if it still holds
// code unconfirmed.
func (s *CodeStore) MarkRecoveryConfirmed(ctx context.Context, userID ulid.ULID, code string) error {
	defer s.db.lock(ctx)()

	r, ok := s.db.recoveries[userID]
	if !ok || r.Code != code || r.Confirmed {
		return auth.ErrNotFound
	}
	rec := *r
	rec.Confirmed = true
	rec.UpdatedAt = time.Now()
	s.db.recoveries[userID] = &rec
	return nil
}

var _ auth.CredentialCodeStore = (*CodeStore)(nil)
