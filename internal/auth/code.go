// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// EmailConfirmation is the single confirmation record a user may hold.
type EmailConfirmation struct {
	UserID    ulid.ULID
	Code      string
	ExpiresAt time.Time
	Confirmed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsUsableAt reports whether the code can still be consumed at t.
func (c *EmailConfirmation) IsUsableAt(t time.Time) bool {
	return codeUsable(c.Confirmed, c.ExpiresAt, t)
}

// PasswordRecovery is the single recovery record a user may hold.
// A new request overwrites code and expiry in place.
type PasswordRecovery struct {
	UserID    ulid.ULID
	Code      string
	ExpiresAt time.Time
	Confirmed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsUsableAt reports whether the code can still be consumed at t.
func (r *PasswordRecovery) IsUsableAt(t time.Time) bool {
	return codeUsable(r.Confirmed, r.ExpiresAt, t)
}

func codeUsable(confirmed bool, expiresAt, t time.Time) bool {
	return !confirmed && expiresAt.After(t)
}

// GenerateCode returns a random version 4 UUID string (122 random bits).
func GenerateCode() string {
	return uuid.NewString()
}

// CredentialCodeStore persists confirmation and recovery codes, one row per
// user per purpose. Lookups by code return ErrNotFound when nothing matches.
type CredentialCodeStore interface {
	// SaveEmailConfirmation inserts or overwrites the user's confirmation record.
	// Overwriting resets Confirmed to false.
	SaveEmailConfirmation(ctx context.Context, c *EmailConfirmation) error
	GetEmailConfirmationByCode(ctx context.Context, code string) (*EmailConfirmation, error)

	// MarkEmailConfirmed flips Confirmed for the record holding code, only if it
	// is still unconfirmed. Returns ErrNotFound when no row was changed.
	MarkEmailConfirmed(ctx context.Context, userID ulid.ULID, code string) error

	// SavePasswordRecovery inserts or overwrites the user's recovery record.
	// Overwriting resets Confirmed to false.
	SavePasswordRecovery(ctx context.Context, r *PasswordRecovery) error
	GetPasswordRecoveryByCode(ctx context.Context, code string) (*PasswordRecovery, error)

	// MarkRecoveryConfirmed behaves like MarkEmailConfirmed for recovery records.
	MarkRecoveryConfirmed(ctx context.Context, userID ulid.ULID, code string) error
}
