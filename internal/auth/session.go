// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32 // 32 bytes = 64 hex chars
	DefaultSessionTTL = 30 * 24 * time.Hour
)

// Session is one authenticated device. Revocation is terminal; expiry is
// derived from ExpiresAt and never stored.
type Session struct {
	ID           ulid.ULID
	TokenHash    string
	UserID       ulid.ULID
	DeviceID     string
	IP           string
	UserAgent    string
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
}

// NewSession creates a validated Session expiring ttl after now.
// IP and userAgent are optional.
func NewSession(userID ulid.ULID, deviceID, tokenHash, ip, userAgent string, now time.Time, ttl time.Duration) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if deviceID == "" {
		return nil, oops.Code("SESSION_INVALID_DEVICE").Errorf("device ID cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("ttl must be positive")
	}

	return &Session{
		ID:           ulid.Make(),
		TokenHash:    tokenHash,
		UserID:       userID,
		DeviceID:     deviceID,
		IP:           ip,
		UserAgent:    userAgent,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(ttl),
	}, nil
}

// IsRevoked reports whether the session was explicitly revoked.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpiredAt returns true if the session is expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// IsActiveAt reports whether the session is neither revoked nor expired at t.
func (s *Session) IsActiveAt(t time.Time) bool {
	return !s.IsRevoked() && !s.IsExpiredAt(t)
}

// Revoke marks the session revoked at t. Revoking twice keeps the first timestamp.
func (s *Session) Revoke(t time.Time) {
	if s.RevokedAt != nil {
		return
	}
	s.RevokedAt = &t
}

// Rotate installs a new token hash and pushes expiry ttl past t.
func (s *Session) Rotate(tokenHash string, t time.Time, ttl time.Duration) {
	s.TokenHash = tokenHash
	s.LastActiveAt = t
	s.ExpiresAt = t.Add(ttl)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; only the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks a plaintext token against a stored hash in constant time.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// SessionStore persists sessions. Sessions are never deleted.
type SessionStore interface {
	// Create inserts a new session.
	Create(ctx context.Context, s *Session) error

	// GetActive returns the session for (userID, deviceID) that is active at now,
	// or ErrNotFound.
	GetActive(ctx context.Context, userID ulid.ULID, deviceID string, now time.Time) (*Session, error)

	// ListActive returns sessions active at now, most recently used first.
	ListActive(ctx context.Context, userID ulid.ULID, now time.Time) ([]*Session, error)

	// Rotate replaces the token hash, last activity and expiry of session id, but
	// only while it still holds oldHash and is active at s.LastActiveAt.
	// Returns ErrStaleToken otherwise.
	Rotate(ctx context.Context, s *Session, oldHash string) error

	// Revoke marks session id revoked. Already revoked sessions are left untouched.
	Revoke(ctx context.Context, id ulid.ULID, at time.Time) error

	// RevokeDevice revokes every non-revoked session for (userID, deviceID) and
	// returns how many were changed.
	RevokeDevice(ctx context.Context, userID ulid.ULID, deviceID string, at time.Time) (int64, error)
}
