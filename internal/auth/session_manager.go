// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyPasswordHash is verified when the user doesn't exist so that unknown
// logins take as long as wrong passwords. It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// LoginInput carries the credentials and client details for Login.
// An empty DeviceID is replaced with a server-assigned one.
type LoginInput struct {
	LoginOrEmail string
	Password     string
	DeviceID     string
	IP           string
	UserAgent    string
}

// CreateSessionInput describes a new device session. A zero TTL uses the
// manager's configured session lifetime.
type CreateSessionInput struct {
	UserID    ulid.ULID
	DeviceID  string
	IP        string
	UserAgent string
	TTL       time.Duration
}

// DeviceSessionManager tracks one rotating refresh token per user device.
type DeviceSessionManager struct {
	users    UserDirectory
	sessions SessionStore
	tx       Transactor
	hasher   PasswordHasher
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewDeviceSessionManager creates a DeviceSessionManager. ttl is the lifetime
// granted on creation and on every refresh.
func NewDeviceSessionManager(
	users UserDirectory,
	sessions SessionStore,
	tx Transactor,
	hasher PasswordHasher,
	ttl time.Duration,
	opts ...Option,
) (*DeviceSessionManager, error) {
	switch {
	case users == nil:
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("user directory is required")
	case sessions == nil:
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("session store is required")
	case tx == nil:
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("transactor is required")
	case hasher == nil:
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("password hasher is required")
	}

	o := newOptions(opts)
	return &DeviceSessionManager{
		users:    users,
		sessions: sessions,
		tx:       tx,
		hasher:   hasher,
		ttl:      ttl,
		now:      o.now,
		logger:   o.logger,
	}, nil
}

// Login verifies credentials and opens a session for the device.
// Returns the session and the plaintext refresh token.
// Unknown users and wrong passwords produce the same UNAUTHORIZED error and
// take the same time.
func (m *DeviceSessionManager) Login(ctx context.Context, in LoginInput) (*Session, string, error) {
	user, lookupErr := m.users.FindByLoginOrEmail(ctx, in.LoginOrEmail)

	var targetHash string
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		return nil, "", oops.Code("LOGIN_FAILED").
			With("operation", "find user").
			Wrap(lookupErr)
	}

	valid, verifyErr := m.hasher.Verify(in.Password, targetHash)
	if verifyErr != nil && userExists {
		return nil, "", oops.Code("LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		sessionEvents.WithLabelValues("login_rejected").Inc()
		return nil, "", ErrUnauthorized()
	}

	if m.hasher.NeedsUpgrade(user.PasswordHash) {
		m.upgradeHash(ctx, user, in.Password)
	}

	deviceID := in.DeviceID
	if deviceID == "" {
		deviceID = ulid.Make().String()
	}

	return m.CreateSession(ctx, CreateSessionInput{
		UserID:    user.ID,
		DeviceID:  deviceID,
		IP:        in.IP,
		UserAgent: in.UserAgent,
	})
}

// upgradeHash rehashes a legacy password. Failure never fails the login.
func (m *DeviceSessionManager) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := m.hasher.Hash(password)
	if err == nil {
		err = m.users.UpdatePassword(ctx, user.ID, newHash)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"user_id", user.ID.String(),
			"operation", "upgrade_password_hash",
			"error", err,
		)
	}
}

// CreateSession revokes whatever session the device still holds and inserts a
// fresh one in a single transaction. Returns the session and plaintext token.
func (m *DeviceSessionManager) CreateSession(ctx context.Context, in CreateSessionInput) (*Session, string, error) {
	ttl := in.TTL
	if ttl <= 0 {
		ttl = m.ttl
	}
	if ttl <= 0 {
		return nil, "", ErrConfigMissing("sessions.ttl")
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	now := m.now()
	session, err := NewSession(in.UserID, in.DeviceID, tokenHash, in.IP, in.UserAgent, now, ttl)
	if err != nil {
		return nil, "", err
	}

	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		replaced, err := m.sessions.RevokeDevice(ctx, in.UserID, in.DeviceID, now)
		if err != nil {
			return err
		}
		if replaced > 0 {
			m.logger.DebugContext(ctx, "replaced device session",
				"user_id", in.UserID.String(),
				"device_id", in.DeviceID,
				"revoked", replaced,
			)
		}
		return m.sessions.Create(ctx, session)
	})
	if err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", in.UserID.String()).
			With("device_id", in.DeviceID).
			Wrap(err)
	}
	sessionEvents.WithLabelValues("created").Inc()

	return session, token, nil
}

// RefreshSession rotates the refresh token of the device's active session.
// The presented token stops working as soon as the new one is issued.
// Every rejection is the same UNAUTHORIZED error.
func (m *DeviceSessionManager) RefreshSession(ctx context.Context, userID ulid.ULID, deviceID, token string) (*Session, string, error) {
	if m.ttl <= 0 {
		return nil, "", ErrConfigMissing("sessions.ttl")
	}

	now := m.now()
	session, err := m.sessions.GetActive(ctx, userID, deviceID, now)
	if errors.Is(err, ErrNotFound) {
		return nil, "", m.rejectRefresh(ctx, "no_active_session")
	}
	if err != nil {
		return nil, "", oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "get active session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if !VerifySessionToken(token, session.TokenHash) {
		return nil, "", m.rejectRefresh(ctx, "token_mismatch")
	}

	if _, err := m.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", m.rejectRefresh(ctx, "user_missing")
		}
		return nil, "", oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "find user").
			With("user_id", userID.String()).
			Wrap(err)
	}

	newToken, newHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	oldHash := session.TokenHash
	session.Rotate(newHash, now, m.ttl)
	if err := m.sessions.Rotate(ctx, session, oldHash); err != nil {
		if errors.Is(err, ErrStaleToken) {
			// Another refresh with the same token won the race.
			return nil, "", m.rejectRefresh(ctx, "token_reused")
		}
		return nil, "", oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "rotate token").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	sessionEvents.WithLabelValues("refreshed").Inc()

	return session, newToken, nil
}

// RevokeSession ends the device's active session. Revoking a device with no
// active session is a no-op.
func (m *DeviceSessionManager) RevokeSession(ctx context.Context, userID ulid.ULID, deviceID string) error {
	now := m.now()
	session, err := m.sessions.GetActive(ctx, userID, deviceID, now)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "get active session").
			With("user_id", userID.String()).
			Wrap(err)
	}

	if err := m.sessions.Revoke(ctx, session.ID, now); err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "revoke session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	sessionEvents.WithLabelValues("revoked").Inc()
	return nil
}

// RevokeAllExceptCurrent revokes every session of userID that is active now,
// except the one on currentDeviceID. Sessions created after the snapshot is
// taken are not affected. Returns how many sessions were revoked.
func (m *DeviceSessionManager) RevokeAllExceptCurrent(ctx context.Context, userID ulid.ULID, currentDeviceID string) (int, error) {
	now := m.now()
	active, err := m.sessions.ListActive(ctx, userID, now)
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "list active sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}

	revoked := 0
	for _, s := range active {
		if s.DeviceID == currentDeviceID {
			continue
		}
		if err := m.sessions.Revoke(ctx, s.ID, now); err != nil {
			return revoked, oops.Code("SESSION_REVOKE_FAILED").
				With("operation", "revoke session").
				With("session_id", s.ID.String()).
				Wrap(err)
		}
		revoked++
	}
	sessionEvents.WithLabelValues("revoked").Add(float64(revoked))
	return revoked, nil
}

// ListActiveDevices returns the user's active sessions, most recently used first.
func (m *DeviceSessionManager) ListActiveDevices(ctx context.Context, userID ulid.ULID) ([]*Session, error) {
	now := m.now()
	sessions, err := m.sessions.ListActive(ctx, userID, now)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "list active sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}

	active := slices.DeleteFunc(sessions, func(s *Session) bool { return !s.IsActiveAt(now) })
	slices.SortStableFunc(active, func(a, b *Session) int {
		return b.LastActiveAt.Compare(a.LastActiveAt)
	})
	return active, nil
}

func (m *DeviceSessionManager) rejectRefresh(ctx context.Context, reason string) error {
	m.logger.DebugContext(ctx, "session refresh rejected", "reason", reason)
	sessionEvents.WithLabelValues("refresh_rejected").Inc()
	return ErrUnauthorized()
}
