// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CodeTTLs holds the lifetimes of issued codes. A zero value means the
// setting is missing and issuing that kind of code fails with CONFIG_MISSING.
type CodeTTLs struct {
	EmailConfirmation time.Duration
	PasswordRecovery  time.Duration
}

// CredentialCodeManager issues and consumes email confirmation and password
// recovery codes.
type CredentialCodeManager struct {
	users  UserDirectory
	codes  CredentialCodeStore
	tx     Transactor
	sender EmailSender
	hasher PasswordHasher
	ttls   CodeTTLs
	now    func() time.Time
	logger *slog.Logger
}

// NewCredentialCodeManager creates a CredentialCodeManager.
func NewCredentialCodeManager(
	users UserDirectory,
	codes CredentialCodeStore,
	tx Transactor,
	sender EmailSender,
	hasher PasswordHasher,
	ttls CodeTTLs,
	opts ...Option,
) (*CredentialCodeManager, error) {
	switch {
	case users == nil:
		return nil, oops.Code("CODE_MANAGER_INVALID").Errorf("user directory is required")
	case codes == nil:
		return nil, oops.Code("CODE_MANAGER_INVALID").Errorf("code store is required")
	case tx == nil:
		return nil, oops.Code("CODE_MANAGER_INVALID").Errorf("transactor is required")
	case sender == nil:
		return nil, oops.Code("CODE_MANAGER_INVALID").Errorf("email sender is required")
	case hasher == nil:
		return nil, oops.Code("CODE_MANAGER_INVALID").Errorf("password hasher is required")
	}

	o := newOptions(opts)
	return &CredentialCodeManager{
		users:  users,
		codes:  codes,
		tx:     tx,
		sender: sender,
		hasher: hasher,
		ttls:   ttls,
		now:    o.now,
		logger: o.logger,
	}, nil
}

// Register creates an unconfirmed user together with its confirmation record
// and emails the code. The user row and the code row commit together.
func (m *CredentialCodeManager) Register(ctx context.Context, login, email, password string) (*User, error) {
	if err := checkAvailable(ctx, m.users, login, email); err != nil {
		return nil, err
	}
	if m.ttls.EmailConfirmation <= 0 {
		return nil, ErrConfigMissing("codes.email_confirmation_ttl")
	}

	passwordHash, err := m.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(login, email, passwordHash)
	if err != nil {
		return nil, err
	}

	confirmation := m.newConfirmation(user.ID)
	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := m.users.Create(ctx, user); err != nil {
			return err
		}
		return m.codes.SaveEmailConfirmation(ctx, confirmation)
	})
	if err != nil {
		if IsAlreadyExists(err) {
			return nil, err
		}
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "create user").
			With("login", login).
			Wrap(err)
	}
	codesIssued.WithLabelValues(purposeConfirmation).Inc()

	if err := m.send(ctx, purposeConfirmation, user.Email, confirmation.Code); err != nil {
		return nil, err
	}
	return user, nil
}

// IssueConfirmationCode creates or overwrites the confirmation code of userID
// and emails it.
func (m *CredentialCodeManager) IssueConfirmationCode(ctx context.Context, userID ulid.ULID) error {
	if m.ttls.EmailConfirmation <= 0 {
		return ErrConfigMissing("codes.email_confirmation_ttl")
	}

	user, err := m.users.FindByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return ErrUserNotFound(userID.String())
	}
	if err != nil {
		return oops.Code("ISSUE_CONFIRMATION_FAILED").
			With("operation", "find user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return m.issueConfirmation(ctx, user)
}

// ConfirmRegistration consumes a confirmation code and marks the owner's email
// as confirmed. Every rejection is the same CONFIRMATION_CODE_INVALID error.
func (m *CredentialCodeManager) ConfirmRegistration(ctx context.Context, code string) error {
	err := m.confirmRegistration(ctx, code)
	recordRedemption(purposeConfirmation, err)
	return err
}

func (m *CredentialCodeManager) confirmRegistration(ctx context.Context, code string) error {
	if code == "" {
		return m.rejectCode(ctx, "code", "empty")
	}

	confirmation, err := m.codes.GetEmailConfirmationByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return m.rejectCode(ctx, "code", "not_found")
	}
	if err != nil {
		return oops.Code("CONFIRM_REGISTRATION_FAILED").
			With("operation", "get confirmation by code").
			Wrap(err)
	}
	if !confirmation.IsUsableAt(m.now()) {
		return m.rejectCode(ctx, "code", "not_usable")
	}

	user, err := m.users.FindByID(ctx, confirmation.UserID)
	if errors.Is(err, ErrNotFound) {
		return m.rejectCode(ctx, "code", "user_missing")
	}
	if err != nil {
		return oops.Code("CONFIRM_REGISTRATION_FAILED").
			With("operation", "find user").
			With("user_id", confirmation.UserID.String()).
			Wrap(err)
	}
	if user.EmailConfirmed {
		return m.rejectCode(ctx, "code", "user_confirmed")
	}

	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := m.users.UpdateEmailConfirmed(ctx, user.ID, true); err != nil {
			return err
		}
		return m.codes.MarkEmailConfirmed(ctx, user.ID, code)
	})
	if errors.Is(err, ErrNotFound) {
		// Lost a race with another confirmation or a delete.
		return m.rejectCode(ctx, "code", "concurrent_update")
	}
	if err != nil {
		return oops.Code("CONFIRM_REGISTRATION_FAILED").
			With("operation", "confirm email").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// ResendConfirmation re-issues the confirmation code for email. Unknown and
// already confirmed addresses both fail with ALREADY_CONFIRMED.
func (m *CredentialCodeManager) ResendConfirmation(ctx context.Context, email string) error {
	user, err := m.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return ErrAlreadyConfirmed()
	}
	if err != nil {
		return oops.Code("RESEND_CONFIRMATION_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}
	if user.EmailConfirmed {
		return ErrAlreadyConfirmed()
	}
	if m.ttls.EmailConfirmation <= 0 {
		return ErrConfigMissing("codes.email_confirmation_ttl")
	}
	return m.issueConfirmation(ctx, user)
}

// RequestPasswordRecovery issues a recovery code when email belongs to a user.
// An unknown email succeeds without any effect.
func (m *CredentialCodeManager) RequestPasswordRecovery(ctx context.Context, email string) error {
	// Checked before the lookup so a missing setting does not reveal which emails exist.
	if m.ttls.PasswordRecovery <= 0 {
		return ErrConfigMissing("codes.password_recovery_ttl")
	}

	user, err := m.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		m.logger.DebugContext(ctx, "password recovery requested for unknown email")
		return nil
	}
	if err != nil {
		return oops.Code("PASSWORD_RECOVERY_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	now := m.now()
	recovery := &PasswordRecovery{
		UserID:    user.ID,
		Code:      GenerateCode(),
		ExpiresAt: now.Add(m.ttls.PasswordRecovery),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.codes.SavePasswordRecovery(ctx, recovery); err != nil {
		return oops.Code("PASSWORD_RECOVERY_FAILED").
			With("operation", "save recovery").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	codesIssued.WithLabelValues(purposeRecovery).Inc()

	return m.send(ctx, purposeRecovery, user.Email, recovery.Code)
}

// ConfirmNewPassword consumes a recovery code and replaces the owner's password.
// Every rejection is the same CONFIRMATION_CODE_INVALID error.
func (m *CredentialCodeManager) ConfirmNewPassword(ctx context.Context, code, newPassword string) error {
	err := m.confirmNewPassword(ctx, code, newPassword)
	recordRedemption(purposeRecovery, err)
	return err
}

func (m *CredentialCodeManager) confirmNewPassword(ctx context.Context, code, newPassword string) error {
	if newPassword == "" {
		return oops.Code("NEW_PASSWORD_EMPTY").With("field", "newPassword").Errorf("new password cannot be empty")
	}
	if code == "" {
		return m.rejectCode(ctx, "recoveryCode", "empty")
	}

	recovery, err := m.codes.GetPasswordRecoveryByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return m.rejectCode(ctx, "recoveryCode", "not_found")
	}
	if err != nil {
		return oops.Code("NEW_PASSWORD_FAILED").
			With("operation", "get recovery by code").
			Wrap(err)
	}
	if !recovery.IsUsableAt(m.now()) {
		return m.rejectCode(ctx, "recoveryCode", "not_usable")
	}

	passwordHash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("NEW_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := m.users.UpdatePassword(ctx, recovery.UserID, passwordHash); err != nil {
			return err
		}
		return m.codes.MarkRecoveryConfirmed(ctx, recovery.UserID, code)
	})
	if errors.Is(err, ErrNotFound) {
		return m.rejectCode(ctx, "recoveryCode", "concurrent_update")
	}
	if err != nil {
		return oops.Code("NEW_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", recovery.UserID.String()).
			Wrap(err)
	}
	return nil
}

func (m *CredentialCodeManager) newConfirmation(userID ulid.ULID) *EmailConfirmation {
	now := m.now()
	return &EmailConfirmation{
		UserID:    userID,
		Code:      GenerateCode(),
		ExpiresAt: now.Add(m.ttls.EmailConfirmation),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m *CredentialCodeManager) issueConfirmation(ctx context.Context, user *User) error {
	confirmation := m.newConfirmation(user.ID)
	if err := m.codes.SaveEmailConfirmation(ctx, confirmation); err != nil {
		return oops.Code("ISSUE_CONFIRMATION_FAILED").
			With("operation", "save confirmation").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	codesIssued.WithLabelValues(purposeConfirmation).Inc()

	return m.send(ctx, purposeConfirmation, user.Email, confirmation.Code)
}

func (m *CredentialCodeManager) send(ctx context.Context, purpose, address, code string) error {
	var err error
	if purpose == purposeRecovery {
		err = m.sender.SendRecoveryEmail(ctx, address, code)
	} else {
		err = m.sender.SendConfirmationEmail(ctx, address, code)
	}
	if err != nil {
		emailFailures.WithLabelValues(purpose).Inc()
		return oops.Code("EMAIL_SEND_FAILED").
			With("operation", "send email").
			With("purpose", purpose).
			Wrap(err)
	}
	return nil
}

// rejectCode logs the internal reason and returns the uniform error.
func (m *CredentialCodeManager) rejectCode(ctx context.Context, field, reason string) error {
	m.logger.DebugContext(ctx, "code rejected", "field", field, "reason", reason)
	return ErrConfirmationCodeInvalid(field)
}
