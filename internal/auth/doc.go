// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

// Package auth implements the credential and session lifecycle of Credentia.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates an unconfirmed User with validated login and email
//   - NewSession - creates a Session with validated user, device and lifetime
//
// EmailConfirmation and PasswordRecovery records are built by
// CredentialCodeManager; there is at most one of each per user.
//
// # Services
//
// Service types coordinate domain operations over the store interfaces:
//   - CredentialCodeManager - registration, email confirmation, password recovery
//   - DeviceSessionManager - login, refresh token rotation, revocation
//   - AccountService - administrative user creation and deletion
//
// Services are created with New* constructors that validate dependencies.
// Multi-row writes go through a Transactor so either all rows change or none.
//
// # Errors
//
// Rejections that could reveal which check failed are collapsed into a single
// error per operation: CONFIRMATION_CODE_INVALID for codes, UNAUTHORIZED for
// refresh and login, ALREADY_CONFIRMED for resend. Use the Is* helpers in
// errors.go to classify them.
package auth
