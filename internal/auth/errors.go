// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by stores when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrStaleToken is returned by SessionStore.Rotate when the stored token hash
// no longer matches, or the session stopped being active, between read and write.
var ErrStaleToken = errors.New("stale session token")

// Error codes surfaced to the API layer.
const (
	CodeConfirmationCodeInvalid = "CONFIRMATION_CODE_INVALID"
	CodeAlreadyConfirmed        = "ALREADY_CONFIRMED"
	CodeAlreadyExists           = "ALREADY_EXISTS"
	CodeNotFound                = "NOT_FOUND"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeConfigMissing           = "CONFIG_MISSING"
)

// FieldError names a single input field that collided with existing state.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrConfirmationCodeInvalid is the single error for every unusable
// confirmation or recovery code. field is "code" or "recoveryCode".
func ErrConfirmationCodeInvalid(field string) error {
	return oops.Code(CodeConfirmationCodeInvalid).
		With("field", field).
		Errorf("code is not valid")
}

// ErrAlreadyConfirmed covers both unknown and already confirmed accounts on resend.
func ErrAlreadyConfirmed() error {
	return oops.Code(CodeAlreadyConfirmed).
		With("field", "email").
		Errorf("email already confirmed")
}

// ErrAlreadyExists reports login and/or email collisions.
func ErrAlreadyExists(fields []FieldError) error {
	return oops.Code(CodeAlreadyExists).
		With("fields", fields).
		Errorf("login or email already exists")
}

// ErrUserNotFound reports a lookup by internal id that found nothing.
func ErrUserNotFound(id string) error {
	return oops.Code(CodeNotFound).
		With("user_id", id).
		Errorf("user not found")
}

// ErrUnauthorized is returned for every rejected refresh or login.
func ErrUnauthorized() error {
	return oops.Code(CodeUnauthorized).Errorf("unauthorized")
}

// ErrConfigMissing reports a required setting that is absent or non-positive.
func ErrConfigMissing(key string) error {
	return oops.Code(CodeConfigMissing).
		With("key", key).
		Errorf("%s is not set", key)
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}

// IsCodeInvalid reports whether err is a CONFIRMATION_CODE_INVALID error.
func IsCodeInvalid(err error) bool { return hasCode(err, CodeConfirmationCodeInvalid) }

// IsAlreadyConfirmed reports whether err is an ALREADY_CONFIRMED error.
func IsAlreadyConfirmed(err error) bool { return hasCode(err, CodeAlreadyConfirmed) }

// IsAlreadyExists reports whether err is an ALREADY_EXISTS error.
func IsAlreadyExists(err error) bool { return hasCode(err, CodeAlreadyExists) }

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsUnauthorized reports whether err is an UNAUTHORIZED error.
func IsUnauthorized(err error) bool { return hasCode(err, CodeUnauthorized) }

// IsConfigMissing reports whether err is a CONFIG_MISSING error.
func IsConfigMissing(err error) bool { return hasCode(err, CodeConfigMissing) }

// ConflictFields extracts the per-field detail from an ALREADY_EXISTS error.
func ConflictFields(err error) []FieldError {
	if !IsAlreadyExists(err) {
		return nil
	}
	oopsErr, _ := oops.AsOops(err)
	fields, _ := oopsErr.Context()["fields"].([]FieldError)
	return fields
}
