// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth

import "context"

// Transactor runs fn as one unit of work. Store calls made with the context
// passed to fn participate in it; a non-nil return rolls everything back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EmailSender delivers codes. Calls block until the message is handed off,
// so a transport failure fails the calling operation.
type EmailSender interface {
	SendConfirmationEmail(ctx context.Context, address, code string) error
	SendRecoveryEmail(ctx context.Context, address, code string) error
}
