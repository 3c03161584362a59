// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/credentia/credentia/internal/auth"
)

// LogSender implements auth.EmailSender by logging the code instead of
// sending it. Used when no SMTP host is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// SendConfirmationEmail logs the confirmation code.
func (s *LogSender) SendConfirmationEmail(ctx context.Context, address, code string) error {
	s.logger.InfoContext(ctx, "email not sent, smtp disabled", "kind", KindConfirmation, "to", address, "code", code)
	return nil
}

// SendRecoveryEmail logs the recovery code.
func (s *LogSender) SendRecoveryEmail(ctx context.Context, address, code string) error {
	s.logger.InfoContext(ctx, "email not sent, smtp disabled", "kind", KindRecovery, "to", address, "code", code)
	return nil
}

var _ auth.EmailSender = (*LogSender)(nil)
