// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package config

import (
	"slices"

	"github.com/samber/oops"
)

var (
	validLogFormats = []string{"json", "text"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
)

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").With("key", "database.url").Errorf("database.url is required")
	}
	if !slices.Contains(validLogFormats, c.Log.Format) {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.format").
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if !slices.Contains(validLogLevels, c.Log.Level) {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.level").
			Errorf("log.level must be one of %v, got %q", validLogLevels, c.Log.Level)
	}
	if c.Sessions.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("key", "sessions.ttl").
			Errorf("sessions.ttl must be positive, got %s", c.Sessions.TTL)
	}
	if c.Mail.SMTP.Host != "" && (c.Mail.SMTP.Port <= 0 || c.Mail.SMTP.Port > 65535) {
		return oops.Code("CONFIG_INVALID").
			With("key", "mail.smtp.port").
			Errorf("mail.smtp.port must be between 1 and 65535, got %d", c.Mail.SMTP.Port)
	}
	return nil
}
