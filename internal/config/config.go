// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

// Package config loads Credentia settings from flags, environment and a YAML file.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/credentia/credentia/internal/xdg"
)

// EnvPrefix prefixes every environment variable. Nested keys are separated by
// a double underscore, e.g. CREDENTIA_DATABASE__URL.
const EnvPrefix = "CREDENTIA_"

// Flag names registered by RegisterFlags.
const (
	FlagConfig      = "config"
	FlagDatabaseURL = "database-url"
	FlagLogFormat   = "log-format"
	FlagLogLevel    = "log-level"
)

// flagKeys maps flag names to config keys. Flags not listed are not config values.
var flagKeys = map[string]string{
	FlagDatabaseURL: "database.url",
	FlagLogFormat:   "log.format",
	FlagLogLevel:    "log.level",
}

// Config is the full runtime configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Codes    CodesConfig    `koanf:"codes"`
	Sessions SessionsConfig `koanf:"sessions"`
	Mail     MailConfig     `koanf:"mail"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// CodesConfig holds code lifetimes. Zero values are allowed here; issuing a
// code with a zero lifetime fails at call time.
type CodesConfig struct {
	EmailConfirmationTTL time.Duration `koanf:"email_confirmation_ttl"`
	PasswordRecoveryTTL  time.Duration `koanf:"password_recovery_ttl"`
}

// SessionsConfig configures device sessions.
type SessionsConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// MailConfig configures outgoing email. An empty SMTP host disables delivery
// and codes are logged instead.
type MailConfig struct {
	From            string     `koanf:"from"`
	SMTP            SMTPConfig `koanf:"smtp"`
	ConfirmationURL string     `koanf:"confirmation_url"`
	RecoveryURL     string     `koanf:"recovery_url"`
}

// SMTPConfig holds relay settings.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Default returns the configuration used for keys no source sets.
func Default() Config {
	return Config{
		Database: DatabaseConfig{ConnectTimeout: 30 * time.Second},
		Log:      LogConfig{Format: "json", Level: "info"},
		Codes: CodesConfig{
			EmailConfirmationTTL: 60 * time.Minute,
			PasswordRecoveryTTL:  30 * time.Minute,
		},
		Sessions: SessionsConfig{TTL: 30 * 24 * time.Hour},
		Mail: MailConfig{
			From: "no-reply@localhost",
			SMTP: SMTPConfig{Port: 587},
		},
	}
}

// RegisterFlags adds the config file flag and the flag-settable keys to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "", "path to a YAML config file (default $XDG_CONFIG_HOME/credentia/config.yaml)")
	fs.String(FlagDatabaseURL, d.Database.URL, "PostgreSQL connection URL")
	fs.String(FlagLogFormat, d.Log.Format, "log format (json or text)")
	fs.String(FlagLogLevel, d.Log.Level, "log level (debug, info, warn, error)")
}

// Load merges, lowest first: defaults, the YAML file named by --config (or
// config.yaml in the XDG config directory when it exists),
// CREDENTIA_* environment variables, and explicitly set flags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, _ := fs.GetString(FlagConfig) //nolint:errcheck // absent flag means no file
	if path == "" {
		path = xdg.ConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load config file").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load environment").Wrap(err)
	}

	// Unchanged flags only fill keys no other source set.
	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load flags").Wrap(err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal config").Wrap(err)
	}
	return &cfg, nil
}

// envKey turns CREDENTIA_MAIL__SMTP__HOST into mail.smtp.host.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func flagKey(f *pflag.Flag) (string, any) {
	key, ok := flagKeys[f.Name]
	if !ok {
		return "", nil
	}
	return key, f.Value.String()
}
