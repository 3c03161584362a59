// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/credentia/credentia/internal/auth"
	"github.com/credentia/credentia/internal/auth/postgres"
	"github.com/credentia/credentia/internal/config"
	"github.com/credentia/credentia/internal/mail"
	"github.com/credentia/credentia/internal/store"
)

// cliDeps contains injectable dependencies for the commands.
// Nil fields use their default implementations.
type cliDeps struct {
	// AppFactory wires the managers for a loaded config.
	// Default: newPostgresApp
	AppFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (schemaMigrator, error)
}

func (d cliDeps) withDefaults() cliDeps {
	if d.AppFactory == nil {
		d.AppFactory = newPostgresApp
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (schemaMigrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	return d
}

// schemaMigrator wraps the methods used from store.Migrator.
type schemaMigrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// stores groups the persistence collaborators the managers share.
type stores struct {
	users    auth.UserDirectory
	codes    auth.CredentialCodeStore
	sessions auth.SessionStore
	tx       auth.Transactor
}

// app holds the wired managers for one command invocation.
type app struct {
	logger   *slog.Logger
	users    auth.UserDirectory
	codes    *auth.CredentialCodeManager
	sessions *auth.DeviceSessionManager
	accounts *auth.AccountService
	closeFn  func()
}

// Close releases the database pool, if any.
func (a *app) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newPostgresApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	pool, err := store.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a, err := newApp(cfg, logger, stores{
		users:    postgres.NewUserDirectory(pool),
		codes:    postgres.NewCodeStore(pool),
		sessions: postgres.NewSessionStore(pool),
		tx:       postgres.NewTransactor(pool),
	}, sender)
	if err != nil {
		pool.Close()
		return nil, err
	}
	a.closeFn = pool.Close
	return a, nil
}

func newApp(cfg *config.Config, logger *slog.Logger, s stores, sender auth.EmailSender) (*app, error) {
	hasher := auth.NewArgon2idHasher()
	opts := []auth.Option{auth.WithLogger(logger)}

	codes, err := auth.NewCredentialCodeManager(s.users, s.codes, s.tx, sender, hasher, auth.CodeTTLs{
		EmailConfirmation: cfg.Codes.EmailConfirmationTTL,
		PasswordRecovery:  cfg.Codes.PasswordRecoveryTTL,
	}, opts...)
	if err != nil {
		return nil, oops.With("operation", "create code manager").Wrap(err)
	}

	sessions, err := auth.NewDeviceSessionManager(s.users, s.sessions, s.tx, hasher, cfg.Sessions.TTL, opts...)
	if err != nil {
		return nil, oops.With("operation", "create session manager").Wrap(err)
	}

	accounts, err := auth.NewAccountService(s.users, hasher, opts...)
	if err != nil {
		return nil, oops.With("operation", "create account service").Wrap(err)
	}

	return &app{
		logger:   logger,
		users:    s.users,
		codes:    codes,
		sessions: sessions,
		accounts: accounts,
	}, nil
}

// newSender delivers over SMTP when a host is configured and logs codes otherwise.
func newSender(cfg *config.Config, logger *slog.Logger) (auth.EmailSender, error) {
	if cfg.Mail.SMTP.Host == "" {
		logger.Warn("mail.smtp.host not set, codes will be logged instead of emailed")
		return mail.NewLogSender(logger), nil
	}

	smtp := mail.SMTPConfig{
		Host:     cfg.Mail.SMTP.Host,
		Port:     cfg.Mail.SMTP.Port,
		Username: cfg.Mail.SMTP.Username,
		Password: cfg.Mail.SMTP.Password,
	}
	sender, err := mail.NewSender(mail.Config{
		From:            cfg.Mail.From,
		SMTP:            smtp,
		ConfirmationURL: cfg.Mail.ConfirmationURL,
		RecoveryURL:     cfg.Mail.RecoveryURL,
	}, mail.NewSMTPTransport(smtp))
	if err != nil {
		return nil, oops.With("operation", "create mail sender").Wrap(err)
	}
	return sender, nil
}
