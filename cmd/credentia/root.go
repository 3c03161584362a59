// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package main

import (
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/credentia/credentia/internal/auth"
	"github.com/credentia/credentia/internal/config"
	"github.com/credentia/credentia/internal/logging"
)

const serviceName = "credentia"

// NewRootCmd creates the root command for the Credentia CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(cliDeps{})
}

func newRootCmd(deps cliDeps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "credentia",
		Short: "Credentia - account credential administration",
		Long: `Credentia manages account credentials: registration with email
confirmation, password recovery codes, and per-device refresh sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newUserCmd(deps))
	cmd.AddCommand(newCodeCmd(deps))
	cmd.AddCommand(newSessionCmd(deps))

	return cmd
}

// loadConfig reads and validates configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp loads config, sets up logging and wires the managers.
func openApp(cmd *cobra.Command, deps cliDeps) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	return deps.AppFactory(cmd.Context(), cfg, logger)
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(cmd *cobra.Command, deps cliDeps, fn func(a *app) error) error {
	a, err := openApp(cmd, deps)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// resolveUser accepts a user id, login or email.
func resolveUser(cmd *cobra.Command, a *app, ref string) (ulid.ULID, error) {
	if id, err := ulid.ParseStrict(ref); err == nil {
		return id, nil
	}
	user, err := a.users.FindByLoginOrEmail(cmd.Context(), ref)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return ulid.ULID{}, auth.ErrUserNotFound(ref)
		}
		return ulid.ULID{}, err
	}
	return user.ID, nil
}
