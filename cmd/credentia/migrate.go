// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/credentia/credentia/internal/store"
)

// newMigrateCmd creates the migrate command group.
func newMigrateCmd(deps cliDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the credential database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m schemaMigrator) error {
				pending, err := m.PendingMigrations()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
					return nil
				}
				if err := m.Up(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", len(pending))
				return nil
			})
		},
	})

	var confirmed bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping all credential data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return oops.Code("CONFIRMATION_REQUIRED").
					Errorf("migrate down drops all credential data; pass --yes to proceed")
			}
			return withMigrator(cmd, deps, func(m schemaMigrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirmed, "yes", false, "confirm dropping all credential data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m schemaMigrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				line := strconv.FormatUint(uint64(v), 10)
				if dirty {
					line += " (dirty)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m schemaMigrator) error {
				return printMigrationStatus(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Record VERSION as applied without running migrations",
		Long: `Record VERSION as applied without running anything. Use this to
clear a dirty state after repairing the schema by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m schemaMigrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forced version %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, deps cliDeps, fn func(m schemaMigrator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return err
	}
	runErr := fn(m)
	if err := m.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func printMigrationStatus(cmd *cobra.Command, m schemaMigrator) error {
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, group := range []struct {
		label    string
		versions []uint
	}{{"applied", applied}, {"pending", pending}} {
		for _, v := range group.versions {
			name, err := store.MigrationName(v)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-8s %s\n", group.label, name)
		}
	}
	return nil
}

func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("version", s).Wrap(err)
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("version", s).Errorf("version must be non-negative")
	}
	return v, nil
}
