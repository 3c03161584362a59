// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type accountFlags struct {
	login    string
	email    string
	password string
}

func (f *accountFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.login, "login", "", "login name (3-10 letters, digits, _ or -)")
	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	cmd.Flags().StringVar(&f.password, "password", "", "password")
	for _, name := range []string{"login", "email", "password"} {
		_ = cmd.MarkFlagRequired(name) //nolint:errcheck // flag registered above
	}
}

// newUserCmd creates the user command group.
func newUserCmd(deps cliDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create and delete accounts",
	}

	var reg accountFlags
	register := &cobra.Command{
		Use:   "register",
		Short: "Register an unconfirmed account and email its confirmation code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, func(a *app) error {
				user, err := a.codes.Register(cmd.Context(), reg.login, reg.email, reg.password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s); confirmation code sent to %s\n",
					user.Login, user.ID, user.Email)
				return nil
			})
		},
	}
	reg.register(register)
	cmd.AddCommand(register)

	var create accountFlags
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with its email already confirmed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, func(a *app) error {
				user, err := a.accounts.CreateUser(cmd.Context(), create.login, create.email, create.password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", user.Login, user.ID)
				return nil
			})
		},
	}
	create.register(createCmd)
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete USER",
		Short: "Soft-delete an account by id, login or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, func(a *app) error {
				id, err := resolveUser(cmd, a, args[0])
				if err != nil {
					return err
				}
				if err := a.accounts.DeleteUser(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				return nil
			})
		},
	})

	return cmd
}
