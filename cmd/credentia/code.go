// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCodeCmd creates the code command group covering confirmation and
// recovery codes.
func newCodeCmd(deps cliDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Issue and redeem confirmation and recovery codes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "issue USER",
		Short: "Issue a fresh confirmation code for a user and email it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, func(a *app) error {
				id, err := resolveUser(cmd, a, args[0])
				if err != nil {
					return err
				}
				if err := a.codes.IssueConfirmationCode(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Confirmation code sent")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "confirm CODE",
		Short: "Confirm a registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, func(a *app) error {
				if err := a.codes.ConfirmRegistration(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Email confirmed")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resend EMAIL",
		Short: "Resend the confirmation code for an unconfirmed account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, func(a *app) error {
				if err := a.codes.ResendConfirmation(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Confirmation code sent")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "recover EMAIL",
		Short: "Email a password recovery code",
		Long: `Email a password recovery code. The command reports success for
unknown addresses too, so its output never reveals whether an account exists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, func(a *app) error {
				if err := a.codes.RequestPasswordRecovery(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "If the address is registered, a recovery code was sent")
				return nil
			})
		},
	})

	var newPassword string
	reset := &cobra.Command{
		Use:   "reset-password CODE",
		Short: "Set a new password using a recovery code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, func(a *app) error {
				if err := a.codes.ConfirmNewPassword(cmd.Context(), args[0], newPassword); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Password updated")
				return nil
			})
		},
	}
	reset.Flags().StringVar(&newPassword, "password", "", "new password")
	_ = reset.MarkFlagRequired("password") //nolint:errcheck // flag registered above
	cmd.AddCommand(reset)

	return cmd
}
