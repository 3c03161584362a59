// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/credentia/credentia/internal/auth"
)

// sessionView is the printable form of a session. The token hash is never shown.
type sessionView struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func newSessionView(s *auth.Session) sessionView {
	return sessionView{
		ID:           s.ID.String(),
		DeviceID:     s.DeviceID,
		IP:           s.IP,
		UserAgent:    s.UserAgent,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

func printIssued(w io.Writer, s *auth.Session, token string) {
	fmt.Fprintf(w, "session: %s\n", s.ID)
	fmt.Fprintf(w, "device:  %s\n", s.DeviceID)
	fmt.Fprintf(w, "token:   %s\n", token)
	fmt.Fprintf(w, "expires: %s\n", s.ExpiresAt.UTC().Format(time.RFC3339))
}

// newSessionCmd creates the session command group.
func newSessionCmd(deps cliDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Open, rotate, revoke and list device sessions",
	}
	cmd.AddCommand(
		newSessionLoginCmd(deps),
		newSessionRefreshCmd(deps),
		newSessionLogoutCmd(deps),
		newSessionLogoutOthersCmd(deps),
		newSessionListCmd(deps),
	)
	return cmd
}

func newSessionLoginCmd(deps cliDeps) *cobra.Command {
	var in auth.LoginInput
	cmd := &cobra.Command{
		Use:   "login LOGIN_OR_EMAIL",
		Short: "Verify a password and open a session for a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.LoginOrEmail = args[0]
			return withApp(cmd, deps, func(a *app) error {
				s, token, err := a.sessions.Login(cmd.Context(), in)
				if err != nil {
					return err
				}
				printIssued(cmd.OutOrStdout(), s, token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Password, "password", "", "password")
	cmd.Flags().StringVar(&in.DeviceID, "device", "", "device id (generated when empty)")
	cmd.Flags().StringVar(&in.IP, "ip", "", "client IP recorded on the session")
	cmd.Flags().StringVar(&in.UserAgent, "user-agent", "", "client user agent recorded on the session")
	_ = cmd.MarkFlagRequired("password") //nolint:errcheck // flag registered above
	return cmd
}

func newSessionRefreshCmd(deps cliDeps) *cobra.Command {
	var deviceID, token string
	cmd := &cobra.Command{
		Use:   "refresh USER",
		Short: "Rotate a device's refresh token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, func(a *app) error {
				id, err := resolveUser(cmd, a, args[0])
				if err != nil {
					return err
				}
				s, newToken, err := a.sessions.RefreshSession(cmd.Context(), id, deviceID, token)
				if err != nil {
					return err
				}
				printIssued(cmd.OutOrStdout(), s, newToken)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device id")
	cmd.Flags().StringVar(&token, "token", "", "current refresh token")
	_ = cmd.MarkFlagRequired("device") //nolint:errcheck // flag registered above
	_ = cmd.MarkFlagRequired("token")  //nolint:errcheck // flag registered above
	return cmd
}

func newSessionLogoutCmd(deps cliDeps) *cobra.Command {
	var deviceID string
	cmd := &cobra.Command{
		Use:   "logout USER",
		Short: "Revoke the session of one device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, func(a *app) error {
				id, err := resolveUser(cmd, a, args[0])
				if err != nil {
					return err
				}
				if err := a.sessions.RevokeSession(cmd.Context(), id, deviceID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged out device %s\n", deviceID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device id")
	_ = cmd.MarkFlagRequired("device") //nolint:errcheck // flag registered above
	return cmd
}

func newSessionLogoutOthersCmd(deps cliDeps) *cobra.Command {
	var deviceID string
	cmd := &cobra.Command{
		Use:   "logout-others USER",
		Short: "Revoke every session except the given device's",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, func(a *app) error {
				id, err := resolveUser(cmd, a, args[0])
				if err != nil {
					return err
				}
				n, err := a.sessions.RevokeAllExceptCurrent(cmd.Context(), id, deviceID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked %d session(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device id to keep")
	_ = cmd.MarkFlagRequired("device") //nolint:errcheck // flag registered above
	return cmd
}

func newSessionListCmd(deps cliDeps) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list USER",
		Short: "List active devices, most recently used first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, func(a *app) error {
				id, err := resolveUser(cmd, a, args[0])
				if err != nil {
					return err
				}
				sessions, err := a.sessions.ListActiveDevices(cmd.Context(), id)
				if err != nil {
					return err
				}
				views := make([]sessionView, 0, len(sessions))
				for _, s := range sessions {
					views = append(views, newSessionView(s))
				}
				if jsonOutput {
					return formatSessionsJSON(cmd.OutOrStdout(), views)
				}
				formatSessionsTable(cmd.OutOrStdout(), views)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output sessions as JSON")
	return cmd
}

func formatSessionsJSON(w io.Writer, views []sessionView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(views); err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	return nil
}

func formatSessionsTable(w io.Writer, views []sessionView) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tIP\tUSER AGENT\tLAST ACTIVE\tEXPIRES")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			v.DeviceID,
			dash(v.IP),
			dash(v.UserAgent),
			v.LastActiveAt.UTC().Format(time.RFC3339),
			v.ExpiresAt.UTC().Format(time.RFC3339),
		)
	}
	_ = tw.Flush() //nolint:errcheck // writer errors surface on the underlying stream
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
