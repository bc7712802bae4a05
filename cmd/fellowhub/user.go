// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fellowhub/fellowhub/internal/app"
	"github.com/fellowhub/fellowhub/internal/auth"
)

// NewUserCmd creates the user administration subcommands.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer user accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "unlock <email>",
		Short: "Clear a lockout and the failed-login counter",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.CredentialService, args []string) error {
			if err := svc.UnlockUser(ctx, args[0]); err != nil {
				return err
			}
			cmd.Printf("Unlocked %s\n", args[0])
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "deactivate <email>",
		Short: "Deactivate an account and revoke its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.CredentialService, args []string) error {
			if err := svc.DeactivateUser(ctx, args[0]); err != nil {
				return err
			}
			cmd.Printf("Deactivated %s\n", args[0])
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set-role <email> <role>",
		Short:     "Change an account's role and revoke its sessions",
		Args:      cobra.ExactArgs(2),
		ValidArgs: roleNames(),
		RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.CredentialService, args []string) error {
			if err := svc.ChangeRole(ctx, args[0], auth.Role(args[1])); err != nil {
				return err
			}
			cmd.Printf("Set role of %s to %s\n", args[0], args[1])
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sessions <email>",
		Short: "List an account's sessions",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.CredentialService, args []string) error {
			sessions, err := svc.ListUserSessions(ctx, args[0])
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				cmd.Printf("No sessions for %s\n", args[0])
				return nil
			}
			cmd.Print(formatSessionsTable(sessions, time.Now()))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke-session <email> <session-id>",
		Short: "Revoke one session of an account",
		Args:  cobra.ExactArgs(2),
		RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.CredentialService, args []string) error {
			if err := svc.RevokeUserSession(ctx, args[0], args[1]); err != nil {
				return err
			}
			cmd.Printf("Revoked session %s\n", args[1])
			return nil
		}),
	})

	return cmd
}

// formatSessionsTable renders sessions as a human-readable table.
func formatSessionsTable(sessions []*auth.Session, now time.Time) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tDEVICE\tIP\tCREATED\tLAST ACTIVE\tEXPIRES")
	for _, sess := range sessions {
		status := "active"
		switch {
		case !sess.IsValid:
			status = "revoked"
		case sess.IsExpiredAt(now):
			status = "expired"
		}
		device := sess.Device
		if device == "" {
			device = "-"
		}
		ip := sess.IPAddress
		if ip == "" {
			ip = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sess.ID, status, device, ip,
			sess.CreatedAt.UTC().Format(time.RFC3339),
			sess.LastActivity.UTC().Format(time.RFC3339),
			sess.ExpiresAt.UTC().Format(time.RFC3339))
	}
	_ = w.Flush()
	return sb.String()
}

func roleNames() []string {
	roles := auth.Roles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}

type serviceFunc func(ctx context.Context, cmd *cobra.Command, svc *auth.CredentialService, args []string) error

// withService wires the application from config and runs fn against its
// credential service.
func withService(fn serviceFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := setupLogging(cfg)
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg, app.Options{Logger: logger})
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), cmd, a.Service(), args)
	}
}
