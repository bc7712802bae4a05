// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fellowhub/fellowhub/internal/auth"
)

// NewPruneCmd creates the prune subcommand.
func NewPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions and tokens once",
		Args:  cobra.NoArgs,
		RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.CredentialService, _ []string) error {
			report, err := svc.Prune(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d sessions, %d verification tokens, %d reset tokens\n",
				report.Sessions, report.VerificationTokens, report.ResetTokens)
			return nil
		}),
	}
}
