// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package main

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fellowhub/fellowhub/internal/token"
)

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a random token secret",
		Long: `Print a random hex-encoded secret suitable for auth.token_secret
(FELLOWHUB_AUTH__TOKEN_SECRET).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := make([]byte, token.MinSecretLength)
			if _, err := rand.Read(secret); err != nil {
				return oops.Code("KEYGEN_FAILED").Wrap(err)
			}
			cmd.Println(hex.EncodeToString(secret))
			return nil
		},
	}
}
