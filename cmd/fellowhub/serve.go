// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/fellowhub/fellowhub/internal/app"
	"github.com/fellowhub/fellowhub/internal/config"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP account API, the metrics and health server, and the
background pruner. Runs until interrupted.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "API listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().Bool("migrate", false, "apply pending migrations before serving")
	config.BindFlag(cmd.Flags(), "addr", "server.addr")
	config.BindFlag(cmd.Flags(), "metrics-addr", "server.metrics_addr")
	config.BindFlag(cmd.Flags(), "migrate", "database.auto_migrate")
	bindLogFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	logger.Info("starting fellowhub",
		"version", version,
		"addr", cfg.Server.Addr,
		"log_format", cfg.Log.Format,
	)

	a, err := app.New(cmd.Context(), cfg, app.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Run(cmd.Context()); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
