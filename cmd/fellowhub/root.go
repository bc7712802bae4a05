// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fellowhub/fellowhub/internal/config"
	"github.com/fellowhub/fellowhub/internal/logging"
	"github.com/fellowhub/fellowhub/internal/xdg"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the FellowHub CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fellowhub",
		Short: "FellowHub - accounts and sessions for the FellowHub community",
		Long: `FellowHub serves the account API: signup, login, sessions,
password recovery and email verification.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded when present")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewKeygenCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewPruneCmd())

	return cmd
}

// loadConfig reads configuration for cmd, honoring the flags it bound with
// config.BindFlag.
// Without --config, $XDG_CONFIG_HOME/fellowhub/config.yaml is used when it
// exists.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file := configFile
	if file == "" {
		var err error
		if file, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(config.LoadOptions{
		File:   file,
		DotEnv: envFile,
		Flags:  cmd.Flags(),
	})
}

// setupLogging installs the default logger described by cfg.
func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	return logging.SetDefault(logging.Options{
		Service: "fellowhub",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  os.Stderr,
	})
}

// bindLogFlags adds --log-format and --log-level to cmd.
func bindLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-format", "json", "log format (json or text)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	config.BindFlag(cmd.Flags(), "log-format", "log.format")
	config.BindFlag(cmd.Flags(), "log-level", "log.level")
}
