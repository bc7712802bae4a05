// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fellowhub/fellowhub/internal/config"
	"github.com/fellowhub/fellowhub/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL migrations.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")
	config.BindFlag(cmd.PersistentFlags(), "database-url", "database.url")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator) error {
			pending, err := m.Pending()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				cmd.Println("Schema is up to date")
				return nil
			}
			for _, v := range pending {
				name, _ := store.MigrationName(v) //nolint:errcheck // pending versions come from the embedded set
				cmd.Printf("Applying %s\n", name)
			}
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Long:  `Roll back every migration. All FellowHub tables and their data are dropped.`,
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("All migrations rolled back")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if version == 0 {
				cmd.Println("No migrations applied")
				return nil
			}
			name, err := store.MigrationName(version)
			if err != nil {
				name = "unknown"
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			cmd.Printf("Version %d (%s, %s)\n", version, name, state)
			return nil
		}),
	})

	return cmd
}

// withMigrator loads database.url and hands an open Migrator to fn.
func withMigrator(fn func(cmd *cobra.Command, m *store.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").
				With("key", "database.url").
				Errorf("database.url is required (set FELLOWHUB_DATABASE__URL or --database-url)")
		}

		m, err := store.NewMigrator(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				cmd.PrintErrf("warning: %v\n", closeErr)
			}
		}()
		return fn(cmd, m)
	}
}
