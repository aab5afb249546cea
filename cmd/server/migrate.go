package main

import (
	"fmt"

	"github.com/evogene-server/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrationRunner(func(runner *database.MigrationRunner) error {
			return runner.Up()
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrationRunner(func(runner *database.MigrationRunner) error {
			return runner.Down()
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrationRunner(func(runner *database.MigrationRunner) error {
			state, err := runner.State()
			if err != nil {
				return err
			}
			if !state.Applied {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", state.Version, state.Dirty)
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func withMigrationRunner(fn func(*database.MigrationRunner) error) error {
	configManager, logger, err := loadConfig()
	if err != nil {
		return err
	}

	runner, err := database.NewMigrationRunner(
		configManager.GetDatabaseConnectionString(),
		configManager.GetDatabaseConfig().MigrationsPath,
		logger,
	)
	if err != nil {
		return err
	}
	defer runner.Close()

	return fn(runner)
}
