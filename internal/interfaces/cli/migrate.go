package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecocomply/compliance-engine/internal/infrastructure/database/postgres"
)

const defaultMigrationsURL = "file://migrations"

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&source, "source", defaultMigrationsURL,
		"migration source URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConnection(opts, func(conn *postgres.Connection) error {
				if err := conn.Migrate(source); err != nil {
					return err
				}
				printResult(opts, map[string]string{"result": "migrated"}, "Schema is up to date.")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConnection(opts, func(conn *postgres.Connection) error {
				if err := conn.MigrateDown(source); err != nil {
					return err
				}
				printResult(opts, map[string]string{"result": "rolled back"}, "Rolled back one migration.")
				return nil
			})
		},
	})

	return cmd
}

func withConnection(opts *RootOptions, fn func(conn *postgres.Connection) error) error {
	cfg, logger, err := loadRuntime(opts)
	if err != nil {
		return err
	}
	conn, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}
