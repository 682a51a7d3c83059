package commands

import (
	"fmt"

	"viewbot/internal/config"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the command applying the Postgres schema
func NewMigrateCommand() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the postgres storage driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.Storage.Driver != config.StoragePostgres {
				return fmt.Errorf("migrate requires STORAGE_DRIVER=%s", config.StoragePostgres)
			}

			logger, err := config.NewLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync()

			db, err := connectDatabase(cmd.Context(), cfg.DSN(), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return runMigrations(db, down, logger)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back all migrations")

	return cmd
}
