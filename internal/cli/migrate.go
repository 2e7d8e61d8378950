package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"ecoStepAPI/internal/config"
	"ecoStepAPI/internal/migrations"
	"ecoStepAPI/internal/store"
)

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Example: `  # Apply migrations against DATABASE_URL
  ecoctl migrate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return errors.New("migrate requires the postgres storage driver")
			}

			pool, err := store.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := migrations.Apply(cmd.Context(), pool)
			if err != nil {
				return err
			}
			cmd.Printf("Applied %d migration(s)\n", n)
			return nil
		},
	}
}
