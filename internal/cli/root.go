// Package cli holds the ecoctl operator commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"ecoStepAPI/internal/config"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/store"
	"ecoStepAPI/pkg/logger"
)

// NewRootCmd creates the ecoctl root command with every subcommand
// attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ecoctl",
		Short:         "Operator tools for the EcoStep API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		NewMigrateCmd(),
		NewSeedCmd(),
		NewExpirePremiumCmd(),
		NewTokenCmd(),
	)
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Service.Environment, cfg.Logging.Level)
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg, loc)
}
