// Package store picks the repository implementation named by the
// configuration.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ecoStepAPI/internal/config"
	"ecoStepAPI/internal/migrations"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/store/memory"
	"ecoStepAPI/internal/store/postgres"
	"ecoStepAPI/pkg/logger"
)

// Connect opens the configured Postgres pool.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	return postgres.Connect(ctx, postgres.PoolConfig{
		URL:             cfg.URL,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.ConnMaxLifetime,
		MaxConnIdleTime: 30 * time.Minute,
	})
}

// Open returns the store for cfg.Database.Driver. With auto_migrate the
// Postgres schema is brought up to date first.
func Open(ctx context.Context, cfg *config.Config, loc *time.Location) (repository.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		return memory.New(loc), nil

	case config.DriverPostgres:
		pool, err := Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			n, err := migrations.Apply(ctx, pool)
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to migrate: %w", err)
			}
			logger.Info().Int("applied", n).Msg("database schema up to date")
		}
		return postgres.New(pool, loc), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Database.Driver)
	}
}
