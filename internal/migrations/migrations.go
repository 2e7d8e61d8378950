package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoStepAPI/pkg/logger"
)

//go:embed sql/*.sql
var files embed.FS

type Migration struct {
	Version string
	SQL     string
}

// Load returns the embedded migrations in version order.
func Load() ([]Migration, error) {
	names, err := fs.Glob(files, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, "sql/"), ".sql")
		out = append(out, Migration{Version: version, SQL: string(body)})
	}
	return out, nil
}

// Apply runs every migration not yet recorded in schema_migrations.
// Each migration runs in its own transaction.
func Apply(ctx context.Context, db *pgxpool.Pool) (int, error) {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	migrations, err := Load()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		done, err := apply(ctx, db, m)
		if err != nil {
			return applied, err
		}
		if done {
			applied++
			logger.Info().Str("version", m.Version).Msg("applied migration")
		}
	}
	return applied, nil
}

func apply(ctx context.Context, db *pgxpool.Pool, m Migration) (bool, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %s: %w", m.Version, err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, m.SQL, pgx.QueryExecModeSimpleProtocol); err != nil {
		return false, fmt.Errorf("migration %s failed: %w", m.Version, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return false, fmt.Errorf("failed to record migration %s: %w", m.Version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
	}
	return true, nil
}
