package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ecoStepAPI/internal/repository"
)

func (s *Store) UpsertDevice(ctx context.Context, d repository.Device) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_devices (token, user_id, platform, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			updated_at = NOW()`,
		d.Token, d.UserID, d.Platform)
	if err != nil {
		return fmt.Errorf("failed to save device token: %w", err)
	}
	return nil
}

func (s *Store) ListDevices(ctx context.Context, userID string) ([]repository.Device, error) {
	if !validID(userID) {
		return []repository.Device{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT user_id::text, token, platform, updated_at FROM user_devices
		WHERE user_id = $1
		ORDER BY token`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	devices, err := pgx.CollectRows(rows, pgx.RowToStructByPos[repository.Device])
	if err != nil {
		return nil, fmt.Errorf("failed to read devices: %w", err)
	}
	return devices, nil
}

func (s *Store) DeleteDeviceToken(ctx context.Context, token string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM user_devices WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete device token: %w", err)
	}
	return nil
}
