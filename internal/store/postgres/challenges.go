package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/challenge"
)

const challengeColumns = `
	id::text, title, description, category, difficulty, duration_days, points,
	carbon_saved, icon, is_premium, is_featured, is_active, tips, tags,
	total_participants, total_completions, created_at, updated_at`

func scanChallenge(row pgx.Row) (*challenge.Definition, error) {
	var (
		d                    challenge.Definition
		category, difficulty string
	)
	err := row.Scan(
		&d.ID, &d.Title, &d.Description, &category, &difficulty, &d.DurationDays, &d.Points,
		&d.CarbonSaved, &d.Icon, &d.IsPremium, &d.IsFeatured, &d.IsActive, &d.Tips, &d.Tags,
		&d.Stats.TotalParticipants, &d.Stats.TotalCompletions, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Category = challenge.Category(category)
	d.Difficulty = challenge.Difficulty(difficulty)
	return &d, nil
}

func (s *Store) CreateChallenge(ctx context.Context, d *challenge.Definition) error {
	tips, tags := d.Tips, d.Tags
	if tips == nil {
		tips = []string{}
	}
	if tags == nil {
		tags = []string{}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO challenges (
			id, title, description, category, difficulty, duration_days, points,
			carbon_saved, icon, is_premium, is_featured, is_active, tips, tags,
			total_participants, total_completions, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		d.ID, d.Title, d.Description, string(d.Category), string(d.Difficulty), d.DurationDays, d.Points,
		d.CarbonSaved, d.Icon, d.IsPremium, d.IsFeatured, d.IsActive, tips, tags,
		d.Stats.TotalParticipants, d.Stats.TotalCompletions, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("Challenge already exists")
		}
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

func (s *Store) getChallenge(ctx context.Context, where string, arg any) (*challenge.Definition, error) {
	d, err := scanChallenge(s.db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Challenge not found")
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return d, nil
}

func (s *Store) GetChallenge(ctx context.Context, id string) (*challenge.Definition, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Challenge not found")
	}
	return s.getChallenge(ctx, "id = $1", id)
}

func (s *Store) GetChallengeByTitle(ctx context.Context, title string) (*challenge.Definition, error) {
	return s.getChallenge(ctx, "title = $1", title)
}

func (s *Store) GetChallenges(ctx context.Context, ids []string) (map[string]challenge.Definition, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	out := make(map[string]challenge.Definition, len(valid))
	if len(valid) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE id = ANY($1::text[]::uuid[])`, valid)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out[d.ID] = *d
	}
	return out, rows.Err()
}

func (s *Store) ListChallenges(ctx context.Context, f challenge.Filter) ([]challenge.Definition, error) {
	conds := []string{"is_active"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" {
		conds = append(conds, "category = "+arg(string(f.Category)))
	}
	if len(f.Categories) > 0 {
		cats := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			cats[i] = string(c)
		}
		conds = append(conds, "category = ANY("+arg(cats)+"::text[])")
	}
	if f.Difficulty != "" {
		conds = append(conds, "difficulty = "+arg(string(f.Difficulty)))
	}
	if !f.IncludePremium {
		conds = append(conds, "NOT is_premium")
	}
	if f.FeaturedOnly {
		conds = append(conds, "is_featured")
	}
	if len(f.ExcludeIDs) > 0 {
		conds = append(conds, "NOT (id::text = ANY("+arg(f.ExcludeIDs)+"::text[]))")
	}

	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY total_participants DESC, title`
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	out := []challenge.Definition{}
	for rows.Next() {
		d, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read challenges: %w", err)
	}
	return out, nil
}
