package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ecoStepAPI/internal/aggregate"
	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/repository"
)

const entryColumns = `
	user_id::text, day, transportation, energy, diet, shopping, total,
	points_earned, activities, completions, recommendations, created_at, updated_at`

func (s *Store) scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var (
		e   ledger.Entry
		day time.Time
	)
	err := row.Scan(
		&e.UserID, &day, &e.Carbon.Transportation, &e.Carbon.Energy, &e.Carbon.Diet,
		&e.Carbon.Shopping, &e.Carbon.Total, &e.PointsEarned,
		&e.Activities, &e.Completions, &e.Recommendations, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Date = ledger.DayFromDate(day, s.loc)
	if e.Activities == nil {
		e.Activities = []ledger.Activity{}
	}
	if e.Completions == nil {
		e.Completions = []ledger.Completion{}
	}
	if e.Recommendations == nil {
		e.Recommendations = []ledger.Recommendation{}
	}
	if err := e.Verify(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) dateParam(day time.Time) string {
	return ledger.Day(day, s.loc).Format(time.DateOnly)
}

func (s *Store) getEntry(ctx context.Context, q querier, userID string, day time.Time) (*ledger.Entry, error) {
	e, err := s.scanEntry(q.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM daily_ledger
		WHERE user_id = $1 AND day = $2::date`, userID, s.dateParam(day)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("No entry for this day")
		}
		if errors.Is(err, ledger.ErrInconsistent) {
			return nil, apperr.Internal("failed to load ledger entry", err)
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return e, nil
}

func (s *Store) GetEntry(ctx context.Context, userID string, day time.Time) (*ledger.Entry, error) {
	if !validID(userID) {
		return nil, apperr.NotFound("No entry for this day")
	}
	return s.getEntry(ctx, s.db, userID, day)
}

func (s *Store) ListEntries(ctx context.Context, userID string, q repository.EntryQuery) ([]ledger.Entry, error) {
	out := []ledger.Entry{}
	if !validID(userID) {
		return out, nil
	}

	query := `SELECT ` + entryColumns + ` FROM daily_ledger WHERE user_id = $1`
	args := []any{userID}
	if !q.From.IsZero() {
		args = append(args, s.dateParam(q.From))
		query += fmt.Sprintf(" AND day >= $%d::date", len(args))
	}
	if !q.To.IsZero() {
		args = append(args, s.dateParam(q.To))
		query += fmt.Sprintf(" AND day <= $%d::date", len(args))
	}
	if q.NewestFirst {
		query += " ORDER BY day DESC"
	} else {
		query += " ORDER BY day ASC"
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			if errors.Is(err, ledger.ErrInconsistent) {
				return nil, apperr.Internal("failed to load ledger entry", err)
			}
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}
	return out, nil
}

func (s *Store) saveEntry(ctx context.Context, tx pgx.Tx, e *ledger.Entry) error {
	if err := e.Verify(); err != nil {
		return apperr.Internal("refusing to save ledger entry", err)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO daily_ledger (
			user_id, day, transportation, energy, diet, shopping, total,
			points_earned, carbon_saved, completion_count,
			activities, completions, recommendations, created_at, updated_at
		) VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		ON CONFLICT (user_id, day) DO UPDATE SET
			transportation = EXCLUDED.transportation,
			energy = EXCLUDED.energy,
			diet = EXCLUDED.diet,
			shopping = EXCLUDED.shopping,
			total = EXCLUDED.total,
			points_earned = EXCLUDED.points_earned,
			carbon_saved = EXCLUDED.carbon_saved,
			completion_count = EXCLUDED.completion_count,
			activities = EXCLUDED.activities,
			completions = EXCLUDED.completions,
			recommendations = EXCLUDED.recommendations,
			updated_at = NOW()`,
		e.UserID, s.dateParam(e.Date), e.Carbon.Transportation, e.Carbon.Energy, e.Carbon.Diet,
		e.Carbon.Shopping, e.Carbon.Total, e.PointsEarned, e.CarbonSaved(), len(e.Completions),
		e.Activities, e.Completions, e.Recommendations,
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger entry: %w", err)
	}
	return nil
}

func (s *Store) WeeklyTotals(ctx context.Context, since time.Time, limit int) ([]aggregate.WeeklyTotal, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.db.Query(ctx, `
		SELECT
			l.user_id::text,
			COALESCE(SUM(l.points_earned), 0),
			COALESCE(SUM(l.completion_count), 0),
			COALESCE(SUM(l.carbon_saved), 0)
		FROM daily_ledger l
		JOIN users u ON u.id = l.user_id
		WHERE l.day >= $1::date AND u.account_status = 'active'
		GROUP BY l.user_id
		ORDER BY 2 DESC, 1 ASC
		LIMIT $2`, s.dateParam(since), lim)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly totals: %w", err)
	}
	defer rows.Close()

	totals := []aggregate.WeeklyTotal{}
	for rows.Next() {
		var t aggregate.WeeklyTotal
		if err := rows.Scan(&t.UserID, &t.WeeklyPoints, &t.ChallengesCompleted, &t.CarbonSaved); err != nil {
			return nil, fmt.Errorf("failed to scan weekly total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read weekly totals: %w", err)
	}
	aggregate.SortWeekly(totals)
	return totals, nil
}
