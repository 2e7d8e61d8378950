package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/internal/gamification"
	"ecoStepAPI/internal/user"
)

const userColumns = `
	u.id::text, u.clerk_id, u.email, u.name, u.image_url,
	u.is_premium, u.premium_until, u.stripe_customer_id, u.payment_failed_at,
	u.lifestyle, u.footprint_daily, u.footprint_weekly, u.footprint_monthly,
	u.footprint_total, u.footprint_calculated_at,
	u.points, u.level, u.streak_current, u.streak_longest, u.streak_last_active,
	u.preferences, u.account_status, u.last_login, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		u                 user.User
		clerkID, stripeID *string
		status            string
	)
	err := row.Scan(
		&u.ID, &clerkID, &u.Email, &u.Name, &u.ImageURL,
		&u.IsPremium, &u.PremiumUntil, &stripeID, &u.PaymentFailedAt,
		&u.Lifestyle, &u.Footprint.Daily, &u.Footprint.Weekly, &u.Footprint.Monthly,
		&u.Footprint.Total, &u.Footprint.LastCalculated,
		&u.Points, &u.Level, &u.Streak.Current, &u.Streak.Longest, &u.Streak.LastActiveDate,
		&u.Preferences, &status, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.ClerkID = deref(clerkID)
	u.StripeCustomerID = deref(stripeID)
	u.AccountStatus = user.AccountStatus(status)
	u.Badges = []gamification.Badge{}
	u.Challenges = challenge.States{}
	return &u, nil
}

// loadUser reads one user with badges and challenge states. With
// forUpdate the user row stays locked until the surrounding tx ends.
func (s *Store) loadUser(ctx context.Context, q querier, where string, arg any, forUpdate bool) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE ` + where
	if forUpdate {
		query += ` FOR UPDATE`
	}

	u, err := scanUser(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	badges, err := s.loadBadges(ctx, q, []string{u.ID})
	if err != nil {
		return nil, err
	}
	if b, ok := badges[u.ID]; ok {
		u.Badges = b
	}

	rows, err := q.Query(ctx, `
		SELECT challenge_id::text, status, started_at, progress, completed_at
		FROM user_challenges
		WHERE user_id = $1`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user challenges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     string
			status string
			st     challenge.State
		)
		if err := rows.Scan(&id, &status, &st.StartedAt, &st.Progress, &st.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user challenge: %w", err)
		}
		st.Status = challenge.Status(status)
		u.Challenges[id] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user challenges: %w", err)
	}

	return u, nil
}

func (s *Store) loadBadges(ctx context.Context, q querier, userIDs []string) (map[string][]gamification.Badge, error) {
	rows, err := q.Query(ctx, `
		SELECT user_id::text, name, icon, earned_at
		FROM user_badges
		WHERE user_id = ANY($1::text[]::uuid[])
		ORDER BY earned_at, name`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get badges: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]gamification.Badge)
	for rows.Next() {
		var (
			userID string
			b      gamification.Badge
		)
		if err := rows.Scan(&userID, &b.Name, &b.Icon, &b.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		out[userID] = append(out[userID], b)
	}
	return out, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (
			id, clerk_id, email, name, image_url, lifestyle, preferences,
			level, account_status, last_login, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, nullable(u.ClerkID), u.Email, u.Name, u.ImageURL, u.Lifestyle, u.Preferences,
		u.Level, string(u.AccountStatus), u.LastLogin, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return userConflict(err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.saveUser(ctx, tx, u); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// saveUser writes every mutable field of u. Badges are insert-only and
// challenge states are upserted per challenge.
func (s *Store) saveUser(ctx context.Context, tx pgx.Tx, u *user.User) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET
			clerk_id = $2, email = $3, name = $4, image_url = $5,
			is_premium = $6, premium_until = $7, stripe_customer_id = $8, payment_failed_at = $9,
			lifestyle = $10, footprint_daily = $11, footprint_weekly = $12, footprint_monthly = $13,
			footprint_total = $14, footprint_calculated_at = $15,
			points = $16, level = $17, streak_current = $18, streak_longest = $19, streak_last_active = $20,
			preferences = $21, account_status = $22, last_login = $23, updated_at = NOW()
		WHERE id = $1`,
		u.ID, nullable(u.ClerkID), u.Email, u.Name, u.ImageURL,
		u.IsPremium, u.PremiumUntil, nullable(u.StripeCustomerID), u.PaymentFailedAt,
		u.Lifestyle, u.Footprint.Daily, u.Footprint.Weekly, u.Footprint.Monthly,
		u.Footprint.Total, u.Footprint.LastCalculated,
		u.Points, u.Level, u.Streak.Current, u.Streak.Longest, u.Streak.LastActiveDate,
		u.Preferences, string(u.AccountStatus), u.LastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return userConflict(err)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	batch := &pgx.Batch{}
	for _, b := range u.Badges {
		batch.Queue(`
			INSERT INTO user_badges (user_id, name, icon, earned_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, name) DO NOTHING`,
			u.ID, b.Name, b.Icon, b.EarnedAt)
	}
	for id, st := range u.Challenges {
		batch.Queue(`
			INSERT INTO user_challenges (user_id, challenge_id, status, started_at, progress, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, challenge_id) DO UPDATE SET
				status = EXCLUDED.status,
				progress = EXCLUDED.progress,
				completed_at = EXCLUDED.completed_at`,
			u.ID, id, string(st.Status), st.StartedAt, st.Progress, st.CompletedAt)
	}
	if batch.Len() == 0 {
		return nil
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to save user badges and challenges: %w", err)
		}
	}
	return br.Close()
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	if !validID(id) {
		return nil, apperr.NotFound("User not found")
	}
	return s.loadUser(ctx, s.db, "u.id = $1", id, false)
}

func (s *Store) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	return s.loadUser(ctx, s.db, "u.clerk_id = $1", clerkID, false)
}

func (s *Store) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	return s.loadUser(ctx, s.db, "u.stripe_customer_id = $1", customerID, false)
}

// TopUsersByPoints populates profile, gamification and badge fields only.
func (s *Store) TopUsersByPoints(ctx context.Context, limit int) ([]user.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.account_status = 'active'
		ORDER BY u.points DESC, u.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var (
		users []user.User
		ids   []string
	)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	badges, err := s.loadBadges(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if b, ok := badges[users[i].ID]; ok {
			users[i].Badges = b
		}
	}
	return users, nil
}

func (s *Store) CountUsersAbove(ctx context.Context, points int) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE account_status = 'active' AND points > $1`, points).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (s *Store) ExpirePremium(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE users SET is_premium = FALSE, updated_at = NOW()
		WHERE is_premium AND premium_until IS NOT NULL AND premium_until <= $1
		RETURNING id::text`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire premium: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read expired users: %w", err)
	}
	return ids, nil
}
