package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoStepAPI/internal/aggregate"
	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/migrations"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/user"
)

// setupTestDB needs TEST_DATABASE_URL pointing at a disposable database.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, PoolConfig{URL: dbURL, MaxConns: 10, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = migrations.Apply(ctx, db)
	require.NoError(t, err)
	return db
}

func seed(t *testing.T, s *Store) (*user.User, *challenge.Definition) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := user.New(uuid.NewString(), uuid.NewString()+"@example.com", "Test User", now)
	require.NoError(t, s.CreateUser(ctx, u))

	d := &challenge.Definition{
		ID:           uuid.NewString(),
		Title:        "Test challenge " + uuid.NewString(),
		Description:  "integration",
		Category:     challenge.CategoryEnergy,
		Difficulty:   challenge.DifficultyEasy,
		DurationDays: 1,
		Points:       50,
		CarbonSaved:  1.5,
		Icon:         "💡",
		IsActive:     true,
		Tips:         []string{"one"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateChallenge(ctx, d))
	return u, d
}

func TestUserRoundTrip(t *testing.T) {
	s := New(setupTestDB(t), time.UTC)
	ctx := context.Background()
	u, _ := seed(t, s)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.Lifestyle, got.Lifestyle)
	assert.Equal(t, 1, got.Level)

	err = s.CreateUser(ctx, u)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = s.GetUser(ctx, "not-a-uuid")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestWithinUserPersistsEverything(t *testing.T) {
	s := New(setupTestDB(t), time.UTC)
	ctx := context.Background()
	u, d := seed(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	err := s.WithinUser(ctx, u.ID, func(ctx context.Context, tx repository.UserTx) error {
		if err := tx.User().Challenges.Start(d.ID, now); err != nil {
			return err
		}
		if err := tx.User().Challenges.Complete(d.ID, now); err != nil {
			return err
		}
		tx.User().AddPoints(d.Points)

		e, err := tx.Entry(ctx, now)
		if err != nil {
			return err
		}
		if err := e.RecordCarbon(ledger.Breakdown{Transportation: 1, Energy: 2, Diet: 3, Shopping: 4}); err != nil {
			return err
		}
		e.RecordCompletion(ledger.Completion{ChallengeID: d.ID, PointsEarned: d.Points, CarbonSaved: d.CarbonSaved, CompletedAt: now})

		if err := tx.AddParticipant(ctx, d.ID); err != nil {
			return err
		}
		return tx.AddCompletion(ctx, d.ID)
	})
	require.NoError(t, err)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Points)
	assert.True(t, got.Challenges.IsCompleted(d.ID))

	e, err := s.GetEntry(ctx, u.ID, now)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, e.Carbon.Total, 1e-9)
	assert.Len(t, e.Completions, 1)

	c, err := s.GetChallenge(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Stats.TotalParticipants)
	assert.Equal(t, int64(1), c.Stats.TotalCompletions)

	weekly, err := s.WeeklyTotals(ctx, ledger.DaysAgo(now, 1, time.UTC), 0)
	require.NoError(t, err)
	rank := aggregate.RankOf(weekly, u.ID)
	require.NotZero(t, rank)
	assert.Equal(t, 50, weekly[rank-1].WeeklyPoints)
}

func TestWithinUserSerializesConcurrentWriters(t *testing.T) {
	s := New(setupTestDB(t), time.UTC)
	ctx := context.Background()
	u, _ := seed(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinUser(ctx, u.ID, func(ctx context.Context, tx repository.UserTx) error {
				tx.User().AddPoints(10)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, got.Points)
}

func TestUnknownChallengeCounter(t *testing.T) {
	s := New(setupTestDB(t), time.UTC)
	ctx := context.Background()
	u, _ := seed(t, s)

	err := s.WithinUser(ctx, u.ID, func(ctx context.Context, tx repository.UserTx) error {
		return tx.AddCompletion(ctx, uuid.NewString())
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestWithinUserRejectsTakenEmail(t *testing.T) {
	s := New(setupTestDB(t), time.UTC)
	ctx := context.Background()
	a, _ := seed(t, s)
	b, _ := seed(t, s)

	err := s.WithinUser(ctx, b.ID, func(ctx context.Context, tx repository.UserTx) error {
		tx.User().Email = a.Email
		return nil
	})
	require.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "Email already registered", apperr.Message(err))

	got, err := s.GetUser(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Email, got.Email)
}
