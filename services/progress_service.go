package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"ecoStepAPI/internal/aggregate"
	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/carbon"
	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/internal/gamification"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/repository"
)

const (
	recentBadgeCount    = 5
	defaultHistoryLimit = 30
	defaultChartPeriod  = 30
)

type ProgressService struct {
	store      repository.Store
	challenges *ChallengeService
	loc        *time.Location
	now        Clock
}

func NewProgressService(store repository.Store, challenges *ChallengeService, loc *time.Location) *ProgressService {
	return &ProgressService{store: store, challenges: challenges, loc: location(loc), now: time.Now}
}

func (s *ProgressService) SetClock(c Clock) { s.now = c }

type DashboardUser struct {
	Name      string              `json:"name"`
	Points    int                 `json:"points"`
	Level     int                 `json:"level"`
	Streak    gamification.Streak `json:"streak"`
	IsPremium bool                `json:"isPremium"`
}

type Dashboard struct {
	User             DashboardUser          `json:"user"`
	Today            *ledger.Entry          `json:"today"`
	ThisWeek         aggregate.WeekSummary  `json:"thisWeek"`
	ActiveChallenges []ActiveChallenge      `json:"activeChallenges"`
	DailyChallenges  []challenge.Definition `json:"dailyChallenges"`
	CarbonFootprint  carbon.Footprint       `json:"carbonFootprint"`
	RecentBadges     []gamification.Badge   `json:"recentBadges"`
}

// Dashboard reads independent pieces concurrently. The result is a
// snapshot and may straddle a concurrent write.
func (s *ProgressService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	d := &Dashboard{
		User: DashboardUser{
			Name:      u.Name,
			Points:    u.Points,
			Level:     u.Level,
			Streak:    u.Streak,
			IsPremium: u.HasPremium(now),
		},
		CarbonFootprint: u.Footprint,
		RecentBadges:    gamification.Recent(u.Badges, recentBadgeCount),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entry, err := s.store.GetEntry(gctx, userID, ledger.Day(now, s.loc))
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		d.Today = entry
		return err
	})
	g.Go(func() error {
		week, err := s.store.ListEntries(gctx, userID, repository.EntryQuery{From: ledger.WeekStart(now, s.loc)})
		if err != nil {
			return err
		}
		d.ThisWeek = aggregate.Week(week)
		return nil
	})
	g.Go(func() error {
		active, err := s.challenges.activeFor(gctx, u)
		d.ActiveChallenges = active
		return err
	})
	g.Go(func() error {
		daily, err := s.challenges.dailyFor(gctx, u)
		d.DailyChallenges = daily
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

type HistoryQuery struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// History returns entries newest first, bounded by whole local days.
func (s *ProgressService) History(ctx context.Context, userID string, q HistoryQuery) ([]ledger.Entry, error) {
	eq := repository.EntryQuery{Limit: q.Limit, NewestFirst: true}
	if eq.Limit <= 0 {
		eq.Limit = defaultHistoryLimit
	}
	if q.StartDate != nil {
		eq.From = ledger.Day(*q.StartDate, s.loc)
	}
	if q.EndDate != nil {
		eq.To = ledger.Day(*q.EndDate, s.loc)
	}
	if !eq.From.IsZero() && !eq.To.IsZero() && eq.To.Before(eq.From) {
		return nil, apperr.Validation("endDate must not be before startDate")
	}
	return s.store.ListEntries(ctx, userID, eq)
}

type Milestones struct {
	Points              int `json:"points"`
	Level               int `json:"level"`
	CurrentStreak       int `json:"currentStreak"`
	LongestStreak       int `json:"longestStreak"`
	Badges              int `json:"badges"`
	CompletedChallenges int `json:"completedChallenges"`
	PointsToNextLevel   int `json:"pointsToNextLevel"`
}

type ProgressStats struct {
	Overview          aggregate.Overview   `json:"overview"`
	CategoryBreakdown ledger.Breakdown     `json:"categoryBreakdown"`
	MonthlyComparison aggregate.Comparison `json:"monthlyComparison"`
	Milestones        Milestones           `json:"milestones"`
}

func (s *ProgressService) Stats(ctx context.Context, userID string) (*ProgressStats, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, userID, repository.EntryQuery{NewestFirst: true})
	if err != nil {
		return nil, err
	}

	return &ProgressStats{
		Overview:          aggregate.Summarize(entries),
		CategoryBreakdown: aggregate.CategoryTotals(entries),
		MonthlyComparison: aggregate.MonthlyComparison(entries),
		Milestones: Milestones{
			Points:              u.Points,
			Level:               u.Level,
			CurrentStreak:       u.Streak.Current,
			LongestStreak:       u.Streak.Longest,
			Badges:              len(u.Badges),
			CompletedChallenges: u.Challenges.CountCompleted(),
			PointsToNextLevel:   u.Level*gamification.PointsPerLevel - u.Points,
		},
	}, nil
}

// Charts starts at local midnight period days ago, oldest first.
func (s *ProgressService) Charts(ctx context.Context, userID string, period int) (*aggregate.Charts, error) {
	if period <= 0 {
		period = defaultChartPeriod
	}
	if period > maxHistoryPeriod {
		period = maxHistoryPeriod
	}

	entries, err := s.store.ListEntries(ctx, userID, repository.EntryQuery{
		From: ledger.DaysAgo(s.now(), period, s.loc),
	})
	if err != nil {
		return nil, err
	}

	charts := aggregate.BuildCharts(entries)
	return &charts, nil
}
