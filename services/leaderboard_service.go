package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"ecoStepAPI/internal/aggregate"
	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/metrics"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/pkg/logger"
)

const (
	defaultGlobalLimit = 100
	defaultWeeklyLimit = 50
	maxLeaderboard     = 500
	profileFetchLimit  = 8
)

type LeaderboardService struct {
	store repository.Store
	cache LeaderboardCache
	loc   *time.Location
	now   Clock
}

func NewLeaderboardService(store repository.Store, loc *time.Location) *LeaderboardService {
	return &LeaderboardService{store: store, loc: location(loc), now: time.Now}
}

func (s *LeaderboardService) SetClock(c Clock) { s.now = c }
func (s *LeaderboardService) SetCache(c LeaderboardCache) { s.cache = c }

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Points     int    `json:"points"`
	Level      int    `json:"level"`
	Streak     int    `json:"streak"`
	BadgeCount int    `json:"badgeCount"`
}

type GlobalLeaderboard struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	UserRank    int                `json:"userRank"`
}

// Global ranks active users by points. Equal points share a rank, which
// matches the requesting user's rank formula.
func (s *LeaderboardService) Global(ctx context.Context, userID string, limit int) (*GlobalLeaderboard, error) {
	limit = clampLimit(limit, defaultGlobalLimit)

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.globalEntries(ctx, limit)
	if err != nil {
		return nil, err
	}

	above, err := s.store.CountUsersAbove(ctx, u.Points)
	if err != nil {
		return nil, err
	}

	return &GlobalLeaderboard{Leaderboard: entries, UserRank: aggregate.GlobalRank(above)}, nil
}

func (s *LeaderboardService) globalEntries(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if s.cache != nil {
		var cached []LeaderboardEntry
		hit, err := s.cache.Get(ctx, limit, &cached)
		switch {
		case err != nil:
			metrics.LeaderboardCache.WithLabelValues("error").Inc()
			logger.Warn().Err(err).Msg("leaderboard cache read failed")
		case hit:
			metrics.LeaderboardCache.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.LeaderboardCache.WithLabelValues("miss").Inc()
		}
	}

	users, err := s.store.TopUsersByPoints(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		rank := i + 1
		if i > 0 && users[i-1].Points == u.Points {
			rank = entries[i-1].Rank
		}
		entries = append(entries, LeaderboardEntry{
			Rank:       rank,
			UserID:     u.ID,
			Name:       u.Name,
			ImageURL:   u.ImageURL,
			Points:     u.Points,
			Level:      u.Level,
			Streak:     u.Streak.Current,
			BadgeCount: len(u.Badges),
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, limit, entries); err != nil {
			logger.Warn().Err(err).Msg("leaderboard cache write failed")
		}
	}
	return entries, nil
}

type WeeklyEntry struct {
	Rank int    `json:"rank"`
	Name string `json:"name"`
	aggregate.WeeklyTotal
}

type WeeklyLeaderboard struct {
	WeekStart   time.Time              `json:"weekStart"`
	Leaderboard []WeeklyEntry          `json:"leaderboard"`
	UserRank    int                    `json:"userRank"`
	UserStats   *aggregate.WeeklyTotal `json:"userStats"`
}

// Weekly sums ledger entries since the most recent local Sunday. Users
// without entries this week are unranked (UserRank 0).
func (s *LeaderboardService) Weekly(ctx context.Context, userID string, limit int) (*WeeklyLeaderboard, error) {
	limit = clampLimit(limit, defaultWeeklyLimit)
	start := ledger.WeekStart(s.now(), s.loc)

	ranked, err := s.store.WeeklyTotals(ctx, start, 0)
	if err != nil {
		return nil, err
	}

	lb := &WeeklyLeaderboard{WeekStart: start, UserRank: aggregate.RankOf(ranked, userID)}
	if lb.UserRank > 0 {
		stats := ranked[lb.UserRank-1]
		lb.UserStats = &stats
	}

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	lb.Leaderboard = make([]WeeklyEntry, len(ranked))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileFetchLimit)
	for i, t := range ranked {
		lb.Leaderboard[i] = WeeklyEntry{Rank: i + 1, WeeklyTotal: t}
		g.Go(func() error {
			u, err := s.store.GetUser(gctx, t.UserID)
			if apperr.Is(err, apperr.KindNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			lb.Leaderboard[i].Name = u.Name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lb, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLeaderboard {
		return maxLeaderboard
	}
	return limit
}
