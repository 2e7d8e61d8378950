package services

import (
	"context"
	"math/rand/v2"
	"time"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/carbon"
	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/internal/events"
	"ecoStepAPI/internal/gamification"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/metrics"
	"ecoStepAPI/internal/notification"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/user"
	"ecoStepAPI/pkg/logger"
)

const (
	catalogLimit        = 50
	featuredLimit       = 10
	dailyChallengeCount = 3
)

type ChallengeService struct {
	store    repository.Store
	loc      *time.Location
	now      Clock
	shuffle  func(n int, swap func(i, j int))
	events   EventPublisher
	notifier Notifier
	cache    LeaderboardCache
}

func NewChallengeService(store repository.Store, loc *time.Location) *ChallengeService {
	return &ChallengeService{
		store:   store,
		loc:     location(loc),
		now:     time.Now,
		shuffle: rand.Shuffle,
	}
}

func (s *ChallengeService) SetClock(c Clock) { s.now = c }
func (s *ChallengeService) SetEventPublisher(p EventPublisher) { s.events = p }
func (s *ChallengeService) SetNotifier(n Notifier) { s.notifier = n }
func (s *ChallengeService) SetLeaderboardCache(c LeaderboardCache) { s.cache = c }

type UserChallengeStatus string

const (
	UserStatusAvailable UserChallengeStatus = "available"
	UserStatusActive    UserChallengeStatus = "active"
	UserStatusCompleted UserChallengeStatus = "completed"
)

// ChallengeView is a catalog entry annotated with the caller's state.
type ChallengeView struct {
	challenge.Definition
	UserStatus UserChallengeStatus `json:"userStatus"`
}

type ActiveChallenge struct {
	Challenge challenge.Definition `json:"challenge"`
	StartedAt time.Time            `json:"startedAt"`
	Progress  int                  `json:"progress"`
}

type CompletedChallenge struct {
	Challenge   challenge.Definition `json:"challenge"`
	CompletedAt time.Time            `json:"completedAt"`
}

type CompletionResult struct {
	Challenge    challenge.Definition `json:"challenge"`
	PointsEarned int                  `json:"pointsEarned"`
	CarbonSaved  float64              `json:"carbonSaved"`
	TotalPoints  int                  `json:"totalPoints"`
	Level        int                  `json:"level"`
	LeveledUp    bool                 `json:"leveledUp"`
	Streak       gamification.Streak  `json:"streak"`
	NewBadges    []gamification.Badge `json:"newBadges"`
}

type ListQuery struct {
	Category   challenge.Category
	Difficulty challenge.Difficulty
}

func (q ListQuery) validate() error {
	if q.Category != "" && !q.Category.Valid() {
		return apperr.Validation("Invalid challenge category")
	}
	if q.Difficulty != "" && !q.Difficulty.Valid() {
		return apperr.Validation("Invalid challenge difficulty")
	}
	return nil
}

func (s *ChallengeService) StartChallenge(ctx context.Context, userID, challengeID string) (*ActiveChallenge, error) {
	def, err := s.activeDefinition(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.store.WithinUser(ctx, userID, func(ctx context.Context, tx repository.UserTx) error {
		u := tx.User()
		if def.IsPremium && !u.HasPremium(now) {
			return apperr.Forbidden("This challenge requires a premium subscription")
		}
		if err := u.Challenges.Start(def.ID, now); err != nil {
			return err
		}
		return tx.AddParticipant(ctx, def.ID)
	})
	if err != nil {
		return nil, err
	}

	metrics.ChallengesStarted.WithLabelValues(string(def.Category)).Inc()
	logger.Info().Str("user_id", userID).Str("challenge_id", def.ID).Msg("challenge started")
	publish(ctx, s.events, events.New(events.ChallengeStarted, userID, now, events.ChallengePayload{
		ChallengeID: def.ID,
		Category:    string(def.Category),
	}))

	def.Stats.TotalParticipants++
	return &ActiveChallenge{Challenge: *def, StartedAt: now, Progress: 0}, nil
}

// CompleteChallenge applies every reward in one unit of work. A second
// call for the same pair fails with Conflict and awards nothing.
func (s *ChallengeService) CompleteChallenge(ctx context.Context, userID, challengeID string) (*CompletionResult, error) {
	def, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		res         *CompletionResult
		preferences user.Preferences
	)
	err = s.store.WithinUser(ctx, userID, func(ctx context.Context, tx repository.UserTx) error {
		u := tx.User()
		if err := u.Challenges.Complete(def.ID, now); err != nil {
			return err
		}

		previousLevel := u.Level
		u.AddPoints(def.Points)
		u.Streak = u.Streak.Advance(now, s.loc)

		earned := gamification.EvaluateBadges(u.Badges, u.BadgeSnapshot(), now)
		u.Badges = append(u.Badges, earned...)

		entry, err := tx.Entry(ctx, ledger.Day(now, s.loc))
		if err != nil {
			return err
		}
		entry.RecordCompletion(ledger.Completion{
			ChallengeID:  def.ID,
			PointsEarned: def.Points,
			CarbonSaved:  def.CarbonSaved,
			CompletedAt:  now,
		})

		if err := tx.AddCompletion(ctx, def.ID); err != nil {
			return err
		}

		preferences = u.Preferences
		res = &CompletionResult{
			Challenge:    *def,
			PointsEarned: def.Points,
			CarbonSaved:  def.CarbonSaved,
			TotalPoints:  u.Points,
			Level:        u.Level,
			LeveledUp:    u.Level > previousLevel,
			Streak:       u.Streak,
			NewBadges:    earned,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Challenge.Stats.TotalCompletions++
	s.afterCompletion(ctx, userID, res, preferences, now)
	return res, nil
}

func (s *ChallengeService) afterCompletion(ctx context.Context, userID string, res *CompletionResult, prefs user.Preferences, now time.Time) {
	metrics.ChallengesCompleted.WithLabelValues(string(res.Challenge.Category)).Inc()
	metrics.PointsAwarded.Add(float64(res.PointsEarned))

	logger.Info().
		Str("user_id", userID).
		Str("challenge_id", res.Challenge.ID).
		Int("points", res.TotalPoints).
		Int("level", res.Level).
		Int("streak", res.Streak.Current).
		Msg("challenge completed")

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
		}
	}

	evs := []events.Event{events.New(events.ChallengeCompleted, userID, now, events.ChallengePayload{
		ChallengeID: res.Challenge.ID,
		Category:    string(res.Challenge.Category),
		Points:      res.PointsEarned,
		CarbonSaved: res.CarbonSaved,
		TotalPoints: res.TotalPoints,
		Level:       res.Level,
		Streak:      res.Streak.Current,
	})}

	var msgs []notification.Message
	for _, b := range res.NewBadges {
		metrics.BadgesAwarded.WithLabelValues(b.Name).Inc()
		evs = append(evs, events.New(events.BadgeAwarded, userID, now, events.BadgePayload{Name: b.Name, Icon: b.Icon}))
		msgs = append(msgs, notification.BadgeMessage(userID, b))
	}
	if res.LeveledUp {
		msgs = append(msgs, notification.LevelUpMessage(userID, res.Level))
	}

	publish(ctx, s.events, evs...)
	if s.notifier != nil && prefs.Notifications && len(msgs) > 0 {
		s.notifier.Notify(ctx, msgs...)
	}
}

// UpdateProgress is advisory and never completes a challenge.
func (s *ChallengeService) UpdateProgress(ctx context.Context, userID, challengeID string, progress int) (*challenge.State, error) {
	if progress < 0 || progress > 100 {
		return nil, apperr.Validation("Progress must be between 0 and 100")
	}

	var state challenge.State
	err := s.store.WithinUser(ctx, userID, func(ctx context.Context, tx repository.UserTx) error {
		u := tx.User()
		if err := u.Challenges.SetProgress(challengeID, progress); err != nil {
			return err
		}
		state = u.Challenges[challengeID]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ListChallenges hides premium challenges from callers without an
// unexpired entitlement.
func (s *ChallengeService) ListChallenges(ctx context.Context, userID string, q ListQuery) ([]ChallengeView, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	defs, err := s.store.ListChallenges(ctx, challenge.Filter{
		Category:       q.Category,
		Difficulty:     q.Difficulty,
		IncludePremium: u.HasPremium(s.now()),
		Limit:          catalogLimit,
	})
	if err != nil {
		return nil, err
	}

	views := make([]ChallengeView, 0, len(defs))
	for _, d := range defs {
		views = append(views, ChallengeView{Definition: d, UserStatus: statusOf(u, d.ID)})
	}
	return views, nil
}

func (s *ChallengeService) FeaturedChallenges(ctx context.Context) ([]challenge.Definition, error) {
	return s.store.ListChallenges(ctx, challenge.Filter{FeaturedOnly: true, Limit: featuredLimit})
}

func (s *ChallengeService) DailyChallenges(ctx context.Context, userID string) ([]challenge.Definition, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.dailyFor(ctx, u)
}

// dailyFor picks from the categories the user's lifestyle suggests.
func (s *ChallengeService) dailyFor(ctx context.Context, u *user.User) ([]challenge.Definition, error) {
	defs, err := s.store.ListChallenges(ctx, challenge.Filter{
		Categories:     dailyCategories(u.Lifestyle),
		IncludePremium: u.HasPremium(s.now()),
		ExcludeIDs:     u.Challenges.CompletedIDs(),
	})
	if err != nil {
		return nil, err
	}

	s.shuffle(len(defs), func(i, j int) { defs[i], defs[j] = defs[j], defs[i] })
	if len(defs) > dailyChallengeCount {
		defs = defs[:dailyChallengeCount]
	}
	return defs, nil
}

func dailyCategories(l carbon.Lifestyle) []challenge.Category {
	var cats []challenge.Category
	if l.Transportation.PrimaryMode == carbon.ModeCar {
		cats = append(cats, challenge.CategoryTransportation)
	}
	if l.Diet == carbon.DietOmnivore || l.Diet == carbon.DietHighMeat {
		cats = append(cats, challenge.CategoryDiet)
	}
	return append(cats, challenge.CategoryEnergy, challenge.CategoryWaste, challenge.CategoryGeneral)
}

func (s *ChallengeService) GetChallenge(ctx context.Context, userID, challengeID string) (*ChallengeView, error) {
	def, err := s.activeDefinition(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if def.IsPremium && !u.HasPremium(s.now()) {
		return nil, apperr.Forbidden("This challenge requires a premium subscription")
	}
	return &ChallengeView{Definition: *def, UserStatus: statusOf(u, def.ID)}, nil
}

func (s *ChallengeService) ActiveChallenges(ctx context.Context, userID string) ([]ActiveChallenge, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.activeFor(ctx, u)
}

func (s *ChallengeService) activeFor(ctx context.Context, u *user.User) ([]ActiveChallenge, error) {
	active := u.Challenges.Active()
	ids := make([]string, 0, len(active))
	for _, a := range active {
		ids = append(ids, a.ChallengeID)
	}

	defs, err := s.store.GetChallenges(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ActiveChallenge, 0, len(active))
	for _, a := range active {
		def, ok := defs[a.ChallengeID]
		if !ok {
			continue
		}
		out = append(out, ActiveChallenge{Challenge: def, StartedAt: a.StartedAt, Progress: a.Progress})
	}
	return out, nil
}

func (s *ChallengeService) CompletedChallenges(ctx context.Context, userID string) ([]CompletedChallenge, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := u.Challenges.CompletedIDs()
	defs, err := s.store.GetChallenges(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]CompletedChallenge, 0, len(ids))
	for _, id := range ids {
		def, ok := defs[id]
		if !ok {
			continue
		}
		out = append(out, CompletedChallenge{Challenge: def, CompletedAt: *u.Challenges[id].CompletedAt})
	}
	return out, nil
}

func (s *ChallengeService) activeDefinition(ctx context.Context, id string) (*challenge.Definition, error) {
	def, err := s.store.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	if !def.IsActive {
		return nil, apperr.NotFound("Challenge not found")
	}
	return def, nil
}

func statusOf(u *user.User, challengeID string) UserChallengeStatus {
	switch {
	case u.Challenges.IsCompleted(challengeID):
		return UserStatusCompleted
	case u.Challenges.IsActive(challengeID):
		return UserStatusActive
	}
	return UserStatusAvailable
}
