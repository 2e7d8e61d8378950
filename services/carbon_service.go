package services

import (
	"context"
	"time"

	"ecoStepAPI/internal/aggregate"
	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/carbon"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/pkg/logger"
)

const (
	defaultHistoryPeriod = 30
	maxHistoryPeriod     = 365
	insightEntries       = 7
)

type CarbonService struct {
	store     repository.Store
	estimator *carbon.Estimator
	loc       *time.Location
	now       Clock
}

func NewCarbonService(store repository.Store, estimator *carbon.Estimator, loc *time.Location) *CarbonService {
	return &CarbonService{store: store, estimator: estimator, loc: location(loc), now: time.Now}
}

func (s *CarbonService) SetClock(c Clock) { s.now = c }

type CalculationResult struct {
	CarbonFootprint carbon.Footprint        `json:"carbonFootprint"`
	Breakdown       carbon.Breakdown        `json:"breakdown"`
	Recommendations []ledger.Recommendation `json:"recommendations"`
	Degraded        bool                    `json:"degraded"`
	Note            string                  `json:"note,omitempty"`
}

// Calculate estimates from the stored lifestyle. The estimator runs
// before the user is locked; only the write happens inside.
func (s *CarbonService) Calculate(ctx context.Context, userID string) (*CalculationResult, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	est := s.estimator.Estimate(ctx, u.Lifestyle)
	now := s.now()

	var footprint carbon.Footprint
	err = s.store.WithinUser(ctx, userID, func(ctx context.Context, tx repository.UserTx) error {
		u := tx.User()
		calculated := now
		u.Footprint = carbon.Footprint{
			Daily:          est.Daily,
			Weekly:         est.Weekly,
			Monthly:        est.Monthly,
			Total:          u.Footprint.Total + est.Daily,
			LastCalculated: &calculated,
		}

		entry, err := tx.Entry(ctx, ledger.Day(now, s.loc))
		if err != nil {
			return err
		}
		if err := entry.RecordCarbon(est.Breakdown.Ledger()); err != nil {
			return apperr.Internal("estimator returned an invalid breakdown", err)
		}
		if len(est.Recommendations) > 0 {
			entry.SetRecommendations(est.Recommendations)
		}

		footprint = u.Footprint
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Str("user_id", userID).Float64("daily", est.Daily).Bool("degraded", est.Degraded).Msg("carbon footprint calculated")
	return &CalculationResult{
		CarbonFootprint: footprint,
		Breakdown:       est.Breakdown,
		Recommendations: est.Recommendations,
		Degraded:        est.Degraded,
		Note:            est.Note,
	}, nil
}

type CarbonHistory struct {
	Period  int                    `json:"period"`
	Entries []ledger.Entry         `json:"history"`
	Stats   aggregate.HistoryStats `json:"stats"`
}

// History starts at local midnight period days ago, so today plus the
// period full days before it.
func (s *CarbonService) History(ctx context.Context, userID string, period int) (*CarbonHistory, error) {
	if period <= 0 {
		period = defaultHistoryPeriod
	}
	if period > maxHistoryPeriod {
		period = maxHistoryPeriod
	}

	entries, err := s.store.ListEntries(ctx, userID, repository.EntryQuery{
		From:        ledger.DaysAgo(s.now(), period, s.loc),
		NewestFirst: true,
	})
	if err != nil {
		return nil, err
	}

	return &CarbonHistory{Period: period, Entries: entries, Stats: aggregate.History(entries)}, nil
}

type ActivityRequest struct {
	Type         ledger.ActivityType `json:"type"`
	Description  string              `json:"description"`
	CarbonImpact float64             `json:"carbonImpact"`
}

func (s *CarbonService) LogActivity(ctx context.Context, userID string, req ActivityRequest) (*ledger.Entry, error) {
	if !req.Type.Valid() {
		return nil, apperr.Validation("Invalid activity type")
	}
	if req.Description == "" {
		return nil, apperr.Validation("Activity description is required")
	}

	now := s.now()
	var saved *ledger.Entry
	err := s.store.WithinUser(ctx, userID, func(ctx context.Context, tx repository.UserTx) error {
		entry, err := tx.Entry(ctx, ledger.Day(now, s.loc))
		if err != nil {
			return err
		}
		err = entry.RecordActivity(ledger.Activity{
			Type:         req.Type,
			Description:  req.Description,
			CarbonImpact: req.CarbonImpact,
			Timestamp:    now,
		})
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, err.Error(), err)
		}
		saved = entry.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("user_id", userID).Str("type", string(req.Type)).Msg("activity logged")
	return saved, nil
}

// Insights never fails on the estimator side; a remote failure yields
// the rule-based list marked as degraded.
func (s *CarbonService) Insights(ctx context.Context, userID string) (*carbon.InsightReport, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	recent, err := s.store.ListEntries(ctx, userID, repository.EntryQuery{Limit: insightEntries, NewestFirst: true})
	if err != nil {
		return nil, err
	}

	report := s.estimator.Insights(ctx, carbon.NewInsightRequest(u.Lifestyle, u.Footprint, recent))
	return &report, nil
}
