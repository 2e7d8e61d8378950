package carbon

import (
	"context"
	"time"

	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/metrics"
	"ecoStepAPI/pkg/logger"
)

const basicInsightsNote = "AI service temporarily unavailable, showing basic insights"

type Insight struct {
	Type            string  `json:"type,omitempty"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category,omitempty"`
	PotentialSaving float64 `json:"potentialSaving,omitempty"`
	Sentiment       string  `json:"sentiment,omitempty"`
	Impact          string  `json:"impact,omitempty"`
	Difficulty      string  `json:"difficulty,omitempty"`
	Timeframe       string  `json:"timeframe,omitempty"`
}

type ProgressSnapshot struct {
	Date       time.Time         `json:"date"`
	CarbonData ledger.Breakdown  `json:"carbonData"`
	Activities []ledger.Activity `json:"activities"`
}

// InsightRequest is the body of the remote /insights call.
type InsightRequest struct {
	Lifestyle       Lifestyle          `json:"lifestyle"`
	RecentProgress  []ProgressSnapshot `json:"recentProgress"`
	CarbonFootprint Footprint          `json:"carbonFootprint"`
}

type InsightReport struct {
	Insights        []Insight `json:"insights"`
	Recommendations []Insight `json:"recommendations"`
	Degraded        bool      `json:"degraded"`
	Note            string    `json:"note,omitempty"`
}

// NewInsightRequest snapshots the given entries, most recent first.
func NewInsightRequest(l Lifestyle, fp Footprint, recent []ledger.Entry) InsightRequest {
	snaps := make([]ProgressSnapshot, 0, len(recent))
	for _, e := range recent {
		snaps = append(snaps, ProgressSnapshot{Date: e.Date, CarbonData: e.Carbon, Activities: e.Activities})
	}
	return InsightRequest{Lifestyle: l, RecentProgress: snaps, CarbonFootprint: fp}
}

// Insights asks the remote service and falls back to BasicInsights.
func (e *Estimator) Insights(ctx context.Context, req InsightRequest) InsightReport {
	if e.remote != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		report, err := e.remote.Insights(callCtx, req)
		if err == nil {
			if report.Recommendations == nil {
				report.Recommendations = []Insight{}
			}
			metrics.EstimatorRequests.WithLabelValues("insights", "remote").Inc()
			return *report
		}
		logger.Warn().Err(err).Str("event", "insights_fallback").Msg("remote insights failed, using basic insights")
	}

	metrics.EstimatorRequests.WithLabelValues("insights", "fallback").Inc()
	return InsightReport{
		Insights:        BasicInsights(req.Lifestyle, req.CarbonFootprint),
		Recommendations: []Insight{},
		Degraded:        true,
		Note:            basicInsightsNote,
	}
}

// BasicInsights flags car commuting, non-renewable energy and meat-heavy
// diets with fixed saving estimates.
func BasicInsights(l Lifestyle, fp Footprint) []Insight {
	insights := []Insight{}

	if l.Transportation.PrimaryMode == ModeCar {
		insights = append(insights, Insight{
			Title:           "Switch to Public Transport",
			Description:     "Using public transport instead of a car could reduce your carbon footprint by up to 2kg CO₂ per day.",
			Category:        "transportation",
			PotentialSaving: 2.0,
		})
	}

	if !l.Energy.RenewableEnergy {
		insights = append(insights, Insight{
			Title:           "Consider Renewable Energy",
			Description:     "Switching to renewable energy sources could cut your energy emissions by 70%.",
			Category:        "energy",
			PotentialSaving: fp.Daily * 0.3,
		})
	}

	if l.Diet == DietHighMeat || l.Diet == DietOmnivore {
		insights = append(insights, Insight{
			Title:           "Reduce Meat Consumption",
			Description:     "Having 2-3 plant-based meals per week could save up to 3kg CO₂ weekly.",
			Category:        "diet",
			PotentialSaving: 0.43,
		})
	}

	return insights
}
