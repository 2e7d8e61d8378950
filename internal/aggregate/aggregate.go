package aggregate

import (
	"math"
	"time"

	"ecoStepAPI/internal/ledger"
)

// ComparisonWindow is the number of entries on each side of the
// month-over-month comparison.
const ComparisonWindow = 30

type HistoryStats struct {
	TotalCarbon  float64 `json:"totalCarbon"`
	AverageDaily float64 `json:"averageDaily"`
	Days         int     `json:"days"`
}

func History(entries []ledger.Entry) HistoryStats {
	var total float64
	for _, e := range entries {
		total += e.Carbon.Total
	}
	stats := HistoryStats{TotalCarbon: total, Days: len(entries)}
	if len(entries) > 0 {
		stats.AverageDaily = total / float64(len(entries))
	}
	return stats
}

type Overview struct {
	TotalDays        int     `json:"totalDays"`
	TotalCarbon      float64 `json:"totalCarbon"`
	AverageDaily     float64 `json:"averageDaily"`
	TotalPoints      int     `json:"totalPoints"`
	TotalChallenges  int     `json:"totalChallenges"`
	TotalCarbonSaved float64 `json:"totalCarbonSaved"`
}

func Summarize(entries []ledger.Entry) Overview {
	h := History(entries)
	o := Overview{TotalDays: h.Days, TotalCarbon: h.TotalCarbon, AverageDaily: h.AverageDaily}
	for _, e := range entries {
		o.TotalPoints += e.PointsEarned
		o.TotalChallenges += len(e.Completions)
		o.TotalCarbonSaved += e.CarbonSaved()
	}
	return o
}

func CategoryTotals(entries []ledger.Entry) ledger.Breakdown {
	var b ledger.Breakdown
	for _, e := range entries {
		b = b.Add(e.Carbon)
	}
	return b
}

type Comparison struct {
	Last30Days     float64 `json:"last30Days"`
	Previous30Days float64 `json:"previous30Days"`
	Change         float64 `json:"change"`
	Improving      bool    `json:"improving"`
}

// PercentChange is positive when carbon went down.
func PercentChange(previous, last float64) float64 {
	if previous <= 0 {
		return 0
	}
	return (previous - last) / previous * 100
}

// MonthlyComparison compares the most recent window of entries with the
// window before it. entries must be ordered newest first.
func MonthlyComparison(entries []ledger.Entry) Comparison {
	last := window(entries, 0, ComparisonWindow)
	prev := window(entries, ComparisonWindow, 2*ComparisonWindow)

	c := Comparison{
		Last30Days:     History(last).TotalCarbon,
		Previous30Days: History(prev).TotalCarbon,
	}
	c.Change = PercentChange(c.Previous30Days, c.Last30Days)
	c.Improving = c.Change > 0
	return c
}

func window(entries []ledger.Entry, from, to int) []ledger.Entry {
	if from >= len(entries) {
		return nil
	}
	if to > len(entries) {
		to = len(entries)
	}
	return entries[from:to]
}

type CategoryShare struct {
	Category   string  `json:"category"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// Distribution returns each category's share of the summed categories,
// rounded to one decimal. All shares are 0 when the sum is 0.
func Distribution(b ledger.Breakdown) []CategoryShare {
	shares := []CategoryShare{
		{Category: "transportation", Value: b.Transportation},
		{Category: "energy", Value: b.Energy},
		{Category: "diet", Value: b.Diet},
		{Category: "shopping", Value: b.Shopping},
	}
	total := b.Sum()
	if total <= 0 {
		return shares
	}
	for i := range shares {
		shares[i].Percentage = round1(shares[i].Value / total * 100)
	}
	return shares
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

type CarbonPoint struct {
	Date time.Time `json:"date"`
	ledger.Breakdown
}

type PointsPoint struct {
	Date   time.Time `json:"date"`
	Points int       `json:"points"`
}

type CountPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

type Charts struct {
	CarbonTrend          []CarbonPoint   `json:"carbonTrend"`
	PointsTrend          []PointsPoint   `json:"pointsTrend"`
	ChallengesTrend      []CountPoint    `json:"challengesTrend"`
	CategoryDistribution []CategoryShare `json:"categoryDistribution"`
}

// BuildCharts keeps the order of entries, which callers pass oldest first.
func BuildCharts(entries []ledger.Entry) Charts {
	c := Charts{
		CarbonTrend:     make([]CarbonPoint, 0, len(entries)),
		PointsTrend:     make([]PointsPoint, 0, len(entries)),
		ChallengesTrend: make([]CountPoint, 0, len(entries)),
	}
	for _, e := range entries {
		c.CarbonTrend = append(c.CarbonTrend, CarbonPoint{Date: e.Date, Breakdown: e.Carbon})
		c.PointsTrend = append(c.PointsTrend, PointsPoint{Date: e.Date, Points: e.PointsEarned})
		c.ChallengesTrend = append(c.ChallengesTrend, CountPoint{Date: e.Date, Count: len(e.Completions)})
	}
	c.CategoryDistribution = Distribution(CategoryTotals(entries))
	return c
}

type WeekSummary struct {
	TotalPoints         int     `json:"totalPoints"`
	TotalCarbon         float64 `json:"totalCarbon"`
	ChallengesCompleted int     `json:"challengesCompleted"`
	AverageDaily        float64 `json:"averageDaily"`
}

func Week(entries []ledger.Entry) WeekSummary {
	var w WeekSummary
	for _, e := range entries {
		w.TotalPoints += e.PointsEarned
		w.TotalCarbon += e.Carbon.Total
		w.ChallengesCompleted += len(e.Completions)
	}
	days := len(entries)
	if days == 0 {
		days = 1
	}
	w.AverageDaily = w.TotalCarbon / float64(days)
	return w
}
