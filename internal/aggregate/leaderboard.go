package aggregate

import (
	"sort"

	"ecoStepAPI/internal/ledger"
)

type WeeklyTotal struct {
	UserID              string  `json:"userId"`
	WeeklyPoints        int     `json:"weeklyPoints"`
	ChallengesCompleted int     `json:"challengesCompleted"`
	CarbonSaved         float64 `json:"carbonSaved"`
}

// WeeklyTotals groups entries by user and ranks them.
func WeeklyTotals(entries []ledger.Entry) []WeeklyTotal {
	byUser := make(map[string]*WeeklyTotal)
	for _, e := range entries {
		t, ok := byUser[e.UserID]
		if !ok {
			t = &WeeklyTotal{UserID: e.UserID}
			byUser[e.UserID] = t
		}
		t.WeeklyPoints += e.PointsEarned
		t.ChallengesCompleted += len(e.Completions)
		t.CarbonSaved += e.CarbonSaved()
	}

	out := make([]WeeklyTotal, 0, len(byUser))
	for _, t := range byUser {
		out = append(out, *t)
	}
	SortWeekly(out)
	return out
}

// SortWeekly orders by weekly points descending. Ties fall back to user
// id so the ranking is stable across calls.
func SortWeekly(totals []WeeklyTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].WeeklyPoints != totals[j].WeeklyPoints {
			return totals[i].WeeklyPoints > totals[j].WeeklyPoints
		}
		return totals[i].UserID < totals[j].UserID
	})
}

// GlobalRank is one more than the number of users with strictly more
// points.
func GlobalRank(usersAbove int) int {
	return usersAbove + 1
}

// RankOf returns the 1-based position of userID in ranked, or 0.
func RankOf(ranked []WeeklyTotal, userID string) int {
	for i, t := range ranked {
		if t.UserID == userID {
			return i + 1
		}
	}
	return 0
}
