package gamification

import (
	"time"

	"ecoStepAPI/internal/ledger"
)

const PointsPerLevel = 1000

// Level is a pure function of cumulative points.
func Level(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

type Streak struct {
	Current        int        `json:"current"`
	Longest        int        `json:"longest"`
	LastActiveDate *time.Time `json:"lastActiveDate,omitempty"`
}

// Advance applies one qualifying action at now. Day differences are
// taken between local midnights in loc.
func (s Streak) Advance(now time.Time, loc *time.Location) Streak {
	if s.LastActiveDate == nil {
		s.Current = 1
	} else {
		switch diff := ledger.DaysBetween(*s.LastActiveDate, now, loc); {
		case diff <= 0:
			return s
		case diff == 1:
			s.Current++
		default:
			s.Current = 1
		}
	}

	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	t := now
	s.LastActiveDate = &t
	return s
}

// Alive reports whether the streak can still be extended today.
func (s Streak) Alive(now time.Time, loc *time.Location) bool {
	if s.LastActiveDate == nil {
		return false
	}
	return ledger.DaysBetween(*s.LastActiveDate, now, loc) <= 1
}
