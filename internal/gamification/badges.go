package gamification

import "time"

type Badge struct {
	Name     string    `json:"name"`
	Icon     string    `json:"icon"`
	EarnedAt time.Time `json:"earnedAt"`
}

// Snapshot is the state badge rules are evaluated against.
type Snapshot struct {
	CompletedChallenges int
	CurrentStreak       int
	Points              int
}

type BadgeRule struct {
	Name  string
	Icon  string
	Earns func(Snapshot) bool
}

// BadgeRules are evaluated in order. Every threshold is inclusive, so a
// counter that skips past a milestone still earns the badge.
var BadgeRules = []BadgeRule{
	{Name: "First Step", Icon: "👣", Earns: func(s Snapshot) bool { return s.CompletedChallenges >= 1 }},
	{Name: "Eco Warrior", Icon: "⚔️", Earns: func(s Snapshot) bool { return s.CompletedChallenges >= 10 }},
	{Name: "Climate Champion", Icon: "🏆", Earns: func(s Snapshot) bool { return s.CompletedChallenges >= 50 }},
	{Name: "Week Warrior", Icon: "🔥", Earns: func(s Snapshot) bool { return s.CurrentStreak >= 7 }},
	{Name: "Month Master", Icon: "💎", Earns: func(s Snapshot) bool { return s.CurrentStreak >= 30 }},
	{Name: "Point Collector", Icon: "⭐", Earns: func(s Snapshot) bool { return s.Points >= 1000 }},
}

// EvaluateBadges returns the badges earned by snap that are not already
// in existing. Names are the identity of a badge.
func EvaluateBadges(existing []Badge, snap Snapshot, now time.Time) []Badge {
	have := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		have[b.Name] = struct{}{}
	}

	earned := []Badge{}
	for _, rule := range BadgeRules {
		if _, ok := have[rule.Name]; ok {
			continue
		}
		if rule.Earns(snap) {
			earned = append(earned, Badge{Name: rule.Name, Icon: rule.Icon, EarnedAt: now})
			have[rule.Name] = struct{}{}
		}
	}
	return earned
}

// Recent returns up to n badges, newest first.
func Recent(badges []Badge, n int) []Badge {
	out := make([]Badge, 0, n)
	for i := len(badges) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, badges[i])
	}
	return out
}
