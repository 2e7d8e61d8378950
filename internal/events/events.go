// Package events publishes lifecycle events after a state change has
// been committed.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	ChallengeStarted   Type = "challenge.started"
	ChallengeCompleted Type = "challenge.completed"
	BadgeAwarded       Type = "badge.awarded"
	PremiumChanged     Type = "premium.changed"
)

type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	UserID     string    `json:"userId"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

func New(t Type, userID string, at time.Time, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		OccurredAt: at,
		Payload:    payload,
	}
}

type ChallengePayload struct {
	ChallengeID string  `json:"challengeId"`
	Category    string  `json:"category"`
	Points      int     `json:"points,omitempty"`
	CarbonSaved float64 `json:"carbonSaved,omitempty"`
	TotalPoints int     `json:"totalPoints,omitempty"`
	Level       int     `json:"level,omitempty"`
	Streak      int     `json:"streak,omitempty"`
}

type BadgePayload struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type PremiumPayload struct {
	IsPremium    bool       `json:"isPremium"`
	PremiumUntil *time.Time `json:"premiumUntil,omitempty"`
	Provider     string     `json:"provider"`
	Reason       string     `json:"reason"`
}
