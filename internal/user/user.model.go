package user

import (
	"time"

	"ecoStepAPI/internal/carbon"
	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/internal/gamification"
)

type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
	StatusDeleted   AccountStatus = "deleted"
)

type Preferences struct {
	Notifications bool   `json:"notifications"`
	Language      string `json:"language"`
	Theme         string `json:"theme"`
}

func DefaultPreferences() Preferences {
	return Preferences{Notifications: true, Language: "en", Theme: "light"}
}

type User struct {
	ID               string               `json:"id"`
	ClerkID          string               `json:"clerkId,omitempty"`
	Email            string               `json:"email"`
	Name             string               `json:"name"`
	ImageURL         string               `json:"imageUrl,omitempty"`
	IsPremium        bool                 `json:"isPremium"`
	PremiumUntil     *time.Time           `json:"subscriptionEndDate,omitempty"`
	StripeCustomerID string               `json:"-"`
	PaymentFailedAt  *time.Time           `json:"paymentFailedAt,omitempty"`
	Lifestyle        carbon.Lifestyle     `json:"lifestyle"`
	Footprint        carbon.Footprint     `json:"carbonFootprint"`
	Points           int                  `json:"points"`
	Level            int                  `json:"level"`
	Streak           gamification.Streak  `json:"streak"`
	Badges           []gamification.Badge `json:"badges"`
	Challenges       challenge.States     `json:"-"`
	Preferences      Preferences          `json:"preferences"`
	AccountStatus    AccountStatus        `json:"accountStatus"`
	LastLogin        time.Time            `json:"lastLogin"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

func New(id, email, name string, now time.Time) *User {
	return &User{
		ID:            id,
		Email:         email,
		Name:          name,
		Lifestyle:     carbon.DefaultLifestyle(),
		Level:         1,
		Badges:        []gamification.Badge{},
		Challenges:    challenge.States{},
		Preferences:   DefaultPreferences(),
		AccountStatus: StatusActive,
		LastLogin:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// HasPremium reports an unexpired entitlement. A set flag with a past
// expiry counts as non-premium even before a revoke arrives.
func (u *User) HasPremium(now time.Time) bool {
	return u.IsPremium && u.PremiumUntil != nil && now.Before(*u.PremiumUntil)
}

func (u *User) GrantPremium(until time.Time) {
	u.IsPremium = true
	u.PremiumUntil = &until
	u.PaymentFailedAt = nil
}

// RevokePremium clears the flag. clearExpiry also drops the end date.
func (u *User) RevokePremium(clearExpiry bool) {
	u.IsPremium = false
	if clearExpiry {
		u.PremiumUntil = nil
	}
}

func (u *User) Active() bool {
	return u.AccountStatus == StatusActive
}

// AddPoints updates points and recomputes the level from scratch.
func (u *User) AddPoints(n int) {
	u.Points += n
	if u.Points < 0 {
		u.Points = 0
	}
	u.Level = gamification.Level(u.Points)
}

func (u *User) BadgeSnapshot() gamification.Snapshot {
	return gamification.Snapshot{
		CompletedChallenges: u.Challenges.CountCompleted(),
		CurrentStreak:       u.Streak.Current,
		Points:              u.Points,
	}
}

func (u *User) Clone() *User {
	c := *u
	c.Badges = append([]gamification.Badge{}, u.Badges...)
	c.Challenges = u.Challenges.Clone()
	if u.PremiumUntil != nil {
		t := *u.PremiumUntil
		c.PremiumUntil = &t
	}
	if u.PaymentFailedAt != nil {
		t := *u.PaymentFailedAt
		c.PaymentFailedAt = &t
	}
	if u.Streak.LastActiveDate != nil {
		t := *u.Streak.LastActiveDate
		c.Streak.LastActiveDate = &t
	}
	if u.Footprint.LastCalculated != nil {
		t := *u.Footprint.LastCalculated
		c.Footprint.LastCalculated = &t
	}
	return &c
}
