package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInconsistent reports an entry whose total does not match its
// category fields. It is a defect, never repaired in place.
var ErrInconsistent = errors.New("ledger entry total does not match its breakdown")

// totalTolerance absorbs float round-trips through storage.
const totalTolerance = 1e-6

type ActivityType string

const (
	ActivityTransport   ActivityType = "transport"
	ActivityMeal        ActivityType = "meal"
	ActivityPurchase    ActivityType = "purchase"
	ActivityEnergyUsage ActivityType = "energy_usage"
	ActivityRecycling   ActivityType = "recycling"
	ActivityOther       ActivityType = "other"
)

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityTransport, ActivityMeal, ActivityPurchase, ActivityEnergyUsage, ActivityRecycling, ActivityOther:
		return true
	}
	return false
}

type Breakdown struct {
	Transportation float64 `json:"transportation"`
	Energy         float64 `json:"energy"`
	Diet           float64 `json:"diet"`
	Shopping       float64 `json:"shopping"`
	Total          float64 `json:"total"`
}

func (b Breakdown) Sum() float64 {
	return b.Transportation + b.Energy + b.Diet + b.Shopping
}

func (b Breakdown) Consistent() bool {
	return math.Abs(b.Total-b.Sum()) <= totalTolerance
}

func (b Breakdown) Add(o Breakdown) Breakdown {
	out := Breakdown{
		Transportation: b.Transportation + o.Transportation,
		Energy:         b.Energy + o.Energy,
		Diet:           b.Diet + o.Diet,
		Shopping:       b.Shopping + o.Shopping,
	}
	out.Total = out.Sum()
	return out
}

type Activity struct {
	Type         ActivityType `json:"type"`
	Description  string       `json:"description"`
	CarbonImpact float64      `json:"carbonImpact"`
	Timestamp    time.Time    `json:"timestamp"`
}

type Completion struct {
	ChallengeID  string    `json:"challengeId"`
	PointsEarned int       `json:"pointsEarned"`
	CarbonSaved  float64   `json:"carbonSaved"`
	CompletedAt  time.Time `json:"completedAt"`
}

type Recommendation struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	PotentialSaving float64   `json:"potentialSaving"`
	Difficulty      string    `json:"difficulty,omitempty"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// Entry is the single per-user, per-local-day record.
type Entry struct {
	UserID          string           `json:"userId"`
	Date            time.Time        `json:"date"`
	Carbon          Breakdown        `json:"carbonData"`
	Activities      []Activity       `json:"activities"`
	Completions     []Completion     `json:"challengesCompleted"`
	PointsEarned    int              `json:"pointsEarned"`
	Recommendations []Recommendation `json:"aiRecommendations"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

func NewEntry(userID string, day time.Time) *Entry {
	return &Entry{
		UserID:          userID,
		Date:            day,
		Activities:      []Activity{},
		Completions:     []Completion{},
		Recommendations: []Recommendation{},
	}
}

// RecordCarbon replaces the category fields and re-derives the total.
func (e *Entry) RecordCarbon(b Breakdown) error {
	if b.Transportation < 0 || b.Energy < 0 || b.Diet < 0 || b.Shopping < 0 {
		return fmt.Errorf("carbon breakdown values must not be negative")
	}
	e.Carbon = Breakdown{
		Transportation: b.Transportation,
		Energy:         b.Energy,
		Diet:           b.Diet,
		Shopping:       b.Shopping,
	}
	e.rederive()
	return nil
}

// RecordActivity appends an activity. Activities are a log only and do
// not feed the category fields.
func (e *Entry) RecordActivity(a Activity) error {
	if !a.Type.Valid() {
		return fmt.Errorf("invalid activity type %q", a.Type)
	}
	if a.Description == "" {
		return fmt.Errorf("activity description is required")
	}
	e.Activities = append(e.Activities, a)
	e.rederive()
	return nil
}

func (e *Entry) RecordCompletion(c Completion) {
	e.Completions = append(e.Completions, c)
	e.PointsEarned += c.PointsEarned
}

func (e *Entry) SetRecommendations(recs []Recommendation) {
	e.Recommendations = append([]Recommendation(nil), recs...)
}

func (e *Entry) CarbonSaved() float64 {
	var saved float64
	for _, c := range e.Completions {
		saved += c.CarbonSaved
	}
	return saved
}

// Verify is called by stores when an entry is loaded.
func (e *Entry) Verify() error {
	if !e.Carbon.Consistent() {
		return fmt.Errorf("%w: user %s day %s total=%v sum=%v",
			ErrInconsistent, e.UserID, e.Date.Format(time.DateOnly), e.Carbon.Total, e.Carbon.Sum())
	}
	return nil
}

func (e *Entry) Clone() *Entry {
	c := *e
	c.Activities = append([]Activity{}, e.Activities...)
	c.Completions = append([]Completion{}, e.Completions...)
	c.Recommendations = append([]Recommendation{}, e.Recommendations...)
	return &c
}

func (e *Entry) rederive() {
	e.Carbon.Total = e.Carbon.Sum()
}
