package challenge

import (
	"fmt"
	"time"
)

type Category string

const (
	CategoryTransportation Category = "transportation"
	CategoryEnergy         Category = "energy"
	CategoryDiet           Category = "diet"
	CategoryShopping       Category = "shopping"
	CategoryWater          Category = "water"
	CategoryWaste          Category = "waste"
	CategoryGeneral        Category = "general"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTransportation, CategoryEnergy, CategoryDiet, CategoryShopping,
		CategoryWater, CategoryWaste, CategoryGeneral:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

const MinPoints = 10

type Stats struct {
	TotalParticipants int64 `json:"totalParticipants"`
	TotalCompletions  int64 `json:"totalCompletions"`
}

// Definition is a catalog entry. Everything but Stats is immutable once
// seeded; Stats only ever grows.
type Definition struct {
	ID           string     `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	Description  string     `json:"description" db:"description"`
	Category     Category   `json:"category" db:"category"`
	Difficulty   Difficulty `json:"difficulty" db:"difficulty"`
	DurationDays int        `json:"duration" db:"duration_days"`
	Points       int        `json:"points" db:"points"`
	CarbonSaved  float64    `json:"carbonSaved" db:"carbon_saved"`
	Icon         string     `json:"icon" db:"icon"`
	IsPremium    bool       `json:"isPremium" db:"is_premium"`
	IsFeatured   bool       `json:"isFeatured" db:"is_featured"`
	IsActive     bool       `json:"isActive" db:"is_active"`
	Tips         []string   `json:"tips" db:"tips"`
	Tags         []string   `json:"tags" db:"tags"`
	Stats        Stats      `json:"stats"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

func (d *Definition) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("challenge title is required")
	}
	if !d.Category.Valid() {
		return fmt.Errorf("invalid challenge category %q", d.Category)
	}
	if !d.Difficulty.Valid() {
		return fmt.Errorf("invalid challenge difficulty %q", d.Difficulty)
	}
	if d.DurationDays < 1 {
		return fmt.Errorf("challenge duration must be at least 1 day")
	}
	if d.Points < MinPoints {
		return fmt.Errorf("challenge points must be at least %d", MinPoints)
	}
	if d.CarbonSaved < 0 {
		return fmt.Errorf("challenge carbon saved must not be negative")
	}
	return nil
}

// Filter narrows catalog listings. Inactive challenges are never listed.
type Filter struct {
	Category       Category
	Categories     []Category
	Difficulty     Difficulty
	IncludePremium bool
	FeaturedOnly   bool
	ExcludeIDs     []string
	Limit          int
}

// Match applies every filter field except Limit.
func (f Filter) Match(d *Definition) bool {
	if !d.IsActive {
		return false
	}
	if f.Category != "" && d.Category != f.Category {
		return false
	}
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if c == d.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Difficulty != "" && d.Difficulty != f.Difficulty {
		return false
	}
	if d.IsPremium && !f.IncludePremium {
		return false
	}
	if f.FeaturedOnly && !d.IsFeatured {
		return false
	}
	for _, id := range f.ExcludeIDs {
		if id == d.ID {
			return false
		}
	}
	return true
}
