package carbon

import (
	"fmt"
	"time"
)

const (
	ModeCar             = "car"
	ModePublicTransport = "public_transport"
	ModeBicycle         = "bicycle"
	ModeWalking         = "walking"
	ModeMotorcycle      = "motorcycle"
	ModeElectricCar     = "electric_car"
)

const (
	DietVegan       = "vegan"
	DietVegetarian  = "vegetarian"
	DietPescatarian = "pescatarian"
	DietOmnivore    = "omnivore"
	DietHighMeat    = "high_meat"
)

var recyclingHabits = map[string]bool{
	"always": true, "often": true, "sometimes": true, "rarely": true, "never": true,
}

type Transportation struct {
	PrimaryMode    string  `json:"primaryMode"`
	DistancePerDay float64 `json:"distancePerDay"`
}

type Energy struct {
	ElectricityUsage float64 `json:"electricityUsage"`
	GasUsage         float64 `json:"gasUsage"`
	RenewableEnergy  bool    `json:"renewableEnergy"`
}

type Shopping struct {
	ClothesPerMonth    float64 `json:"clothesPerMonth"`
	ElectronicsPerYear float64 `json:"electronicsPerYear"`
	RecyclingHabit     string  `json:"recyclingHabit"`
}

// Lifestyle is the estimator input. Its JSON shape is also the request
// body of the remote /calculate call.
type Lifestyle struct {
	Transportation Transportation `json:"transportation"`
	Energy         Energy         `json:"energy"`
	Diet           string         `json:"diet"`
	Shopping       Shopping       `json:"shopping"`
}

func DefaultLifestyle() Lifestyle {
	return Lifestyle{
		Transportation: Transportation{PrimaryMode: ModeCar},
		Diet:           DietOmnivore,
		Shopping:       Shopping{RecyclingHabit: "sometimes"},
	}
}

// Footprint is the per-user summary written by every calculation.
type Footprint struct {
	Daily          float64    `json:"daily"`
	Weekly         float64    `json:"weekly"`
	Monthly        float64    `json:"monthly"`
	Total          float64    `json:"total"`
	LastCalculated *time.Time `json:"lastCalculated,omitempty"`
}

func ValidMode(mode string) bool {
	_, ok := modeFactors[mode]
	return ok
}

func ValidDiet(diet string) bool {
	_, ok := dietFactors[diet]
	return ok
}

func ValidRecyclingHabit(habit string) bool {
	return recyclingHabits[habit]
}

// Validate checks enumerations and rejects negative quantities.
func (l Lifestyle) Validate() error {
	if !ValidMode(l.Transportation.PrimaryMode) {
		return fmt.Errorf("invalid transportation mode %q", l.Transportation.PrimaryMode)
	}
	if !ValidDiet(l.Diet) {
		return fmt.Errorf("invalid diet %q", l.Diet)
	}
	if l.Shopping.RecyclingHabit != "" && !ValidRecyclingHabit(l.Shopping.RecyclingHabit) {
		return fmt.Errorf("invalid recycling habit %q", l.Shopping.RecyclingHabit)
	}
	if l.Transportation.DistancePerDay < 0 || l.Energy.ElectricityUsage < 0 || l.Energy.GasUsage < 0 ||
		l.Shopping.ClothesPerMonth < 0 || l.Shopping.ElectronicsPerYear < 0 {
		return fmt.Errorf("lifestyle quantities must not be negative")
	}
	return nil
}
