package user

import (
	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/carbon"
)

type CreateUserRequest struct {
	ClerkID  string `json:"clerkId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type UpdateProfileRequest struct {
	Name        *string      `json:"name,omitempty"`
	Email       *string      `json:"email,omitempty"`
	ImageURL    *string      `json:"imageUrl,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

func (r *UpdateProfileRequest) Apply(u *User) error {
	if r.Name != nil {
		if *r.Name == "" || len(*r.Name) > 100 {
			return apperr.Validation("Name must be between 1 and 100 characters")
		}
		u.Name = *r.Name
	}
	if r.Email != nil {
		u.Email = *r.Email
	}
	if r.ImageURL != nil {
		u.ImageURL = *r.ImageURL
	}
	if r.Preferences != nil {
		switch r.Preferences.Theme {
		case "light", "dark", "auto":
		default:
			return apperr.Validation("Theme must be one of light, dark, auto")
		}
		u.Preferences = *r.Preferences
	}
	return nil
}

type TransportationUpdate struct {
	PrimaryMode    *string  `json:"primaryMode,omitempty"`
	DistancePerDay *float64 `json:"distancePerDay,omitempty"`
}

type EnergyUpdate struct {
	ElectricityUsage *float64 `json:"electricityUsage,omitempty"`
	GasUsage         *float64 `json:"gasUsage,omitempty"`
	RenewableEnergy  *bool    `json:"renewableEnergy,omitempty"`
}

type ShoppingUpdate struct {
	ClothesPerMonth    *float64 `json:"clothesPerMonth,omitempty"`
	ElectronicsPerYear *float64 `json:"electronicsPerYear,omitempty"`
	RecyclingHabit     *string  `json:"recyclingHabit,omitempty"`
}

// UpdateLifestyleRequest is a partial update; nil sections and fields
// keep their stored values.
type UpdateLifestyleRequest struct {
	Transportation *TransportationUpdate `json:"transportation,omitempty"`
	Energy         *EnergyUpdate         `json:"energy,omitempty"`
	Diet           *string               `json:"diet,omitempty"`
	Shopping       *ShoppingUpdate       `json:"shopping,omitempty"`
}

// Merge returns l with the request applied, validated as a whole.
func (r *UpdateLifestyleRequest) Merge(l carbon.Lifestyle) (carbon.Lifestyle, error) {
	if t := r.Transportation; t != nil {
		if t.PrimaryMode != nil {
			l.Transportation.PrimaryMode = *t.PrimaryMode
		}
		if t.DistancePerDay != nil {
			l.Transportation.DistancePerDay = *t.DistancePerDay
		}
	}
	if e := r.Energy; e != nil {
		if e.ElectricityUsage != nil {
			l.Energy.ElectricityUsage = *e.ElectricityUsage
		}
		if e.GasUsage != nil {
			l.Energy.GasUsage = *e.GasUsage
		}
		if e.RenewableEnergy != nil {
			l.Energy.RenewableEnergy = *e.RenewableEnergy
		}
	}
	if r.Diet != nil {
		l.Diet = *r.Diet
	}
	if s := r.Shopping; s != nil {
		if s.ClothesPerMonth != nil {
			l.Shopping.ClothesPerMonth = *s.ClothesPerMonth
		}
		if s.ElectronicsPerYear != nil {
			l.Shopping.ElectronicsPerYear = *s.ElectronicsPerYear
		}
		if s.RecyclingHabit != nil {
			l.Shopping.RecyclingHabit = *s.RecyclingHabit
		}
	}

	if err := l.Validate(); err != nil {
		return l, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	return l, nil
}
