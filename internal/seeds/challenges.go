// Package seeds holds the default challenge catalog.
package seeds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/pkg/logger"
)

func def(title, description string, category challenge.Category, difficulty challenge.Difficulty,
	days, points int, saved float64, icon string, premium, featured bool, tips ...string) challenge.Definition {
	return challenge.Definition{
		Title:        title,
		Description:  description,
		Category:     category,
		Difficulty:   difficulty,
		DurationDays: days,
		Points:       points,
		CarbonSaved:  saved,
		Icon:         icon,
		IsPremium:    premium,
		IsFeatured:   featured,
		IsActive:     true,
		Tips:         tips,
		Tags:         []string{string(category), string(difficulty)},
	}
}

// Catalog returns a fresh copy of the default challenges, without ids.
func Catalog() []challenge.Definition {
	return []challenge.Definition{
		def("Walk or Bike for 30 Minutes",
			"Leave your car at home today and walk or bike for at least 30 minutes.",
			challenge.CategoryTransportation, challenge.DifficultyEasy, 1, 50, 2.5, "🚶", false, true,
			"Plan your route in advance", "Wear comfortable shoes", "Enjoy the fresh air and scenery"),
		def("Meatless Monday",
			"Go completely plant-based for the entire day. Try new vegan recipes!",
			challenge.CategoryDiet, challenge.DifficultyEasy, 1, 75, 4.2, "🥗", false, true,
			"Explore plant-based protein sources like tofu, lentils, and beans",
			"Try a new vegetable you've never cooked before",
			"Check out vegan recipe blogs for inspiration"),
		def("Unplug for 3 Hours",
			"Turn off all unnecessary electronics and lights for 3 hours.",
			challenge.CategoryEnergy, challenge.DifficultyEasy, 1, 60, 1.5, "🔌", false, false,
			"Use this time for outdoor activities or reading",
			"Unplug devices at the wall, not just turn them off",
			"Consider doing this regularly to reduce energy waste"),
		def("Zero Waste Day",
			"Produce no waste for an entire day. Refuse, reduce, reuse!",
			challenge.CategoryWaste, challenge.DifficultyHard, 1, 150, 5.0, "♻️", false, true,
			"Bring reusable bags and containers when shopping", "Say no to single-use items", "Compost organic waste"),
		def("Public Transport Week",
			"Use only public transportation for an entire week.",
			challenge.CategoryTransportation, challenge.DifficultyMedium, 7, 200, 15.0, "🚌", false, false,
			"Plan your routes in advance", "Get a weekly transit pass", "Use the commute time for reading or podcasts"),
		def("Second-Hand Shopping Only",
			"Buy only second-hand items for a month. No new purchases!",
			challenge.CategoryShopping, challenge.DifficultyHard, 30, 300, 20.0, "🛍️", false, false,
			"Explore thrift stores and online second-hand marketplaces",
			"Quality check items before purchasing",
			"Share your finds on social media to inspire others"),
		def("Reduce Shower Time",
			"Take 5-minute showers for a week to save water and energy.",
			challenge.CategoryWater, challenge.DifficultyEasy, 7, 100, 3.5, "🚿", false, false,
			"Use a timer or play a 5-minute song", "Turn off water while lathering", "Consider installing a low-flow showerhead"),
		def("LED Light Switch",
			"Replace all bulbs in your home with energy-efficient LEDs.",
			challenge.CategoryEnergy, challenge.DifficultyMedium, 1, 120, 10.0, "💡", false, false,
			"LEDs use 75% less energy than incandescent bulbs", "They last 25 times longer",
			"Choose warm white for living areas, cool white for work spaces"),
		def("Plant-Based Week",
			"Eat only plant-based foods for 7 days straight.",
			challenge.CategoryDiet, challenge.DifficultyMedium, 7, 250, 28.0, "🌱", true, false,
			"Meal prep to make it easier", "Discover new plant-based restaurants", "Track how you feel throughout the week"),
		def("Bike to Work Month",
			"Cycle to work every day for an entire month.",
			challenge.CategoryTransportation, challenge.DifficultyHard, 30, 500, 60.0, "🚴", true, false,
			"Invest in proper safety gear", "Plan safe routes away from heavy traffic", "Keep a change of clothes at work"),
		def("Local Food Challenge",
			"Buy only locally-sourced food for 2 weeks.",
			challenge.CategoryShopping, challenge.DifficultyMedium, 14, 180, 12.0, "🥕", false, false,
			"Visit farmers markets", "Join a local CSA program", "Learn about seasonal produce"),
		def("Digital Detox Day",
			"Avoid all screens and digital devices for 24 hours.",
			challenge.CategoryEnergy, challenge.DifficultyMedium, 1, 80, 2.0, "📵", false, false,
			"Plan outdoor activities", "Read physical books", "Spend quality time with family and friends"),
		def("Reusable Everything Week",
			"Use only reusable items - no single-use products for 7 days.",
			challenge.CategoryWaste, challenge.DifficultyMedium, 7, 150, 8.0, "🥤", false, true,
			"Carry reusable bags, bottles, and containers", "Say no to plastic straws and cutlery",
			"Bring your own cup to coffee shops"),
		def("Carpool Champion",
			"Carpool with colleagues or friends for 2 weeks.",
			challenge.CategoryTransportation, challenge.DifficultyEasy, 14, 140, 18.0, "🚗", false, false,
			"Coordinate schedules with coworkers", "Take turns driving", "Share fuel costs"),
		def("Compost Starter",
			"Start composting your organic waste for a month.",
			challenge.CategoryWaste, challenge.DifficultyMedium, 30, 200, 15.0, "🪴", false, false,
			"Balance green and brown materials", "Turn compost regularly", "Use finished compost in your garden"),
		def("Sustainable Habits Starter",
			"Pick one new eco-friendly habit and stick with it for 3 days.",
			challenge.CategoryGeneral, challenge.DifficultyEasy, 3, 60, 1.0, "🌍", false, false,
			"Start small and build momentum", "Write your habit down", "Tell a friend to keep yourself accountable"),
	}
}

// Apply inserts every catalog challenge whose title is not yet stored.
// It is safe to run repeatedly.
func Apply(ctx context.Context, repo repository.ChallengeRepository, now time.Time) (int, error) {
	created := 0
	for _, d := range Catalog() {
		_, err := repo.GetChallengeByTitle(ctx, d.Title)
		if err == nil {
			continue
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return created, fmt.Errorf("failed to look up challenge %q: %w", d.Title, err)
		}

		d.ID = uuid.NewString()
		d.CreatedAt = now
		d.UpdatedAt = now
		if err := d.Validate(); err != nil {
			return created, fmt.Errorf("invalid seed challenge %q: %w", d.Title, err)
		}
		if err := repo.CreateChallenge(ctx, &d); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				continue
			}
			return created, fmt.Errorf("failed to seed challenge %q: %w", d.Title, err)
		}
		created++
	}

	logger.Info().Int("created", created).Msg("challenge catalog seeded")
	return created, nil
}
