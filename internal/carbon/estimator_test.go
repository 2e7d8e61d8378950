package carbon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackDietTable(t *testing.T) {
	tests := []struct {
		diet string
		want float64
	}{
		{DietVegan, 2.5},
		{DietVegetarian, 3.8},
		{DietPescatarian, 4.6},
		{DietOmnivore, 7.2},
		{DietHighMeat, 10.5},
		{"carnivore", 7.2},
		{"", 7.2},
	}

	for _, tt := range tests {
		t.Run(tt.diet, func(t *testing.T) {
			l := DefaultLifestyle()
			l.Diet = tt.diet
			assert.Equal(t, tt.want, Fallback(l).Breakdown.Diet)
		})
	}
}

func TestFallbackTransportation(t *testing.T) {
	tests := []struct {
		mode string
		want float64
	}{
		{ModeCar, 2.3 * 2.5},
		{ModePublicTransport, 0.6 * 2.5},
		{ModeBicycle, 0},
		{ModeWalking, 0},
		{ModeMotorcycle, 1.8 * 2.5},
		{ModeElectricCar, 0.5 * 2.5},
		{"hoverboard", 2.3 * 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			l := DefaultLifestyle()
			l.Transportation = Transportation{PrimaryMode: tt.mode, DistancePerDay: 25}
			assert.InDelta(t, tt.want, Fallback(l).Breakdown.Transportation, 1e-9)
		})
	}
}

func TestFallbackEnergyAndShopping(t *testing.T) {
	l := DefaultLifestyle()
	l.Energy = Energy{ElectricityUsage: 10, GasUsage: 2}
	l.Shopping = Shopping{ClothesPerMonth: 2, ElectronicsPerYear: 3}

	est := Fallback(l)
	assert.InDelta(t, 10.0, est.Breakdown.Energy, 1e-9)
	assert.InDelta(t, 2*15.0/30+3*100.0/365, est.Breakdown.Shopping, 1e-9)

	l.Energy.RenewableEnergy = true
	assert.InDelta(t, 3.0, Fallback(l).Breakdown.Energy, 1e-9)
}

func TestFallbackDailyIsSumOfBreakdown(t *testing.T) {
	inputs := []Lifestyle{
		DefaultLifestyle(),
		{
			Transportation: Transportation{PrimaryMode: ModeMotorcycle, DistancePerDay: 37.5},
			Energy:         Energy{ElectricityUsage: 8.2, GasUsage: 1.1, RenewableEnergy: true},
			Diet:           DietPescatarian,
			Shopping:       Shopping{ClothesPerMonth: 4, ElectronicsPerYear: 1},
		},
		{
			Transportation: Transportation{PrimaryMode: "spaceship", DistancePerDay: 1000},
			Diet:           "unknown",
		},
	}

	for _, l := range inputs {
		est := Fallback(l)
		b := est.Breakdown
		assert.Equal(t, b.Transportation+b.Energy+b.Diet+b.Shopping, est.Daily)
		assert.Equal(t, est.Daily*7, est.Weekly)
		assert.Equal(t, est.Daily*30, est.Monthly)
		assert.True(t, est.Degraded)
		assert.NotEmpty(t, est.Note)
		assert.Empty(t, est.Recommendations)
		assert.Equal(t, est, Fallback(l))
	}
}

func TestEstimateUsesRemoteBreakdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calculate", r.URL.Path)

		var got Lifestyle
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, DietVegan, got.Diet)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"daily": 9.1,
			"weekly": 63.7,
			"breakdown": {"transportation": 4.8, "energy": 1.8, "diet": 2.5},
			"recommendations": [{"category": "transportation", "title": "Switch to Public Transport", "potentialSaving": 2.4}]
		}`))
	}))
	defer srv.Close()

	est := NewEstimator(NewClient(srv.URL, time.Second), time.Second)
	l := DefaultLifestyle()
	l.Diet = DietVegan

	res := est.Estimate(context.Background(), l)

	assert.False(t, res.Degraded)
	assert.Equal(t, 9.1, res.Daily)
	assert.Equal(t, 63.7, res.Weekly)
	assert.InDelta(t, 9.1*30, res.Monthly, 1e-9)
	assert.Equal(t, Breakdown{Transportation: 4.8, Energy: 1.8, Diet: 2.5, Shopping: 0}, res.Breakdown)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, 2.4, res.Recommendations[0].PotentialSaving)
}

func TestEstimateFallsBackOnRemoteFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"daily": "lots"`))
		}},
		{"empty object", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}},
		{"negative value", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"daily": 3, "breakdown": {"energy": -2}}`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}

	l := DefaultLifestyle()
	l.Transportation.DistancePerDay = 20
	want := Fallback(l)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			est := NewEstimator(NewClient(srv.URL, time.Second), 100*time.Millisecond)
			assert.Equal(t, want, est.Estimate(context.Background(), l))
		})
	}
}

func TestEstimateWithoutRemote(t *testing.T) {
	est := NewEstimator(nil, 0)
	res := est.Estimate(context.Background(), DefaultLifestyle())
	assert.True(t, res.Degraded)
	assert.Equal(t, 7.2, res.Daily)
}

func TestLifestyleValidate(t *testing.T) {
	assert.NoError(t, DefaultLifestyle().Validate())

	bad := DefaultLifestyle()
	bad.Diet = "paleo"
	assert.Error(t, bad.Validate())

	bad = DefaultLifestyle()
	bad.Transportation.PrimaryMode = "jetpack"
	assert.Error(t, bad.Validate())

	bad = DefaultLifestyle()
	bad.Energy.GasUsage = -1
	assert.Error(t, bad.Validate())
}
