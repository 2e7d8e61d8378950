package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoStepAPI/internal/carbon"
	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/internal/store/memory"
	"ecoStepAPI/internal/user"
	"ecoStepAPI/middleware"
	"ecoStepAPI/services"
)

type offlineEstimator struct{}

func (offlineEstimator) Calculate(ctx context.Context, l carbon.Lifestyle) (*carbon.RemoteEstimate, error) {
	return nil, errors.New("offline")
}

func (offlineEstimator) Insights(ctx context.Context, req carbon.InsightRequest) (*carbon.InsightReport, error) {
	return nil, errors.New("offline")
}

type testEnv struct {
	store  *memory.Store
	router *mux.Router
}

// asUser stands in for the auth middleware: the X-Test-User header
// becomes the authenticated user id.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Test-User"); id != "" {
			r = r.WithContext(middleware.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New(time.UTC)

	userService := services.NewUserService(store)
	challengeService := services.NewChallengeService(store, time.UTC)
	carbonService := services.NewCarbonService(store, carbon.NewEstimator(offlineEstimator{}, time.Second), time.UTC)
	progressService := services.NewProgressService(store, challengeService, time.UTC)
	leaderboardService := services.NewLeaderboardService(store, time.UTC)
	subscriptionService := services.NewSubscriptionService(store, 30)
	subscriptionService.SetStripeWebhookSecret("whsec_stripe_test")
	notificationService := services.NewNotificationService(store, nil)
	marketplaceService := services.NewMarketplaceService(store)

	userHandler := NewUserHandler(userService)
	challengeHandler := NewChallengeHandler(challengeService)
	carbonHandler := NewCarbonHandler(carbonService)
	progressHandler := NewProgressHandler(progressService, leaderboardService)
	subscriptionHandler := NewSubscriptionHandler(subscriptionService)
	notificationHandler := NewNotificationHandler(notificationService)
	marketplaceHandler := NewMarketplaceHandler(marketplaceService)
	webhookHandler := NewWebhookHandler(userService, subscriptionService, testClerkSecret, testPaddleSecret)

	r := mux.NewRouter()
	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	r.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripeWebhook).Methods("POST")
	r.HandleFunc("/webhooks/paddle", webhookHandler.HandlePaddleWebhook).Methods("POST")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(asUser)
	api.HandleFunc("/users/profile", userHandler.GetProfile).Methods("GET")
	api.HandleFunc("/users/profile", userHandler.UpdateProfile).Methods("PUT")
	api.HandleFunc("/users/lifestyle", userHandler.UpdateLifestyle).Methods("PUT")
	api.HandleFunc("/users/stats", userHandler.GetStats).Methods("GET")
	api.HandleFunc("/carbon/calculate", carbonHandler.Calculate).Methods("POST")
	api.HandleFunc("/carbon/history", carbonHandler.GetHistory).Methods("GET")
	api.HandleFunc("/carbon/activity", carbonHandler.LogActivity).Methods("POST")
	api.HandleFunc("/challenges", challengeHandler.ListChallenges).Methods("GET")
	api.HandleFunc("/challenges/{id}", challengeHandler.GetChallenge).Methods("GET")
	api.HandleFunc("/challenges/{id}/start", challengeHandler.StartChallenge).Methods("POST")
	api.HandleFunc("/challenges/{id}/complete", challengeHandler.CompleteChallenge).Methods("POST")
	api.HandleFunc("/challenges/{id}/progress", challengeHandler.UpdateProgress).Methods("PUT")
	api.HandleFunc("/progress/history", progressHandler.GetHistory).Methods("GET")
	api.HandleFunc("/leaderboard/global", progressHandler.GetGlobalLeaderboard).Methods("GET")
	api.HandleFunc("/subscription/status", subscriptionHandler.GetStatus).Methods("GET")
	api.HandleFunc("/subscription/cancel", subscriptionHandler.Cancel).Methods("POST")
	api.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")
	api.HandleFunc("/marketplace/categories", marketplaceHandler.GetCategories).Methods("GET")
	api.HandleFunc("/marketplace/featured", marketplaceHandler.GetFeatured).Methods("GET")
	api.HandleFunc("/marketplace/catalog", marketplaceHandler.GetCatalog).Methods("GET")
	api.HandleFunc("/marketplace/products", marketplaceHandler.ListProducts).Methods("GET")
	api.HandleFunc("/marketplace/products/{id}", marketplaceHandler.GetProduct).Methods("GET")
	api.HandleFunc("/marketplace/products/{id}/click", marketplaceHandler.TrackClick).Methods("POST")

	return &testEnv{store: store, router: r}
}

func (e *testEnv) addUser(t *testing.T, id string) {
	t.Helper()
	u := user.New(id, id+"@example.com", "User "+id, time.Now().AddDate(0, -1, 0))
	u.ClerkID = "clerk_" + id
	require.NoError(t, e.store.CreateUser(context.Background(), u))
}

func (e *testEnv) addChallenge(t *testing.T, id string, premium bool) {
	t.Helper()
	require.NoError(t, e.store.CreateChallenge(context.Background(), &challenge.Definition{
		ID:           id,
		Title:        "Challenge " + id,
		Description:  "Walk instead of driving",
		Category:     challenge.CategoryTransportation,
		Difficulty:   challenge.DifficultyEasy,
		DurationDays: 1,
		Points:       100,
		CarbonSaved:  3,
		IsPremium:    premium,
		IsActive:     true,
	}))
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestChallengeFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1")
	env.addChallenge(t, "c1", false)

	rec := env.do(t, http.MethodPost, "/api/v1/challenges/c1/complete", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/challenges/c1/start", "u1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/challenges/c1/start", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/challenges/c1/progress", "u1", map[string]int{"progress": 60})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/challenges/c1/complete", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result services.CompletionResult
	decodeBody(t, rec, &result)
	assert.Equal(t, 100, result.PointsEarned)
	assert.Equal(t, 100, result.TotalPoints)
	require.NotEmpty(t, result.NewBadges)
	assert.Equal(t, "First Step", result.NewBadges[0].Name)

	rec = env.do(t, http.MethodPost, "/api/v1/challenges/c1/complete", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/challenges/c1", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view services.ChallengeView
	decodeBody(t, rec, &view)
	assert.Equal(t, services.UserStatusCompleted, view.UserStatus)

	rec = env.do(t, http.MethodGet, "/api/v1/leaderboard/global", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board services.GlobalLeaderboard
	decodeBody(t, rec, &board)
	assert.Equal(t, 1, board.UserRank)
}

func TestChallengeErrors(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1")
	env.addChallenge(t, "gold", true)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown challenge", http.MethodGet, "/api/v1/challenges/nope", nil, http.StatusNotFound},
		{"premium challenge", http.MethodGet, "/api/v1/challenges/gold", nil, http.StatusForbidden},
		{"premium start", http.MethodPost, "/api/v1/challenges/gold/start", nil, http.StatusForbidden},
		{"bad category", http.MethodGet, "/api/v1/challenges?category=space", nil, http.StatusBadRequest},
		{"missing progress", http.MethodPut, "/api/v1/challenges/gold/progress", map[string]any{}, http.StatusBadRequest},
		{"progress not started", http.MethodPut, "/api/v1/challenges/gold/progress", map[string]int{"progress": 10}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, "u1", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestRequestsWithoutUserAreUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/users/profile", "/api/v1/carbon/history", "/api/v1/subscription/status"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestCarbonEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1")

	rec := env.do(t, http.MethodPost, "/api/v1/carbon/calculate", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var calc services.CalculationResult
	decodeBody(t, rec, &calc)
	assert.True(t, calc.Degraded)
	assert.Greater(t, calc.CarbonFootprint.Daily, 0.0)

	rec = env.do(t, http.MethodPost, "/api/v1/carbon/activity", "u1", map[string]any{"type": "teleport", "description": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/carbon/activity", "u1", map[string]any{"type": "transport", "description": "Cycled to work", "carbonImpact": -2.1})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/carbon/history?period=abc", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/carbon/history?period=7", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history services.CarbonHistory
	decodeBody(t, rec, &history)
	assert.Equal(t, 7, history.Period)
	assert.Len(t, history.Entries, 1)
}

func TestProgressHistoryDates(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1")

	tests := []struct {
		query  string
		status int
	}{
		{"", http.StatusOK},
		{"?startDate=2025-01-01&endDate=2025-01-31&limit=10", http.StatusOK},
		{"?startDate=2025-01-31T00:00:00Z", http.StatusOK},
		{"?startDate=yesterday", http.StatusBadRequest},
		{"?startDate=2025-02-01&endDate=2025-01-01", http.StatusBadRequest},
		{"?limit=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/progress/history"+tt.query, "u1", nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestProfileAndLifestyle(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1")

	rec := env.do(t, http.MethodPut, "/api/v1/users/lifestyle", "u1", map[string]any{"diet": "carnivore-ish"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/users/lifestyle", "u1", map[string]any{"diet": "vegan"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/v1/users/profile", "u1", map[string]any{"name": "Greta"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/users/profile", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var u user.User
	decodeBody(t, rec, &u)
	assert.Equal(t, "Greta", u.Name)
	assert.Equal(t, "vegan", u.Lifestyle.Diet)

	rec = env.do(t, http.MethodGet, "/api/v1/users/profile", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscriptionAndDevices(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1")

	rec := env.do(t, http.MethodGet, "/api/v1/subscription/status", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st services.SubscriptionStatus
	decodeBody(t, rec, &st)
	assert.False(t, st.IsPremium)

	rec = env.do(t, http.MethodPost, "/api/v1/subscription/cancel", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/notifications/register-device", "u1", map[string]string{"token": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/notifications/register-device", "u1", map[string]string{"token": "fcm-1", "platform": "ios"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
