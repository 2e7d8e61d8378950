package handlers

import (
	"context"
	"net/http"
	"time"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/services"
)

type ProgressHandler struct {
	progressService    *services.ProgressService
	leaderboardService *services.LeaderboardService
}

func NewProgressHandler(progressService *services.ProgressService, leaderboardService *services.LeaderboardService) *ProgressHandler {
	return &ProgressHandler{
		progressService:    progressService,
		leaderboardService: leaderboardService,
	}
}

func (h *ProgressHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	dashboard, err := h.progressService.Dashboard(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, dashboard)
}

// GetHistory accepts startDate and endDate as YYYY-MM-DD or RFC 3339.
func (h *ProgressHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	q, err := parseHistoryQuery(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	entries, err := h.progressService.History(ctx, userID, q)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

func parseHistoryQuery(r *http.Request) (services.HistoryQuery, error) {
	var q services.HistoryQuery
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return q, err
	}
	q.Limit = limit

	if q.StartDate, err = queryDate(r, "startDate"); err != nil {
		return q, err
	}
	if q.EndDate, err = queryDate(r, "endDate"); err != nil {
		return q, err
	}
	return q, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("Query parameter '" + name + "' must be a date (YYYY-MM-DD)")
}

func (h *ProgressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	stats, err := h.progressService.Stats(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func (h *ProgressHandler) GetCharts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	period, err := queryInt(r, "period", 0)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	charts, err := h.progressService.Charts(ctx, userID, period)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, charts)
}

func (h *ProgressHandler) GetGlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	board, err := h.leaderboardService.Global(ctx, userID, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, board)
}

func (h *ProgressHandler) GetWeeklyLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	board, err := h.leaderboardService.Weekly(ctx, userID, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, board)
}
