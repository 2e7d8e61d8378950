package handlers

import (
	"context"
	"net/http"
	"time"

	"ecoStepAPI/services"
)

type CarbonHandler struct {
	carbonService *services.CarbonService
}

func NewCarbonHandler(carbonService *services.CarbonService) *CarbonHandler {
	return &CarbonHandler{
		carbonService: carbonService,
	}
}

// Calculate may wait on the remote estimator, so it gets a longer
// deadline than the other handlers.
func (h *CarbonHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	result, err := h.carbonService.Calculate(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *CarbonHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
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

	history, err := h.carbonService.History(ctx, userID, period)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}

func (h *CarbonHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	var req services.ActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.carbonService.LogActivity(ctx, userID, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, entry)
}

func (h *CarbonHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	report, err := h.carbonService.Insights(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}
