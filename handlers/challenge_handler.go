package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	q := services.ListQuery{
		Category:   challenge.Category(r.URL.Query().Get("category")),
		Difficulty: challenge.Difficulty(r.URL.Query().Get("difficulty")),
	}

	challenges, err := h.challengeService.ListChallenges(ctx, userID, q)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetFeatured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challenges, err := h.challengeService.FeaturedChallenges(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	challenges, err := h.challengeService.DailyChallenges(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	view, err := h.challengeService.GetChallenge(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *ChallengeHandler) StartChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	active, err := h.challengeService.StartChallenge(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, active)
}

func (h *ChallengeHandler) CompleteChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	result, err := h.challengeService.CompleteChallenge(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

type progressRequest struct {
	Progress *int `json:"progress"`
}

func (h *ChallengeHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	var req progressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Progress == nil {
		respondWithError(w, http.StatusBadRequest, "Field 'progress' is required")
		return
	}

	state, err := h.challengeService.UpdateProgress(ctx, userID, mux.Vars(r)["id"], *req.Progress)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, state)
}

func (h *ChallengeHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	active, err := h.challengeService.ActiveChallenges(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, active)
}

func (h *ChallengeHandler) GetCompleted(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	completed, err := h.challengeService.CompletedChallenges(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, completed)
}
