package handlers

import (
	"context"
	"net/http"
	"time"

	"ecoStepAPI/services"
)

type SubscriptionHandler struct {
	subscriptionService *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

func (h *SubscriptionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	status, err := h.subscriptionService.Status(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

func (h *SubscriptionHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	session, err := h.subscriptionService.CreateCheckout(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	status, err := h.subscriptionService.Cancel(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

func (h *SubscriptionHandler) GetPaddlePrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	prices, err := h.subscriptionService.PaddlePrices(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, prices)
}

type paddleCheckoutRequest struct {
	PriceID string `json:"priceId"`
}

func (h *SubscriptionHandler) CreatePaddleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	var req paddleCheckoutRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.subscriptionService.CreatePaddleCheckout(ctx, userID, req.PriceID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"transactionId": session.ID,
		"checkoutUrl":   session.URL,
	})
}
