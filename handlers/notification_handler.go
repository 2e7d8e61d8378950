package handlers

import (
	"context"
	"net/http"
	"time"

	"ecoStepAPI/internal/notification"
	"ecoStepAPI/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	var req notification.RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.notificationService.RegisterDevice(ctx, userID, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Device registered"})
}

func (h *NotificationHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := authenticatedUser(ctx, w); !ok {
		return
	}

	var req notification.UnregisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.notificationService.UnregisterDevice(ctx, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Device unregistered"})
}

func (h *NotificationHandler) SendTestNotification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	if err := h.notificationService.SendTest(ctx, userID); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Test notification queued"})
}
