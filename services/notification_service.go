package services

import (
	"context"
	"time"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/notification"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/pkg/logger"
)

type NotificationService struct {
	store    repository.Store
	notifier Notifier
	now      Clock
}

func NewNotificationService(store repository.Store, notifier Notifier) *NotificationService {
	return &NotificationService{store: store, notifier: notifier, now: time.Now}
}

func (s *NotificationService) SetClock(c Clock) { s.now = c }

// RegisterDevice stores or refreshes a push token. A token moves to the
// latest user that registers it.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID string, req *notification.RegisterDeviceRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	err := s.store.UpsertDevice(ctx, repository.Device{
		UserID:    userID,
		Token:     req.Token,
		Platform:  req.Platform,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return err
	}

	logger.Debug().Str("user_id", userID).Str("platform", req.Platform).Msg("device registered")
	return nil
}

func (s *NotificationService) UnregisterDevice(ctx context.Context, req *notification.UnregisterDeviceRequest) error {
	if req.Token == "" {
		return apperr.Validation("Device token is required")
	}
	return s.store.DeleteDeviceToken(ctx, req.Token)
}

func (s *NotificationService) SendTest(ctx context.Context, userID string) error {
	if s.notifier == nil {
		return apperr.New(apperr.KindInternal, "Push notifications are not configured")
	}
	s.notifier.Notify(ctx, notification.Message{
		UserID: userID,
		Type:   notification.NotificationTest,
		Title:  "EcoStep",
		Body:   "Push notifications are working.",
		Data:   map[string]any{"type": string(notification.NotificationTest)},
	})
	return nil
}
