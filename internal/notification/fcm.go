package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"ecoStepAPI/pkg/logger"
)

type FCMService struct {
	client *messaging.Client
}

// NewFCMService prefers base64 credentials from FCM_SERVICE_ACCOUNT_JSON
// and falls back to a service account key file.
func NewFCMService(ctx context.Context, localFilePath string) (*FCMService, error) {
	var opt option.ClientOption

	if encoded := os.Getenv("FCM_SERVICE_ACCOUNT_JSON"); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FCM_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		logger.Info().Msg("FCM: using credentials from FCM_SERVICE_ACCOUNT_JSON")
	} else {
		if _, err := os.Stat(localFilePath); err != nil {
			return nil, fmt.Errorf("firebase credentials file %s: %w", localFilePath, err)
		}
		opt = option.WithCredentialsFile(localFilePath)
		logger.Info().Str("path", localFilePath).Msg("FCM: using credentials file")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// SendPush sends to each token individually. It returns the tokens FCM
// reports as unregistered so callers can forget them, and an error only
// when every send failed.
func (s *FCMService) SendPush(ctx context.Context, tokens []DeviceToken, title, body string, data map[string]any) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	stringData := make(map[string]string, len(data))
	for k, v := range data {
		stringData[k] = fmt.Sprintf("%v", v)
	}

	var (
		stale     []string
		succeeded int
		failed    int
	)
	for _, t := range tokens {
		message := &messaging.Message{
			Token: t.Token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: stringData,
		}
		switch t.Platform {
		case PlatformIOS:
			message.APNS = &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
			}
		case PlatformWeb:
			message.Webpush = &messaging.WebpushConfig{
				Notification: &messaging.WebpushNotification{Title: title, Body: body},
			}
		default:
			message.Android = &messaging.AndroidConfig{
				Priority:     "high",
				Notification: &messaging.AndroidNotification{Sound: "default"},
			}
		}

		if _, err := s.client.Send(ctx, message); err != nil {
			if messaging.IsUnregistered(err) {
				stale = append(stale, t.Token)
			}
			logger.Warn().Err(err).Str("platform", t.Platform).Msg("FCM: send failed")
			failed++
			continue
		}
		succeeded++
	}

	logger.Debug().Int("sent", succeeded).Int("failed", failed).Msg("FCM: batch finished")

	if succeeded == 0 && failed > 0 {
		return stale, fmt.Errorf("all %d push notifications failed", failed)
	}
	return stale, nil
}
