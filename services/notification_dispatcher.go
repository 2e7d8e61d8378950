package services

import (
	"context"
	"sync"
	"time"

	"ecoStepAPI/internal/metrics"
	"ecoStepAPI/internal/notification"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/pkg/logger"
)

type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) ([]string, error)
}

const (
	dispatchWorkers      = 5
	dispatchQueueSize    = 100
	dispatchSendDeadline = 10 * time.Second
)

// NotificationDispatcher fans push messages out to a small worker pool so
// request handlers never wait on the push provider.
type NotificationDispatcher struct {
	devices      repository.DeviceRepository
	pushProvider PushProvider
	jobQueue     chan notification.Message
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewNotificationDispatcher starts the workers. Non-positive sizes fall
// back to 5 workers and a queue of 100.
func NewNotificationDispatcher(devices repository.DeviceRepository, workers, queueSize int) *NotificationDispatcher {
	if workers <= 0 {
		workers = dispatchWorkers
	}
	if queueSize <= 0 {
		queueSize = dispatchQueueSize
	}
	d := &NotificationDispatcher{
		devices:  devices,
		jobQueue: make(chan notification.Message, queueSize),
		stopChan: make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// SetPushProvider injects the FCM client from main.
func (d *NotificationDispatcher) SetPushProvider(p PushProvider) {
	d.pushProvider = p
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case msg := <-d.jobQueue:
			d.deliver(msg)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) deliver(msg notification.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchSendDeadline)
	defer cancel()

	if d.pushProvider == nil {
		metrics.PushNotifications.WithLabelValues("skipped").Inc()
		return
	}

	devices, err := d.devices.ListDevices(ctx, msg.UserID)
	if err != nil {
		metrics.PushNotifications.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Str("user_id", msg.UserID).Msg("failed to load device tokens")
		return
	}
	if len(devices) == 0 {
		metrics.PushNotifications.WithLabelValues("skipped").Inc()
		return
	}

	tokens := make([]notification.DeviceToken, len(devices))
	for i, dev := range devices {
		tokens[i] = notification.DeviceToken{Token: dev.Token, Platform: dev.Platform}
	}

	stale, err := d.pushProvider.SendPush(ctx, tokens, msg.Title, msg.Body, msg.Data)
	for _, t := range stale {
		if delErr := d.devices.DeleteDeviceToken(ctx, t); delErr != nil {
			logger.Warn().Err(delErr).Msg("failed to drop stale device token")
		}
	}
	if err != nil {
		metrics.PushNotifications.WithLabelValues("failed").Inc()
		logger.Warn().Err(err).Str("user_id", msg.UserID).Str("type", string(msg.Type)).Msg("push failed")
		return
	}
	metrics.PushNotifications.WithLabelValues("sent").Inc()
}

// Notify queues messages for delivery without blocking. Messages that do
// not fit in the queue are dropped.
func (d *NotificationDispatcher) Notify(ctx context.Context, msgs ...notification.Message) {
	for _, m := range msgs {
		select {
		case <-d.stopChan:
			return
		default:
		}
		select {
		case d.jobQueue <- m:
		default:
			metrics.PushNotifications.WithLabelValues("dropped").Inc()
			logger.Warn().Str("user_id", m.UserID).Msg("notification queue full, message dropped")
		}
	}
}

// Stop halts the workers. Queued messages that were not picked up are
// discarded.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
	d.wg.Wait()
}
