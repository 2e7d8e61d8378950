package services

import (
	"context"
	"time"

	"ecoStepAPI/internal/events"
	"ecoStepAPI/internal/notification"
	"ecoStepAPI/pkg/logger"
)

// Clock is injected so tests can pin "now".
type Clock func() time.Time

type EventPublisher interface {
	Publish(ctx context.Context, evs ...events.Event) error
}

type Notifier interface {
	Notify(ctx context.Context, msgs ...notification.Message)
}

// LeaderboardCache is satisfied by cache.LeaderboardCache.
type LeaderboardCache interface {
	Get(ctx context.Context, limit int, out any) (bool, error)
	Set(ctx context.Context, limit int, v any) error
	Invalidate(ctx context.Context) error
}

// publish runs after a commit. Failures are logged only; the state
// change has already happened.
func publish(ctx context.Context, p EventPublisher, evs ...events.Event) {
	if p == nil || len(evs) == 0 {
		return
	}
	if err := p.Publish(ctx, evs...); err != nil {
		logger.Warn().Err(err).Str("event", string(evs[0].Type)).Msg("failed to publish events")
	}
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
