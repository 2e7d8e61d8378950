package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/internal/events"
	"ecoStepAPI/internal/notification"
	"ecoStepAPI/internal/store/memory"
	"ecoStepAPI/internal/user"
)

// Wednesday; the local week started on Sunday 2025-03-30.
var testNow = time.Date(2025, 4, 2, 15, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	return memory.New(time.UTC)
}

func addUser(t *testing.T, s *memory.Store, id string, mutate func(u *user.User)) *user.User {
	t.Helper()
	u := user.New(id, id+"@example.com", "User "+id, testNow.AddDate(0, -1, 0))
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func addChallenge(t *testing.T, s *memory.Store, id string, mutate func(d *challenge.Definition)) *challenge.Definition {
	t.Helper()
	d := &challenge.Definition{
		ID:           id,
		Title:        "Challenge " + id,
		Description:  "Do the thing",
		Category:     challenge.CategoryEnergy,
		Difficulty:   challenge.DifficultyEasy,
		DurationDays: 1,
		Points:       100,
		CarbonSaved:  2.5,
		IsActive:     true,
	}
	if mutate != nil {
		mutate(d)
	}
	require.NoError(t, s.CreateChallenge(context.Background(), d))
	return d
}

func premiumUntil(until time.Time) func(u *user.User) {
	return func(u *user.User) { u.GrantPremium(until) }
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evs ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *recordingNotifier) Notify(ctx context.Context, msgs ...notification.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msgs...)
}

type recordingMailer struct {
	mu       sync.Mutex
	failed   []string
	canceled []string
}

func (m *recordingMailer) SendPaymentFailed(ctx context.Context, to, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, to)
	return nil
}

func (m *recordingMailer) SendSubscriptionCanceled(ctx context.Context, to, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceled = append(m.canceled, to)
	return nil
}

type countingCache struct {
	mu          sync.Mutex
	invalidated int
}

func (c *countingCache) Get(ctx context.Context, limit int, out any) (bool, error) { return false, nil }
func (c *countingCache) Set(ctx context.Context, limit int, v any) error { return nil }
func (c *countingCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	return nil
}
