// Package memory is an in-process Store used by tests and by the
// "memory" storage driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ecoStepAPI/internal/aggregate"
	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/product"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/user"
)

type Store struct {
	loc *time.Location

	mu         sync.RWMutex
	users      map[string]*user.User
	challenges map[string]*challenge.Definition
	products   map[string]*product.Product
	entries    map[string]map[string]*ledger.Entry
	devices    map[string]repository.Device

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

var _ repository.Store = (*Store)(nil)

func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		loc:        loc,
		users:      make(map[string]*user.User),
		challenges: make(map[string]*challenge.Definition),
		products:   make(map[string]*product.Product),
		entries:    make(map[string]map[string]*ledger.Entry),
		devices:    make(map[string]repository.Device),
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() {}

func (s *Store) dayKey(day time.Time) string {
	return ledger.Day(day, s.loc).Format(time.DateOnly)
}

func (s *Store) userLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return apperr.Conflict("User already exists")
	}
	for _, existing := range s.users {
		if u.ClerkID != "" && existing.ClerkID == u.ClerkID {
			return apperr.Conflict("User already exists")
		}
		if u.Email != "" && existing.Email == u.Email {
			return apperr.Conflict("Email already registered")
		}
	}
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	return u.Clone(), nil
}

func (s *Store) findUser(match func(*user.User) bool) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (s *Store) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	return s.findUser(func(u *user.User) bool { return clerkID != "" && u.ClerkID == clerkID })
}

func (s *Store) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	return s.findUser(func(u *user.User) bool { return customerID != "" && u.StripeCustomerID == customerID })
}

func (s *Store) TopUsersByPoints(ctx context.Context, limit int) ([]user.User, error) {
	s.mu.RLock()
	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Active() {
			out = append(out, *u.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountUsersAbove(ctx context.Context, points int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, u := range s.users {
		if u.Active() && u.Points > points {
			n++
		}
	}
	return n, nil
}

func (s *Store) ExpirePremium(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	var candidates []string
	for id, u := range s.users {
		if u.IsPremium && u.PremiumUntil != nil && !now.Before(*u.PremiumUntil) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	var expired []string
	for _, id := range candidates {
		changed := false
		err := s.WithinUser(ctx, id, func(ctx context.Context, tx repository.UserTx) error {
			u := tx.User()
			if u.IsPremium && u.PremiumUntil != nil && !now.Before(*u.PremiumUntil) {
				u.RevokePremium(false)
				changed = true
			}
			return nil
		})
		if err != nil {
			return expired, err
		}
		if changed {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	return expired, nil
}

// Challenges

func (s *Store) CreateChallenge(ctx context.Context, d *challenge.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[d.ID]; ok {
		return apperr.Conflict("Challenge already exists")
	}
	for _, existing := range s.challenges {
		if existing.Title == d.Title {
			return apperr.Conflict("Challenge already exists")
		}
	}
	c := cloneDefinition(d)
	s.challenges[d.ID] = &c
	return nil
}

func (s *Store) GetChallenge(ctx context.Context, id string) (*challenge.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.challenges[id]
	if !ok {
		return nil, apperr.NotFound("Challenge not found")
	}
	c := cloneDefinition(d)
	return &c, nil
}

func (s *Store) GetChallengeByTitle(ctx context.Context, title string) (*challenge.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.challenges {
		if d.Title == title {
			c := cloneDefinition(d)
			return &c, nil
		}
	}
	return nil, apperr.NotFound("Challenge not found")
}

func (s *Store) GetChallenges(ctx context.Context, ids []string) (map[string]challenge.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]challenge.Definition, len(ids))
	for _, id := range ids {
		if d, ok := s.challenges[id]; ok {
			out[id] = cloneDefinition(d)
		}
	}
	return out, nil
}

func (s *Store) ListChallenges(ctx context.Context, f challenge.Filter) ([]challenge.Definition, error) {
	s.mu.RLock()
	out := []challenge.Definition{}
	for _, d := range s.challenges {
		if f.Match(d) {
			out = append(out, cloneDefinition(d))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Stats.TotalParticipants != out[j].Stats.TotalParticipants {
			return out[i].Stats.TotalParticipants > out[j].Stats.TotalParticipants
		}
		return out[i].Title < out[j].Title
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func cloneDefinition(d *challenge.Definition) challenge.Definition {
	c := *d
	c.Tips = append([]string(nil), d.Tips...)
	c.Tags = append([]string(nil), d.Tags...)
	return c
}

// Ledger

func (s *Store) GetEntry(ctx context.Context, userID string, day time.Time) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[userID][s.dayKey(day)]
	if !ok {
		return nil, apperr.NotFound("No entry for this day")
	}
	if err := e.Verify(); err != nil {
		return nil, apperr.Internal("failed to load ledger entry", err)
	}
	return e.Clone(), nil
}

func (s *Store) ListEntries(ctx context.Context, userID string, q repository.EntryQuery) ([]ledger.Entry, error) {
	s.mu.RLock()
	out := []ledger.Entry{}
	for _, e := range s.entries[userID] {
		if !q.From.IsZero() && e.Date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.Date.After(q.To) {
			continue
		}
		if err := e.Verify(); err != nil {
			s.mu.RUnlock()
			return nil, apperr.Internal("failed to load ledger entry", err)
		}
		out = append(out, *e.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if q.NewestFirst {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Date.Before(out[j].Date)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) WeeklyTotals(ctx context.Context, since time.Time, limit int) ([]aggregate.WeeklyTotal, error) {
	s.mu.RLock()
	var week []ledger.Entry
	for userID, days := range s.entries {
		u, ok := s.users[userID]
		if !ok || !u.Active() {
			continue
		}
		for _, e := range days {
			if !e.Date.Before(since) {
				week = append(week, *e)
			}
		}
	}
	s.mu.RUnlock()

	totals := aggregate.WeeklyTotals(week)
	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}

// Devices

func (s *Store) UpsertDevice(ctx context.Context, d repository.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.Token] = d
	return nil
}

func (s *Store) ListDevices(ctx context.Context, userID string) ([]repository.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := []repository.Device{}
	for _, d := range s.devices {
		if d.UserID == userID {
			devices = append(devices, d)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Token < devices[j].Token })
	return devices, nil
}

func (s *Store) DeleteDeviceToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, token)
	return nil
}
