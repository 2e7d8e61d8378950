package memory

import (
	"context"
	"time"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/user"
)

type userTx struct {
	store        *Store
	user         *user.User
	entries      map[string]*ledger.Entry
	participants map[string]int64
	completions  map[string]int64
}

func (t *userTx) User() *user.User { return t.user }

func (t *userTx) Entry(ctx context.Context, day time.Time) (*ledger.Entry, error) {
	key := t.store.dayKey(day)
	if e, ok := t.entries[key]; ok {
		return e, nil
	}

	t.store.mu.RLock()
	existing, ok := t.store.entries[t.user.ID][key]
	t.store.mu.RUnlock()

	var e *ledger.Entry
	if ok {
		if err := existing.Verify(); err != nil {
			return nil, apperr.Internal("failed to load ledger entry", err)
		}
		e = existing.Clone()
	} else {
		e = ledger.NewEntry(t.user.ID, ledger.Day(day, t.store.loc))
	}
	t.entries[key] = e
	return e, nil
}

func (t *userTx) challengeExists(id string) error {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if _, ok := t.store.challenges[id]; !ok {
		return apperr.NotFound("Challenge not found")
	}
	return nil
}

func (t *userTx) AddParticipant(ctx context.Context, challengeID string) error {
	if err := t.challengeExists(challengeID); err != nil {
		return err
	}
	t.participants[challengeID]++
	return nil
}

func (t *userTx) AddCompletion(ctx context.Context, challengeID string) error {
	if err := t.challengeExists(challengeID); err != nil {
		return err
	}
	t.completions[challengeID]++
	return nil
}

// WithinUser works on copies and swaps them in only when fn succeeds.
func (s *Store) WithinUser(ctx context.Context, userID string, fn func(ctx context.Context, tx repository.UserTx) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	u, ok := s.users[userID]
	var snapshot *user.User
	if ok {
		snapshot = u.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return apperr.NotFound("User not found")
	}

	tx := &userTx{
		store:        s,
		user:         snapshot,
		entries:      make(map[string]*ledger.Entry),
		participants: make(map[string]int64),
		completions:  make(map[string]int64),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.user.Email != "" {
		for id, other := range s.users {
			if id != userID && other.Email == tx.user.Email {
				return apperr.Conflict("Email already registered")
			}
		}
	}

	tx.user.UpdatedAt = now
	s.users[userID] = tx.user

	if len(tx.entries) > 0 && s.entries[userID] == nil {
		s.entries[userID] = make(map[string]*ledger.Entry)
	}
	for key, e := range tx.entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.UpdatedAt = now
		s.entries[userID][key] = e
	}
	for id, n := range tx.participants {
		if d, ok := s.challenges[id]; ok {
			d.Stats.TotalParticipants += n
		}
	}
	for id, n := range tx.completions {
		if d, ok := s.challenges[id]; ok {
			d.Stats.TotalCompletions += n
		}
	}
	return nil
}
