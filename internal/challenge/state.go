package challenge

import (
	"sort"
	"time"

	"ecoStepAPI/internal/apperr"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// State is a user's relationship to one challenge. Absence from States
// means the challenge has not been started.
type State struct {
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	Progress    int        `json:"progress"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// States is keyed by challenge id, so a challenge is in at most one
// state per user.
type States map[string]State

type ActiveEntry struct {
	ChallengeID string    `json:"challengeId"`
	StartedAt   time.Time `json:"startedAt"`
	Progress    int       `json:"progress"`
}

func (s States) Start(id string, now time.Time) error {
	if st, ok := s[id]; ok {
		if st.Status == StatusCompleted {
			return apperr.Conflict("Challenge already completed")
		}
		return apperr.Conflict("Challenge already active")
	}
	s[id] = State{Status: StatusActive, StartedAt: now}
	return nil
}

// Complete moves an active challenge to completed. Completion requires
// a prior start and happens at most once.
func (s States) Complete(id string, now time.Time) error {
	st, ok := s[id]
	if !ok {
		return apperr.Conflict("Challenge not active. Please start it first.")
	}
	if st.Status == StatusCompleted {
		return apperr.Conflict("Challenge already completed")
	}
	completedAt := now
	st.Status = StatusCompleted
	st.Progress = 100
	st.CompletedAt = &completedAt
	s[id] = st
	return nil
}

func (s States) SetProgress(id string, progress int) error {
	if progress < 0 || progress > 100 {
		return apperr.Validation("Progress must be between 0 and 100")
	}
	st, ok := s[id]
	if !ok || st.Status != StatusActive {
		return apperr.Conflict("Challenge not active")
	}
	st.Progress = progress
	s[id] = st
	return nil
}

func (s States) IsActive(id string) bool {
	st, ok := s[id]
	return ok && st.Status == StatusActive
}

func (s States) IsCompleted(id string) bool {
	st, ok := s[id]
	return ok && st.Status == StatusCompleted
}

// Active lists active entries, oldest start first.
func (s States) Active() []ActiveEntry {
	out := []ActiveEntry{}
	for id, st := range s {
		if st.Status == StatusActive {
			out = append(out, ActiveEntry{ChallengeID: id, StartedAt: st.StartedAt, Progress: st.Progress})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ChallengeID < out[j].ChallengeID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// CompletedIDs lists completed challenge ids in completion order.
func (s States) CompletedIDs() []string {
	type done struct {
		id string
		at time.Time
	}
	var completed []done
	for id, st := range s {
		if st.Status == StatusCompleted && st.CompletedAt != nil {
			completed = append(completed, done{id, *st.CompletedAt})
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		if completed[i].at.Equal(completed[j].at) {
			return completed[i].id < completed[j].id
		}
		return completed[i].at.Before(completed[j].at)
	})

	ids := make([]string, 0, len(completed))
	for _, c := range completed {
		ids = append(ids, c.id)
	}
	return ids
}

func (s States) CountCompleted() int {
	n := 0
	for _, st := range s {
		if st.Status == StatusCompleted {
			n++
		}
	}
	return n
}

func (s States) CountActive() int {
	return len(s) - s.CountCompleted()
}

func (s States) Clone() States {
	out := make(States, len(s))
	for id, st := range s {
		if st.CompletedAt != nil {
			t := *st.CompletedAt
			st.CompletedAt = &t
		}
		out[id] = st
	}
	return out
}
