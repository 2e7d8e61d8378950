// Package postgres implements the repository.Store on pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/user"
)

type Store struct {
	db  *pgxpool.Pool
	loc *time.Location
}

var _ repository.Store = (*Store)(nil)

func New(db *pgxpool.Pool, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: db, loc: loc}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

type userTx struct {
	store   *Store
	tx      pgx.Tx
	user    *user.User
	entries map[string]*ledger.Entry
}

func (t *userTx) User() *user.User { return t.user }

func (t *userTx) Entry(ctx context.Context, day time.Time) (*ledger.Entry, error) {
	key := t.store.dateParam(day)
	if e, ok := t.entries[key]; ok {
		return e, nil
	}

	e, err := t.store.getEntry(ctx, t.tx, t.user.ID, day)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		e = ledger.NewEntry(t.user.ID, ledger.Day(day, t.store.loc))
	}
	t.entries[key] = e
	return e, nil
}

func (t *userTx) bump(ctx context.Context, column, challengeID string) error {
	if !validID(challengeID) {
		return apperr.NotFound("Challenge not found")
	}
	tag, err := t.tx.Exec(ctx,
		fmt.Sprintf(`UPDATE challenges SET %[1]s = %[1]s + 1, updated_at = NOW() WHERE id = $1`, column),
		challengeID)
	if err != nil {
		return fmt.Errorf("failed to update challenge stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Challenge not found")
	}
	return nil
}

func (t *userTx) AddParticipant(ctx context.Context, challengeID string) error {
	return t.bump(ctx, "total_participants", challengeID)
}

func (t *userTx) AddCompletion(ctx context.Context, challengeID string) error {
	return t.bump(ctx, "total_completions", challengeID)
}

// WithinUser locks the user row for the lifetime of one transaction, so
// concurrent calls for the same user queue up in Postgres.
func (s *Store) WithinUser(ctx context.Context, userID string, fn func(ctx context.Context, tx repository.UserTx) error) error {
	if !validID(userID) {
		return apperr.NotFound("User not found")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := s.loadUser(ctx, tx, "u.id = $1", userID, true)
	if err != nil {
		return err
	}

	utx := &userTx{
		store:   s,
		tx:      tx,
		user:    u,
		entries: make(map[string]*ledger.Entry),
	}
	if err := fn(ctx, utx); err != nil {
		return err
	}

	if err := s.saveUser(ctx, tx, utx.user); err != nil {
		return err
	}
	for _, e := range utx.entries {
		if err := s.saveEntry(ctx, tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
