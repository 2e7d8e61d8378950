package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/carbon"
	"ecoStepAPI/internal/gamification"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/user"
	"ecoStepAPI/pkg/logger"
)

const (
	statsEntries        = 30
	recentActivityCount = 7
)

type UserService struct {
	store repository.Store
	now   Clock
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store, now: time.Now}
}

func (s *UserService) SetClock(c Clock) { s.now = c }

// CreateUser registers an identity-provider user. Repeated deliveries
// of the same registration return the existing record.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	if req.ClerkID == "" {
		return nil, apperr.Validation("clerkId is required")
	}

	existing, err := s.store.GetUserByClerkID(ctx, req.ClerkID)
	if err == nil {
		return existing, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	u := user.New(uuid.NewString(), req.Email, req.Name, s.now())
	u.ClerkID = req.ClerkID
	u.ImageURL = req.ImageURL
	if u.Name == "" {
		u.Name = "Eco Warrior"
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			if existing, lookupErr := s.store.GetUserByClerkID(ctx, req.ClerkID); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	logger.Info().Str("user_id", u.ID).Str("clerk_id", u.ClerkID).Msg("user created")
	return u, nil
}

type Identity struct {
	Subject string
	Email   string
	Name    string
}

// ResolvePrincipal maps an authenticated subject to a user. provision
// creates the user on first sight. Suspended and deleted accounts are
// rejected.
func (s *UserService) ResolvePrincipal(ctx context.Context, id Identity, provision bool) (*user.User, error) {
	u, err := s.store.GetUserByClerkID(ctx, id.Subject)
	if apperr.Is(err, apperr.KindNotFound) && provision {
		u, err = s.CreateUser(ctx, &user.CreateUserRequest{ClerkID: id.Subject, Email: id.Email, Name: id.Name})
	}
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("User is not registered")
		}
		return nil, err
	}

	if !u.Active() {
		return nil, apperr.Forbidden("Account is " + string(u.AccountStatus))
	}
	return u, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*user.User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *user.UpdateProfileRequest) (*user.User, error) {
	var updated *user.User
	err := s.store.WithinUser(ctx, userID, func(ctx context.Context, tx repository.UserTx) error {
		u := tx.User()
		if err := req.Apply(u); err != nil {
			return err
		}
		updated = u.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	u, err := s.store.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	return s.UpdateProfile(ctx, u.ID, req)
}

// DeleteUserByClerkID is a soft delete. Ledger history and catalog
// counters are kept.
func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	u, err := s.store.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}

	err = s.store.WithinUser(ctx, u.ID, func(ctx context.Context, tx repository.UserTx) error {
		tx.User().AccountStatus = user.StatusDeleted
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Str("user_id", u.ID).Msg("user soft deleted")
	return nil
}

func (s *UserService) UpdateLifestyle(ctx context.Context, userID string, req *user.UpdateLifestyleRequest) (*carbon.Lifestyle, error) {
	var merged carbon.Lifestyle
	err := s.store.WithinUser(ctx, userID, func(ctx context.Context, tx repository.UserTx) error {
		u := tx.User()
		l, err := req.Merge(u.Lifestyle)
		if err != nil {
			return err
		}
		u.Lifestyle = l
		merged = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func (s *UserService) GetBadges(ctx context.Context, userID string) ([]gamification.Badge, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Badges, nil
}

type UserStats struct {
	Points              int                  `json:"points"`
	Level               int                  `json:"level"`
	Streak              gamification.Streak  `json:"streak"`
	CarbonFootprint     carbon.Footprint     `json:"carbonFootprint"`
	TotalCarbonSaved    float64              `json:"totalCarbonSaved"`
	CompletedChallenges int                  `json:"completedChallenges"`
	ActiveChallenges    int                  `json:"activeChallenges"`
	Badges              []gamification.Badge `json:"badges"`
	RecentActivity      []ledger.Entry       `json:"recentActivity"`
}

func (s *UserService) GetUserStats(ctx context.Context, userID string) (*UserStats, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.ListEntries(ctx, userID, repository.EntryQuery{Limit: statsEntries, NewestFirst: true})
	if err != nil {
		return nil, err
	}

	var saved float64
	for _, e := range entries {
		saved += e.CarbonSaved()
	}

	recent := entries
	if len(recent) > recentActivityCount {
		recent = recent[:recentActivityCount]
	}

	return &UserStats{
		Points:              u.Points,
		Level:               u.Level,
		Streak:              u.Streak,
		CarbonFootprint:     u.Footprint,
		TotalCarbonSaved:    saved,
		CompletedChallenges: u.Challenges.CountCompleted(),
		ActiveChallenges:    u.Challenges.CountActive(),
		Badges:              u.Badges,
		RecentActivity:      recent,
	}, nil
}
