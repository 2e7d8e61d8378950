package repository

import (
	"context"
	"time"

	"ecoStepAPI/internal/aggregate"
	"ecoStepAPI/internal/challenge"
	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/product"
	"ecoStepAPI/internal/user"
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error)
	// TopUsersByPoints lists active users, highest points first.
	TopUsersByPoints(ctx context.Context, limit int) ([]user.User, error)
	// CountUsersAbove counts active users with strictly more points.
	CountUsersAbove(ctx context.Context, points int) (int, error)
	// ExpirePremium clears the premium flag of users whose entitlement
	// ended before now and returns their ids.
	ExpirePremium(ctx context.Context, now time.Time) ([]string, error)
}

type ChallengeRepository interface {
	CreateChallenge(ctx context.Context, d *challenge.Definition) error
	GetChallenge(ctx context.Context, id string) (*challenge.Definition, error)
	GetChallengeByTitle(ctx context.Context, title string) (*challenge.Definition, error)
	GetChallenges(ctx context.Context, ids []string) (map[string]challenge.Definition, error)
	// ListChallenges returns matches ordered by participants descending.
	ListChallenges(ctx context.Context, f challenge.Filter) ([]challenge.Definition, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *product.Product) error
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	GetProductByName(ctx context.Context, name string) (*product.Product, error)
	// ListProducts returns matches in the filter's sort order.
	ListProducts(ctx context.Context, f product.Filter) ([]product.Product, error)
	// CountProductsByCategory counts active products, premium ones included.
	CountProductsByCategory(ctx context.Context) (map[product.Category]int, error)
	RecordProductView(ctx context.Context, id string) error
	RecordProductClick(ctx context.Context, id string) error
}

// EntryQuery bounds a range scan over one user's ledger. Zero times are
// open ends; both bounds are inclusive.
type EntryQuery struct {
	From        time.Time
	To          time.Time
	Limit       int
	NewestFirst bool
}

type LedgerRepository interface {
	GetEntry(ctx context.Context, userID string, day time.Time) (*ledger.Entry, error)
	ListEntries(ctx context.Context, userID string, q EntryQuery) ([]ledger.Entry, error)
	// WeeklyTotals groups all active users' entries since the given day
	// and returns them ranked.
	WeeklyTotals(ctx context.Context, since time.Time, limit int) ([]aggregate.WeeklyTotal, error)
}

type Device struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DeviceRepository interface {
	UpsertDevice(ctx context.Context, d Device) error
	ListDevices(ctx context.Context, userID string) ([]Device, error)
	DeleteDeviceToken(ctx context.Context, token string) error
}

// UserTx is the unit of work for one user. The user returned by User is
// a private copy; everything changed through a UserTx is committed
// together or not at all.
type UserTx interface {
	User() *user.User
	// Entry returns the ledger entry for day, creating it on first use.
	Entry(ctx context.Context, day time.Time) (*ledger.Entry, error)
	AddParticipant(ctx context.Context, challengeID string) error
	AddCompletion(ctx context.Context, challengeID string) error
}

type Store interface {
	UserRepository
	ChallengeRepository
	ProductRepository
	LedgerRepository
	DeviceRepository

	// WithinUser runs fn with exclusive access to one user's state.
	// Concurrent calls for the same user are serialized.
	WithinUser(ctx context.Context, userID string, fn func(ctx context.Context, tx UserTx) error) error
	Ping(ctx context.Context) error
	Close()
}
