package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/carbon"
	"ecoStepAPI/internal/user"
)

func TestCreateUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewUserService(s)
	svc.SetClock(fixedClock)

	first, err := svc.CreateUser(ctx, &user.CreateUserRequest{ClerkID: "clerk_1", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Eco Warrior", first.Name)
	assert.Equal(t, 1, first.Level)
	assert.Equal(t, testNow, first.CreatedAt)

	again, err := svc.CreateUser(ctx, &user.CreateUserRequest{ClerkID: "clerk_1", Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = svc.CreateUser(ctx, &user.CreateUserRequest{ClerkID: "clerk_2", Email: "ana@example.com"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.CreateUser(ctx, &user.CreateUserRequest{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestResolvePrincipal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewUserService(s)

	_, err := svc.ResolvePrincipal(ctx, Identity{Subject: "clerk_1"}, false)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	u, err := svc.ResolvePrincipal(ctx, Identity{Subject: "clerk_1", Email: "a@example.com", Name: "Ana"}, true)
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)

	again, err := svc.ResolvePrincipal(ctx, Identity{Subject: "clerk_1"}, false)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	require.NoError(t, svc.DeleteUserByClerkID(ctx, "clerk_1"))
	_, err = svc.ResolvePrincipal(ctx, Identity{Subject: "clerk_1"}, true)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestUpdateLifestyleMergesAndValidates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	addUser(t, s, "u1", nil)
	svc := NewUserService(s)

	diet := carbon.DietVegan
	l, err := svc.UpdateLifestyle(ctx, "u1", &user.UpdateLifestyleRequest{Diet: &diet})
	require.NoError(t, err)
	assert.Equal(t, carbon.DietVegan, l.Diet)
	assert.Equal(t, carbon.DefaultLifestyle().Transportation, l.Transportation)

	bad := "carnivore-plus"
	_, err = svc.UpdateLifestyle(ctx, "u1", &user.UpdateLifestyleRequest{Diet: &bad})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, carbon.DietVegan, u.Lifestyle.Diet)
}

func TestGetUserStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	addUser(t, s, "u1", withPoints(40))
	for i := 0; i < 9; i++ {
		earnOn(t, s, "u1", testNow.AddDate(0, 0, -i), 5)
	}
	svc := NewUserService(s)

	stats, err := svc.GetUserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, stats.Points)
	assert.InDelta(t, 9.0, stats.TotalCarbonSaved, 1e-9)
	assert.Len(t, stats.RecentActivity, 7)
}

func TestUpdateProfileRejectsTakenEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewUserService(s)

	_, err := svc.CreateUser(ctx, &user.CreateUserRequest{ClerkID: "clerk_a", Email: "a@example.com"})
	require.NoError(t, err)
	b, err := svc.CreateUser(ctx, &user.CreateUserRequest{ClerkID: "clerk_b", Email: "b@example.com"})
	require.NoError(t, err)

	email := "a@example.com"
	_, err = svc.UpdateProfile(ctx, b.ID, &user.UpdateProfileRequest{Email: &email})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}
