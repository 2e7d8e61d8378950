package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	UserID string `json:"userId"`
	Points int    `json:"points"`
}

func TestLeaderboardCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client, err := NewRedisClient(ctx, RedisConfig{Addr: addr, DB: 15})
	require.NoError(t, err)
	defer client.Close()

	c := NewLeaderboardCache(client, time.Minute)
	require.NoError(t, c.Invalidate(ctx))

	var got []row
	hit, err := c.Get(ctx, 10, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	want := []row{{UserID: "a", Points: 1200}, {UserID: "b", Points: 900}}
	require.NoError(t, c.Set(ctx, 10, want))

	hit, err = c.Get(ctx, 10, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)

	hit, err = c.Get(ctx, 5, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Invalidate(ctx))
	hit, err = c.Get(ctx, 10, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestField(t *testing.T) {
	c := NewLeaderboardCache(nil, 0)
	assert.Equal(t, "limit:100", c.field(100))
	assert.Equal(t, 30*time.Second, c.ttl)
}
