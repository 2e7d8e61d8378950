// Package cache keeps short-lived copies of expensive read models in
// Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const globalLeaderboardKey = "leaderboard:global"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// LeaderboardCache stores one serialized global leaderboard per limit in
// a single hash, so a single DEL invalidates every variant.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) field(limit int) string {
	return "limit:" + strconv.Itoa(limit)
}

// Get decodes the cached leaderboard for limit into out and reports
// whether it was present.
func (c *LeaderboardCache) Get(ctx context.Context, limit int, out any) (bool, error) {
	data, err := c.client.HGet(ctx, globalLeaderboardKey, c.field(limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read leaderboard cache: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode leaderboard cache: %w", err)
	}
	return true, nil
}

func (c *LeaderboardCache) Set(ctx context.Context, limit int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, globalLeaderboardKey, c.field(limit), data)
		pipe.Expire(ctx, globalLeaderboardKey, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store leaderboard cache: %w", err)
	}
	return nil
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, globalLeaderboardKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate leaderboard cache: %w", err)
	}
	return nil
}
