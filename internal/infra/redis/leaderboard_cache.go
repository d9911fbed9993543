package redis

import (
	"context"
	"encoding/json"
	"time"

	"timed-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "quiz:leaderboard:snapshot"

// LeaderboardCache shares the ranked snapshot between instances for up to ttl.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) Get(ctx context.Context) (domain.Leaderboard, bool) {
	payload, err := c.client.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		return domain.Leaderboard{}, false
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(payload, &lb); err != nil {
		return domain.Leaderboard{}, false
	}
	return lb, true
}

func (c *LeaderboardCache) Set(ctx context.Context, lb domain.Leaderboard) {
	if c.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(lb)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, leaderboardKey, payload, c.ttl).Err()
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, leaderboardKey).Err()
}
