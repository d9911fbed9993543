package memory

import (
	"context"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

// LeaderboardCache keeps one ranked snapshot for up to ttl.
type LeaderboardCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu        sync.RWMutex
	snapshot  *domain.Leaderboard
	expiresAt time.Time
}

func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{ttl: ttl, clock: time.Now}
}

func (c *LeaderboardCache) Get(_ context.Context) (domain.Leaderboard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil || !c.expiresAt.After(c.clock()) {
		return domain.Leaderboard{}, false
	}
	return *c.snapshot, true
}

func (c *LeaderboardCache) Set(_ context.Context, lb domain.Leaderboard) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = &lb
	c.expiresAt = c.clock().Add(c.ttl)
}

func (c *LeaderboardCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
}
