package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SubmissionGuard hands out one-time submission tokens through SETNX so that
// only one instance can persist a result for a given attempt.
// Tokens are stored as: SET quiz:attempt:{attemptID}:submitted 1 NX EX ttl
type SubmissionGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSubmissionGuard(client *redis.Client, ttl time.Duration) *SubmissionGuard {
	return &SubmissionGuard{client: client, ttl: ttl}
}

func (g *SubmissionGuard) Claim(ctx context.Context, attemptID string) (bool, error) {
	return g.client.SetNX(ctx, g.key(attemptID), "1", g.ttl).Result()
}

func (g *SubmissionGuard) Release(ctx context.Context, attemptID string) error {
	return g.client.Del(ctx, g.key(attemptID)).Err()
}

func (g *SubmissionGuard) key(attemptID string) string {
	return "quiz:attempt:" + attemptID + ":submitted"
}
