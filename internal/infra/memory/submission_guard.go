package memory

import (
	"context"
	"sync"
	"time"
)

// SubmissionGuard is an in-memory implementation of app.SubmissionGuard.
// Claimed tokens expire after ttl so the map does not grow without bound.
type SubmissionGuard struct {
	ttl   time.Duration
	clock func() time.Time

	mu     sync.Mutex
	claims map[string]time.Time
}

func NewSubmissionGuard(ttl time.Duration) *SubmissionGuard {
	return &SubmissionGuard{
		ttl:    ttl,
		clock:  time.Now,
		claims: make(map[string]time.Time),
	}
}

func (g *SubmissionGuard) Claim(_ context.Context, attemptID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	g.pruneLocked(now)
	if _, ok := g.claims[attemptID]; ok {
		return false, nil
	}
	g.claims[attemptID] = now
	return true, nil
}

func (g *SubmissionGuard) Release(_ context.Context, attemptID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, attemptID)
	return nil
}

func (g *SubmissionGuard) pruneLocked(now time.Time) {
	if g.ttl <= 0 {
		return
	}
	for id, at := range g.claims {
		if now.Sub(at) > g.ttl {
			delete(g.claims, id)
		}
	}
}
