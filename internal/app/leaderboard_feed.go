package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

// DefaultPollInterval is how often live leaderboards are refreshed.
const DefaultPollInterval = 5 * time.Second

// LeaderboardFeed fans leaderboard snapshots out to live subscribers. It
// refreshes on a fixed interval and whenever Notify is called.
type LeaderboardFeed struct {
	service  *QuizService
	interval time.Duration
	logger   *slog.Logger
	notify   chan struct{}

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardFeed(service *QuizService, interval time.Duration, logger *slog.Logger) *LeaderboardFeed {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardFeed{
		service:     service,
		interval:    interval,
		logger:      logger,
		notify:      make(chan struct{}, 1),
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe returns a channel that receives leaderboard snapshots, starting
// with the current one. The caller must invoke the returned cancel function
// to avoid leaks.
func (f *LeaderboardFeed) Subscribe(ctx context.Context, p domain.Principal) (<-chan domain.Leaderboard, func(), error) {
	initial, err := f.service.Leaderboard(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel, nil
}

// Notify asks the feed to refresh as soon as possible. It never blocks.
func (f *LeaderboardFeed) Notify() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Run refreshes subscribers until ctx is done.
func (f *LeaderboardFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-f.notify:
		}
		f.Refresh(ctx)
	}
}

// Refresh computes a snapshot and broadcasts it.
func (f *LeaderboardFeed) Refresh(ctx context.Context) {
	if f.subscriberCount() == 0 {
		return
	}
	lb, err := f.service.leaderboard(ctx)
	if err != nil {
		f.logger.WarnContext(ctx, "leaderboard refresh failed", "error", err)
		return
	}
	f.broadcast(lb)
}

func (f *LeaderboardFeed) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

func (f *LeaderboardFeed) broadcast(lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale snapshot so slow clients never block the broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
