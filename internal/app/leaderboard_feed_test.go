package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardFeedPushesOnNotify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deps := newTestService(t)
	feed := app.NewLeaderboardFeed(deps.service, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	updates, unsubscribe, err := feed.Subscribe(ctx, admin)
	require.NoError(t, err)
	defer unsubscribe()

	initial := <-updates
	assert.Empty(t, initial.Entries)

	go func() { _ = feed.Run(ctx) }()

	_, err = deps.service.SubmitAttempt(ctx, alice, app.Submission{QuizID: "quiz-1", Answers: domain.Answers{"Q1": "A"}})
	require.NoError(t, err)
	feed.Notify()

	select {
	case lb := <-updates:
		require.Len(t, lb.Entries, 1)
		assert.Equal(t, "alice", lb.Entries[0].Result.UserID)
	case <-time.After(2 * time.Second):
		t.Fatalf("no leaderboard update after notify")
	}
}

func TestLeaderboardFeedRequiresAdmin(t *testing.T) {
	deps := newTestService(t)
	feed := app.NewLeaderboardFeed(deps.service, time.Second, nil)

	_, _, err := feed.Subscribe(context.Background(), alice)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
