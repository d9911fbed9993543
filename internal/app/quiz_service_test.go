package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.Principal{UserID: "alice", Name: "Alice", Role: domain.RoleUser}
	bob   = domain.Principal{UserID: "bob", Name: "Bob", Role: domain.RoleUser}
	admin = domain.Principal{UserID: "root", Name: "Root", Role: domain.RoleAdmin}
)

type testDeps struct {
	store   *memory.Store
	results *flakyResults
	events  *recordingPublisher
	service *app.QuizService
}

func newTestService(t *testing.T, quizzes ...domain.Quiz) testDeps {
	t.Helper()
	if len(quizzes) == 0 {
		quizzes = []domain.Quiz{sampleQuiz()}
	}
	store := memory.NewStoreWithQuizzes(quizzes...)
	results := &flakyResults{Store: store}
	events := &recordingPublisher{}
	service := app.NewQuizService(app.Dependencies{
		Quizzes:     memory.NewQuizRepository(store, time.Minute),
		Store:       store,
		Results:     results,
		Guard:       memory.NewSubmissionGuard(time.Hour),
		Leaderboard: memory.NewLeaderboardCache(time.Minute),
		Events:      events,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return testDeps{store: store, results: results, events: events, service: service}
}

// flakyResults fails CreateResult while fail is set.
type flakyResults struct {
	*memory.Store
	fail atomic.Bool
}

func (f *flakyResults) CreateResult(ctx context.Context, r domain.Result) error {
	if f.fail.Load() {
		return errors.New("connection reset by peer")
	}
	return f.Store.CreateResult(ctx, r)
}

type recordingPublisher struct {
	published []domain.Result
}

func (p *recordingPublisher) PublishResultSubmitted(_ context.Context, r domain.Result) error {
	p.published = append(p.published, r)
	return nil
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:         "quiz-1",
		Title:      "Arithmetic",
		Category:   "Math",
		Difficulty: "Easy",
		Active:     true,
		CreatedAt:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Questions: []domain.Question{
			{ID: "Q1", Text: "2 + 2", Options: []domain.Option{
				{ID: "A", Text: "4", Correct: true},
				{ID: "B", Text: "5"},
				{ID: "C", Text: "6"},
			}},
			{ID: "Q2", Text: "3 * 3", Options: []domain.Option{
				{ID: "A", Text: "6"},
				{ID: "B", Text: "9", Correct: true},
				{ID: "C", Text: "12"},
			}},
		},
	}
}

func TestSubmitAttemptScoresAndPersists(t *testing.T) {
	ctx := context.Background()
	deps := newTestService(t)

	taken := 42
	result, err := deps.service.SubmitAttempt(ctx, alice, app.Submission{
		QuizID:    "quiz-1",
		Answers:   domain.Answers{"Q1": "A", "Q2": "C"},
		TimeTaken: &taken,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 50.0, result.Percentage)
	assert.Equal(t, domain.VerdictFail, result.Verdict)
	assert.Equal(t, "alice", result.UserID)
	assert.Equal(t, "Alice", result.UserName)
	assert.Equal(t, "Arithmetic", result.QuizTitle)

	stored, err := deps.store.GetResult(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Score, stored.Score)
	require.Len(t, deps.events.published, 1)
	assert.Equal(t, result.ID, deps.events.published[0].ID)
}

func TestSubmitAttemptFailures(t *testing.T) {
	ctx := context.Background()
	inactive := sampleQuiz()
	inactive.ID = "inactive"
	inactive.Active = false
	empty := domain.Quiz{ID: "empty", Title: "Empty", Active: true}
	deps := newTestService(t, sampleQuiz(), inactive, empty)

	_, err := deps.service.SubmitAttempt(ctx, domain.Anonymous(), app.Submission{QuizID: "quiz-1"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = deps.service.SubmitAttempt(ctx, alice, app.Submission{QuizID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = deps.service.SubmitAttempt(ctx, alice, app.Submission{QuizID: "inactive"})
	assert.ErrorIs(t, err, domain.ErrQuizUnavailable)

	_, err = deps.service.SubmitAttempt(ctx, alice, app.Submission{QuizID: "empty"})
	assert.ErrorIs(t, err, domain.ErrEmptyQuiz)

	negative := -1
	_, err = deps.service.SubmitAttempt(ctx, alice, app.Submission{QuizID: "quiz-1", TimeTaken: &negative})
	assert.ErrorIs(t, err, domain.ErrValidation)

	all, err := deps.store.ListResults(ctx, app.ResultFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "failed submissions must not persist anything")
}

func TestSubmitAttemptPersistenceFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	deps := newTestService(t)
	sub := app.Submission{AttemptID: "attempt-1", QuizID: "quiz-1", Answers: domain.Answers{"Q1": "A", "Q2": "B"}}

	deps.results.fail.Store(true)
	_, err := deps.service.SubmitAttempt(ctx, alice, sub)
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotContains(t, err.Error(), "connection reset", "internal detail must not leak")

	deps.results.fail.Store(false)
	result, err := deps.service.SubmitAttempt(ctx, alice, sub)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Score)

	_, err = deps.service.SubmitAttempt(ctx, alice, sub)
	assert.ErrorIs(t, err, domain.ErrAttemptSubmitted)
}

func TestTimedAttemptThroughService(t *testing.T) {
	ctx := context.Background()
	deps := newTestService(t)

	attempt, err := deps.service.StartAttempt(ctx, "quiz-1", alice)
	require.NoError(t, err)
	state, err := attempt.Start()
	require.NoError(t, err)
	assert.Equal(t, int(app.DefaultTimeLimit/time.Second), state.Remaining)

	_, err = attempt.SelectAnswer("Q1", "A")
	require.NoError(t, err)
	_, err = attempt.Advance()
	require.NoError(t, err)
	_, err = attempt.SelectAnswer("Q2", "B")
	require.NoError(t, err)

	result, err := attempt.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictPass, result.Verdict)
	assert.Equal(t, 100.0, result.Percentage)

	// The attempt identity doubles as the one-time submission token.
	_, err = deps.service.SubmitAttempt(ctx, alice, app.Submission{AttemptID: attempt.ID(), QuizID: "quiz-1"})
	assert.ErrorIs(t, err, domain.ErrAttemptSubmitted)
}

func TestStartAttemptRefusesUnavailableQuizzes(t *testing.T) {
	ctx := context.Background()
	inactive := sampleQuiz()
	inactive.ID = "inactive"
	inactive.Active = false
	deps := newTestService(t, inactive, domain.Quiz{ID: "empty", Active: true})

	_, err := deps.service.StartAttempt(ctx, "inactive", alice)
	assert.ErrorIs(t, err, domain.ErrQuizUnavailable)
	_, err = deps.service.StartAttempt(ctx, "empty", alice)
	assert.ErrorIs(t, err, domain.ErrEmptyQuiz)
	_, err = deps.service.StartAttempt(ctx, "inactive", domain.Anonymous())
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestGetQuizVisibility(t *testing.T) {
	ctx := context.Background()
	deps := newTestService(t)

	view, err := deps.service.GetQuiz(ctx, "quiz-1", alice)
	require.NoError(t, err)
	for _, q := range view.Questions {
		for _, opt := range q.Options {
			assert.Nil(t, opt.Correct)
		}
	}

	_, err = deps.service.ToggleQuizActive(ctx, admin, "quiz-1", false)
	require.NoError(t, err)

	_, err = deps.service.GetQuiz(ctx, "quiz-1", alice)
	assert.ErrorIs(t, err, domain.ErrQuizUnavailable)

	view, err = deps.service.GetQuiz(ctx, "quiz-1", admin)
	require.NoError(t, err)
	assert.False(t, view.Active)

	listed, err := deps.service.ListActiveQuizzes(ctx, domain.Anonymous())
	require.NoError(t, err)
	assert.Empty(t, listed)

	all, err := deps.service.ListAllQuizzes(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = deps.service.ListAllQuizzes(ctx, alice)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestResultsVisibility(t *testing.T) {
	ctx := context.Background()
	deps := newTestService(t)
	clock := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	deps.service.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	first, err := deps.service.SubmitAttempt(ctx, alice, app.Submission{QuizID: "quiz-1", Answers: domain.Answers{"Q1": "A"}})
	require.NoError(t, err)
	second, err := deps.service.SubmitAttempt(ctx, alice, app.Submission{QuizID: "quiz-1", Answers: domain.Answers{"Q1": "A", "Q2": "B"}})
	require.NoError(t, err)
	_, err = deps.service.SubmitAttempt(ctx, bob, app.Submission{QuizID: "quiz-1"})
	require.NoError(t, err)

	own, err := deps.service.ListOwnResults(ctx, alice)
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, second.ID, own[0].ID, "newest first")
	assert.Equal(t, "Math", own[0].Category)

	_, err = deps.service.GetResult(ctx, first.ID, bob)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	got, err := deps.service.GetResult(ctx, first.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	all, err := deps.service.ListAllResults(ctx, admin)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, second.ID, all[0].ID, "leaderboard order")

	_, err = deps.service.ListAllResults(ctx, alice)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLeaderboardIsCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	deps := newTestService(t)

	_, err := deps.service.SubmitAttempt(ctx, alice, app.Submission{QuizID: "quiz-1", Answers: domain.Answers{"Q1": "A"}})
	require.NoError(t, err)

	lb, err := deps.service.Leaderboard(ctx, admin)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)

	// Results written behind the service's back are not seen until the snapshot is invalidated.
	require.NoError(t, deps.store.CreateResult(ctx, domain.Result{ID: "zz", UserID: "carol", QuizID: "quiz-1", Score: 2, Total: 2}))
	lb, err = deps.service.Leaderboard(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, lb.Entries, 1)

	_, err = deps.service.SubmitAttempt(ctx, bob, app.Submission{QuizID: "quiz-1"})
	require.NoError(t, err)
	lb, err = deps.service.Leaderboard(ctx, admin)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 3)
	assert.Equal(t, "carol", lb.Entries[0].Result.UserID)

	_, err = deps.service.Leaderboard(ctx, alice)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSweepOrphanedResults(t *testing.T) {
	ctx := context.Background()
	other := sampleQuiz()
	other.ID = "quiz-2"
	deps := newTestService(t, sampleQuiz(), other)

	for i, quizID := range []string{"quiz-1", "quiz-1", "quiz-1", "quiz-2", "quiz-2"} {
		p := alice
		if i%2 == 1 {
			p = bob
		}
		_, err := deps.service.SubmitAttempt(ctx, p, app.Submission{QuizID: quizID})
		require.NoError(t, err)
	}
	deps.store.RemoveQuizOnly("quiz-2")

	_, err := deps.service.SweepOrphanedResultsAs(ctx, alice)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	deleted, err := deps.service.SweepOrphanedResultsAs(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := deps.store.ListResults(ctx, app.ResultFilter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
	for _, r := range remaining {
		assert.Equal(t, "quiz-1", r.QuizID)
	}

	deleted, err = deps.service.SweepOrphanedResults(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
