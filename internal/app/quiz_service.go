package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"timed-quiz-service/internal/domain"

	"github.com/google/uuid"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID string)
}

// QuizStore is the quiz half of the Persistence Service.
type QuizStore interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, activeOnly bool) ([]domain.QuizSummary, error)
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	// ReplaceQuiz swaps metadata and the whole question set in one step.
	ReplaceQuiz(ctx context.Context, quiz domain.Quiz) error
	// DeleteQuiz removes the quiz tree and its results.
	DeleteQuiz(ctx context.Context, quizID string) error
	SetQuizActive(ctx context.Context, quizID string, active bool) error
	QuizIDs(ctx context.Context) (map[string]struct{}, error)
}

// ResultFilter narrows ListResults; zero value lists everything.
type ResultFilter struct {
	UserID string
	QuizID string
}

// ResultStore is the result half of the Persistence Service.
type ResultStore interface {
	CreateResult(ctx context.Context, result domain.Result) error
	GetResult(ctx context.Context, resultID string) (domain.Result, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]domain.Result, error)
	DeleteResults(ctx context.Context, resultIDs []string) (int, error)
}

// SubmissionGuard hands out one-time submission tokens per attempt.
type SubmissionGuard interface {
	Claim(ctx context.Context, attemptID string) (bool, error)
	Release(ctx context.Context, attemptID string) error
}

// LeaderboardCache holds the latest ranked snapshot between polls.
type LeaderboardCache interface {
	Get(ctx context.Context) (domain.Leaderboard, bool)
	Set(ctx context.Context, lb domain.Leaderboard)
	Invalidate(ctx context.Context)
}

// ResultPublisher announces newly persisted results.
type ResultPublisher interface {
	PublishResultSubmitted(ctx context.Context, result domain.Result) error
}

// Dependencies wires the QuizService ports. Guard, Leaderboard and Events may be nil.
type Dependencies struct {
	Quizzes     QuizRepository
	Store       QuizStore
	Results     ResultStore
	Guard       SubmissionGuard
	Leaderboard LeaderboardCache
	Events      ResultPublisher
	Logger      *slog.Logger
	TimeLimit   time.Duration
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	quizzes   QuizRepository
	store     QuizStore
	results   ResultStore
	guard     SubmissionGuard
	board     LeaderboardCache
	events    ResultPublisher
	validator *Validator
	logger    *slog.Logger
	timeLimit time.Duration
	now       func() time.Time
	newID     func() string
}

func NewQuizService(deps Dependencies) *QuizService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeLimit := deps.TimeLimit
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	return &QuizService{
		quizzes:   deps.Quizzes,
		store:     deps.Store,
		results:   deps.Results,
		guard:     deps.Guard,
		board:     deps.Leaderboard,
		events:    deps.Events,
		validator: NewValidator(),
		logger:    logger,
		timeLimit: timeLimit,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *QuizService) WithClock(now func() time.Time) *QuizService {
	s.now = now
	return s
}

// TimeLimit is the budget given to new attempts.
func (s *QuizService) TimeLimit() time.Duration { return s.timeLimit }

// ListActiveQuizzes is the participant-facing listing.
func (s *QuizService) ListActiveQuizzes(ctx context.Context, p domain.Principal) ([]domain.QuizSummary, error) {
	if err := Authorize(p, OpListQuizzes, Resource{}).Err(); err != nil {
		return nil, err
	}
	quizzes, err := s.store.ListQuizzes(ctx, true)
	if err != nil {
		return nil, s.persistenceErr(ctx, "list active quizzes", err)
	}
	return quizzes, nil
}

// ListAllQuizzes includes inactive quizzes and is admin-only.
func (s *QuizService) ListAllQuizzes(ctx context.Context, p domain.Principal) ([]domain.QuizSummary, error) {
	if err := Authorize(p, OpListAllQuizzes, Resource{}).Err(); err != nil {
		return nil, err
	}
	quizzes, err := s.store.ListQuizzes(ctx, false)
	if err != nil {
		return nil, s.persistenceErr(ctx, "list quizzes", err)
	}
	return quizzes, nil
}

// GetQuiz returns the quiz as the principal may see it. Inactive quizzes are
// only visible to administrators.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string, p domain.Principal) (domain.QuizView, error) {
	if err := Authorize(p, OpViewQuiz, Resource{}).Err(); err != nil {
		return domain.QuizView{}, err
	}
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizView{}, err
	}
	if !quiz.Active && !p.IsAdmin() {
		return domain.QuizView{}, domain.ErrQuizUnavailable
	}
	return ProjectQuiz(p, quiz), nil
}

// StartAttempt prepares a timed attempt whose terminal transition persists
// through SubmitAttempt. Inactive and empty quizzes are refused up front; the
// attempt still needs Start.
func (s *QuizService) StartAttempt(ctx context.Context, quizID string, p domain.Principal) (*Attempt, error) {
	if err := Authorize(p, OpSubmitAttempt, Resource{}).Err(); err != nil {
		return nil, err
	}
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.Active {
		return nil, domain.ErrQuizUnavailable
	}
	if len(quiz.Questions) == 0 {
		return nil, domain.ErrEmptyQuiz
	}
	return NewAttempt(s.newID(), quiz, p, s.timeLimit, s), nil
}

// SubmitAttempt scores the answers and persists exactly one result. When
// sub.AttemptID is set it is claimed as a one-time token; the token is
// released again if persistence fails so the participant can retry.
func (s *QuizService) SubmitAttempt(ctx context.Context, p domain.Principal, sub Submission) (domain.Result, error) {
	if err := Authorize(p, OpSubmitAttempt, Resource{}).Err(); err != nil {
		return domain.Result{}, err
	}
	if sub.TimeTaken != nil && *sub.TimeTaken < 0 {
		return domain.Result{}, domain.ValidationErrors{{Field: "timeTaken", Message: "must not be negative", Rule: "min"}}
	}

	quiz, err := s.loadQuiz(ctx, sub.QuizID)
	if err != nil {
		return domain.Result{}, err
	}
	if !quiz.Active {
		return domain.Result{}, domain.ErrQuizUnavailable
	}
	if len(quiz.Questions) == 0 {
		return domain.Result{}, domain.ErrEmptyQuiz
	}

	score, err := Score(quiz, sub.Answers)
	if err != nil {
		return domain.Result{}, err
	}

	claimed := false
	if sub.AttemptID != "" && s.guard != nil {
		ok, err := s.guard.Claim(ctx, sub.AttemptID)
		if err != nil {
			return domain.Result{}, s.persistenceErr(ctx, "claim submission", err)
		}
		if !ok {
			return domain.Result{}, domain.ErrAttemptSubmitted
		}
		claimed = true
	}

	result := domain.Result{
		ID:         s.newID(),
		UserID:     p.UserID,
		QuizID:     quiz.ID,
		Score:      score.Score,
		Total:      score.Total,
		Percentage: score.Percentage,
		Verdict:    score.Verdict,
		TimeTaken:  sub.TimeTaken,
		CreatedAt:  s.now().UTC(),
		UserName:   p.Name,
	}
	if err := s.results.CreateResult(ctx, result); err != nil {
		if claimed {
			if relErr := s.guard.Release(ctx, sub.AttemptID); relErr != nil {
				s.logger.WarnContext(ctx, "failed to release submission token", "attempt_id", sub.AttemptID, "error", relErr)
			}
		}
		return domain.Result{}, s.persistenceErr(ctx, "store result", err)
	}

	s.logger.InfoContext(ctx, "result recorded",
		"result_id", result.ID,
		"quiz_id", result.QuizID,
		"user_id", result.UserID,
		"score", result.Score,
		"total", result.Total,
		"status", result.Verdict)

	if s.board != nil {
		s.board.Invalidate(ctx)
	}
	if s.events != nil {
		if err := s.events.PublishResultSubmitted(ctx, result); err != nil {
			s.logger.WarnContext(ctx, "failed to publish result event", "result_id", result.ID, "error", err)
		}
	}

	result.QuizTitle = quiz.Title
	result.Category = quiz.Category
	return result, nil
}

// ListOwnResults returns the principal's results, newest first.
func (s *QuizService) ListOwnResults(ctx context.Context, p domain.Principal) ([]domain.Result, error) {
	if err := Authorize(p, OpViewOwnResults, Resource{OwnerID: p.UserID}).Err(); err != nil {
		return nil, err
	}
	results, err := s.results.ListResults(ctx, ResultFilter{UserID: p.UserID})
	if err != nil {
		return nil, s.persistenceErr(ctx, "list own results", err)
	}
	sortNewestFirst(results)
	return results, nil
}

// ListAllResults returns every result in leaderboard order. Admin-only.
func (s *QuizService) ListAllResults(ctx context.Context, p domain.Principal) ([]domain.Result, error) {
	if err := Authorize(p, OpViewAllResults, Resource{}).Err(); err != nil {
		return nil, err
	}
	results, err := s.results.ListResults(ctx, ResultFilter{})
	if err != nil {
		return nil, s.persistenceErr(ctx, "list results", err)
	}
	return Rank(results), nil
}

// GetResult returns one result to its owner or an administrator.
func (s *QuizService) GetResult(ctx context.Context, resultID string, p domain.Principal) (domain.Result, error) {
	if err := Authorize(p, OpViewOwnResults, Resource{}).Err(); err != nil {
		return domain.Result{}, err
	}
	result, err := s.results.GetResult(ctx, resultID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Result{}, err
		}
		return domain.Result{}, s.persistenceErr(ctx, "get result", err)
	}
	if err := Authorize(p, OpViewResult, Resource{OwnerID: result.UserID}).Err(); err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

// Leaderboard returns the ranked standings, served from the snapshot cache
// when one is fresh.
func (s *QuizService) Leaderboard(ctx context.Context, p domain.Principal) (domain.Leaderboard, error) {
	if err := Authorize(p, OpViewLeaderboard, Resource{}).Err(); err != nil {
		return domain.Leaderboard{}, err
	}
	return s.leaderboard(ctx)
}

func (s *QuizService) leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	if s.board != nil {
		if lb, ok := s.board.Get(ctx); ok {
			return lb, nil
		}
	}
	results, err := s.results.ListResults(ctx, ResultFilter{})
	if err != nil {
		return domain.Leaderboard{}, s.persistenceErr(ctx, "load leaderboard", err)
	}
	lb := BuildLeaderboard(results, s.now().UTC())
	if s.board != nil {
		s.board.Set(ctx, lb)
	}
	return lb, nil
}

func (s *QuizService) loadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, s.persistenceErr(ctx, "load quiz", err)
	}
	return quiz, nil
}

// persistenceErr logs the detail and returns a generic error for callers.
func (s *QuizService) persistenceErr(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "store operation failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, domain.ErrPersistence)
}
