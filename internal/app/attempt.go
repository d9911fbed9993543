package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

// DefaultTimeLimit is the attempt budget when none is configured.
const DefaultTimeLimit = 45 * time.Minute

// Submission is what an attempt hands over when it leaves InProgress.
type Submission struct {
	AttemptID string
	QuizID    string
	Answers   domain.Answers
	TimeTaken *int
}

// AttemptSubmitter persists a finished attempt.
type AttemptSubmitter interface {
	SubmitAttempt(ctx context.Context, p domain.Principal, sub Submission) (domain.Result, error)
}

// AttemptState is a point-in-time view of an attempt.
type AttemptState struct {
	AttemptID string               `json:"attemptId"`
	Phase     string               `json:"phase"`
	Current   int                  `json:"current"`
	Total     int                  `json:"total"`
	Remaining int                  `json:"remaining"`
	Question  *domain.QuestionView `json:"question,omitempty"`
	Answers   map[string]string    `json:"answers"`
}

// Attempt is the state machine for one participant's pass through a quiz:
// NotStarted -> InProgress -> Submitted. Moving out of InProgress is guarded
// so that a timer expiry racing a manual submit produces one result.
type Attempt struct {
	id        string
	quiz      domain.Quiz
	principal domain.Principal
	quota     int
	submitter AttemptSubmitter

	mu        sync.Mutex
	phase     domain.Phase
	answers   domain.Answers
	current   int
	remaining int
	result    *domain.Result
}

// NewAttempt prepares an attempt in NotStarted. timeLimit is rounded down to
// whole seconds, with a floor of one.
func NewAttempt(id string, quiz domain.Quiz, p domain.Principal, timeLimit time.Duration, submitter AttemptSubmitter) *Attempt {
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	quota := int(timeLimit / time.Second)
	if quota < 1 {
		quota = 1
	}
	return &Attempt{
		id:        id,
		quiz:      quiz,
		principal: p,
		quota:     quota,
		submitter: submitter,
		phase:     domain.PhaseNotStarted,
	}
}

func (a *Attempt) ID() string { return a.id }

func (a *Attempt) Phase() domain.Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Start acknowledges the instructions and starts the clock.
func (a *Attempt) Start() (AttemptState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.phase != domain.PhaseNotStarted {
		return a.stateLocked(), domain.ErrAttemptNotInProgress
	}
	if !a.quiz.Active {
		return a.stateLocked(), domain.ErrQuizUnavailable
	}
	if len(a.quiz.Questions) == 0 {
		return a.stateLocked(), domain.ErrEmptyQuiz
	}
	a.phase = domain.PhaseInProgress
	a.remaining = a.quota
	a.current = 0
	a.answers = make(domain.Answers, len(a.quiz.Questions))
	return a.stateLocked(), nil
}

// SelectAnswer records or overwrites the answer for a question.
func (a *Attempt) SelectAnswer(questionID, optionID string) (AttemptState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.requireInProgressLocked(); err != nil {
		return a.stateLocked(), err
	}
	question, ok := a.quiz.Question(questionID)
	if !ok {
		return a.stateLocked(), domain.ErrQuestionNotFound
	}
	if !question.HasOption(optionID) {
		return a.stateLocked(), domain.ErrOptionNotFound
	}
	a.answers[questionID] = optionID
	return a.stateLocked(), nil
}

// Advance moves to the next question, clamped at the last one.
func (a *Attempt) Advance() (AttemptState, error) {
	return a.move(1)
}

// Retreat moves to the previous question, clamped at the first one.
func (a *Attempt) Retreat() (AttemptState, error) {
	return a.move(-1)
}

func (a *Attempt) move(delta int) (AttemptState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.requireInProgressLocked(); err != nil {
		return a.stateLocked(), err
	}
	next := a.current + delta
	if next < 0 {
		next = 0
	}
	if last := len(a.quiz.Questions) - 1; next > last {
		next = last
	}
	a.current = next
	return a.stateLocked(), nil
}

// Tick consumes one second of budget. When the budget reaches zero the
// attempt is submitted with whatever answers were recorded; result is then
// non-nil. Ticks outside InProgress are ignored, as is losing the race to a
// manual submit. After a failed timeout submission the phase is InProgress
// again only if the failure was a persistence error; otherwise it is Closed.
func (a *Attempt) Tick(ctx context.Context) (int, *domain.Result, error) {
	a.mu.Lock()
	if a.phase != domain.PhaseInProgress {
		remaining := a.remaining
		a.mu.Unlock()
		return remaining, nil, nil
	}
	if a.remaining > 0 {
		a.remaining--
	}
	remaining := a.remaining
	a.mu.Unlock()

	if remaining > 0 {
		return remaining, nil, nil
	}
	result, err := a.submit(ctx, domain.TriggerTimeout)
	if errors.Is(err, domain.ErrAttemptSubmitted) {
		return remaining, nil, nil
	}
	if err != nil {
		return remaining, nil, err
	}
	return remaining, &result, nil
}

// Submit is the participant's explicit submission from the final question.
func (a *Attempt) Submit(ctx context.Context) (domain.Result, error) {
	return a.submit(ctx, domain.TriggerManual)
}

func (a *Attempt) submit(ctx context.Context, trigger domain.SubmitTrigger) (domain.Result, error) {
	a.mu.Lock()
	switch a.phase {
	case domain.PhaseNotStarted:
		a.mu.Unlock()
		return domain.Result{}, domain.ErrAttemptNotStarted
	case domain.PhaseSubmitting, domain.PhaseSubmitted:
		a.mu.Unlock()
		return domain.Result{}, domain.ErrAttemptSubmitted
	case domain.PhaseClosed:
		a.mu.Unlock()
		return domain.Result{}, domain.ErrAttemptNotInProgress
	}
	if trigger == domain.TriggerManual && a.current != len(a.quiz.Questions)-1 {
		a.mu.Unlock()
		return domain.Result{}, domain.ErrNotFinalQuestion
	}

	a.phase = domain.PhaseSubmitting
	answers := make(domain.Answers, len(a.answers))
	for k, v := range a.answers {
		answers[k] = v
	}
	elapsed := a.quota - a.remaining
	a.mu.Unlock()

	result, err := a.submitter.SubmitAttempt(ctx, a.principal, Submission{
		AttemptID: a.id,
		QuizID:    a.quiz.ID,
		Answers:   answers,
		TimeTaken: &elapsed,
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		// Roll back so the participant can retry; answers are untouched.
		// A timed-out attempt that failed for any other reason cannot recover.
		a.phase = domain.PhaseInProgress
		if a.remaining == 0 && !errors.Is(err, domain.ErrPersistence) {
			a.phase = domain.PhaseClosed
		}
		return domain.Result{}, fmt.Errorf("submit attempt (%s): %w", trigger, err)
	}
	a.phase = domain.PhaseSubmitted
	a.answers = nil
	a.result = &result
	return result, nil
}

// Result returns the persisted result once the attempt is submitted.
func (a *Attempt) Result() (domain.Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return domain.Result{}, false
	}
	return *a.result, true
}

// State returns the current view of the attempt.
func (a *Attempt) State() AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

func (a *Attempt) requireInProgressLocked() error {
	switch a.phase {
	case domain.PhaseInProgress:
		if a.remaining == 0 {
			return domain.ErrAttemptExpired
		}
		return nil
	case domain.PhaseNotStarted:
		return domain.ErrAttemptNotStarted
	default:
		return domain.ErrAttemptNotInProgress
	}
}

func (a *Attempt) stateLocked() AttemptState {
	state := AttemptState{
		AttemptID: a.id,
		Phase:     a.phase.String(),
		Current:   a.current,
		Total:     len(a.quiz.Questions),
		Remaining: a.remaining,
		Answers:   make(map[string]string, len(a.answers)),
	}
	for k, v := range a.answers {
		state.Answers[k] = v
	}
	if a.phase == domain.PhaseInProgress && a.current < len(a.quiz.Questions) {
		view := ProjectQuestion(a.principal, a.quiz.Questions[a.current])
		state.Question = &view
	}
	return state
}
