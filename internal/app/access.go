package app

import "timed-quiz-service/internal/domain"

// Operation names an action guarded by Authorize.
type Operation string

const (
	OpListQuizzes     Operation = "list quizzes"
	OpListAllQuizzes  Operation = "list all quizzes"
	OpViewQuiz        Operation = "view quiz"
	OpSubmitAttempt   Operation = "submit attempt"
	OpManageQuiz      Operation = "manage quiz"
	OpViewOwnResults  Operation = "view own results"
	OpViewResult      Operation = "view result"
	OpViewAllResults  Operation = "view all results"
	OpViewLeaderboard Operation = "view leaderboard"
	OpSweepResults    Operation = "sweep results"
)

// Resource carries the ownership facts a decision may depend on.
type Resource struct {
	OwnerID string
}

// Decision is Allow or Deny(reason).
type Decision struct {
	Allowed bool
	Reason  error
}

func allow() Decision { return Decision{Allowed: true} }

func deny(p domain.Principal, op Operation, reason error) Decision {
	return Decision{Reason: &domain.PermissionError{UserID: p.UserID, Operation: string(op), Reason: reason}}
}

// Err returns nil for Allow and the denial reason otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return d.Reason
}

// Authorize decides whether the principal may perform op on res.
func Authorize(p domain.Principal, op Operation, res Resource) Decision {
	switch op {
	case OpListQuizzes:
		return allow()
	case OpViewQuiz, OpSubmitAttempt, OpViewOwnResults:
		if !p.Authenticated() {
			return deny(p, op, domain.ErrUnauthenticated)
		}
		return allow()
	case OpViewResult:
		if !p.Authenticated() {
			return deny(p, op, domain.ErrUnauthenticated)
		}
		if p.IsAdmin() || res.OwnerID == p.UserID {
			return allow()
		}
		return deny(p, op, domain.ErrUnauthorized)
	case OpListAllQuizzes, OpManageQuiz, OpViewAllResults, OpViewLeaderboard, OpSweepResults:
		if !p.Authenticated() {
			return deny(p, op, domain.ErrUnauthenticated)
		}
		if !p.IsAdmin() {
			return deny(p, op, domain.ErrUnauthorized)
		}
		return allow()
	default:
		return deny(p, op, domain.ErrUnauthorized)
	}
}

// ProjectQuestion redacts the answer key for everyone but administrators.
func ProjectQuestion(p domain.Principal, q domain.Question) domain.QuestionView {
	view := domain.QuestionView{
		ID:      q.ID,
		Text:    q.Text,
		Code:    q.Code,
		Options: make([]domain.OptionView, len(q.Options)),
	}
	admin := p.IsAdmin()
	for i, opt := range q.Options {
		view.Options[i] = domain.OptionView{ID: opt.ID, Text: opt.Text}
		if admin {
			correct := opt.Correct
			view.Options[i].Correct = &correct
		}
	}
	return view
}

// ProjectQuiz applies ProjectQuestion to every question of the quiz.
func ProjectQuiz(p domain.Principal, quiz domain.Quiz) domain.QuizView {
	view := domain.QuizView{
		QuizSummary: quiz.Summary(),
		Questions:   make([]domain.QuestionView, len(quiz.Questions)),
	}
	for i, q := range quiz.Questions {
		view.Questions[i] = ProjectQuestion(p, q)
	}
	return view
}
