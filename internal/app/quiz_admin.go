package app

import (
	"context"
	"errors"

	"timed-quiz-service/internal/domain"

	"github.com/gosimple/slug"
)

// CreateQuiz validates and stores a new quiz. New quizzes are active unless
// the input says otherwise.
func (s *QuizService) CreateQuiz(ctx context.Context, p domain.Principal, in QuizInput) (domain.Quiz, error) {
	if err := Authorize(p, OpManageQuiz, Resource{}).Err(); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.validator.ValidateQuiz(&in); err != nil {
		return domain.Quiz{}, err
	}

	quiz := s.buildQuiz(s.newID(), in)
	quiz.Active = in.Active == nil || *in.Active
	quiz.CreatedAt = s.now().UTC()
	if err := s.store.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, s.persistenceErr(ctx, "create quiz", err)
	}
	s.logger.InfoContext(ctx, "quiz created", "quiz_id", quiz.ID, "questions", len(quiz.Questions), "user_id", p.UserID)
	return quiz, nil
}

// UpdateQuiz replaces the quiz metadata and its whole question set. The new
// questions and options get fresh identities; the store swaps them in as one
// unit. Existing results are left untouched.
func (s *QuizService) UpdateQuiz(ctx context.Context, p domain.Principal, quizID string, in QuizInput) (domain.Quiz, error) {
	if err := Authorize(p, OpManageQuiz, Resource{}).Err(); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.validator.ValidateQuiz(&in); err != nil {
		return domain.Quiz{}, err
	}
	current, err := s.storedQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	quiz := s.buildQuiz(current.ID, in)
	quiz.CreatedAt = current.CreatedAt
	quiz.Active = current.Active
	if in.Active != nil {
		quiz.Active = *in.Active
	}
	if err := s.store.ReplaceQuiz(ctx, quiz); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, s.persistenceErr(ctx, "replace quiz", err)
	}
	s.quizzes.Invalidate(ctx, quiz.ID)
	s.logger.InfoContext(ctx, "quiz updated", "quiz_id", quiz.ID, "questions", len(quiz.Questions), "user_id", p.UserID)
	return quiz, nil
}

// DeleteQuiz removes the quiz, its questions and its results.
func (s *QuizService) DeleteQuiz(ctx context.Context, p domain.Principal, quizID string) error {
	if err := Authorize(p, OpManageQuiz, Resource{}).Err(); err != nil {
		return err
	}
	if err := s.store.DeleteQuiz(ctx, quizID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrQuizNotFound
		}
		return s.persistenceErr(ctx, "delete quiz", err)
	}
	s.quizzes.Invalidate(ctx, quizID)
	if s.board != nil {
		s.board.Invalidate(ctx)
	}
	s.logger.InfoContext(ctx, "quiz deleted", "quiz_id", quizID, "user_id", p.UserID)
	return nil
}

// ToggleQuizActive shows or hides a quiz from participant listings.
func (s *QuizService) ToggleQuizActive(ctx context.Context, p domain.Principal, quizID string, active bool) (domain.QuizSummary, error) {
	if err := Authorize(p, OpManageQuiz, Resource{}).Err(); err != nil {
		return domain.QuizSummary{}, err
	}
	if err := s.store.SetQuizActive(ctx, quizID, active); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.QuizSummary{}, domain.ErrQuizNotFound
		}
		return domain.QuizSummary{}, s.persistenceErr(ctx, "toggle quiz", err)
	}
	s.quizzes.Invalidate(ctx, quizID)
	quiz, err := s.storedQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	return quiz.Summary(), nil
}

// SweepOrphanedResults deletes results whose quiz no longer exists and
// reports how many were removed. It is a maintenance entry point for the
// scheduler and CLI; HTTP callers go through SweepOrphanedResultsAs.
func (s *QuizService) SweepOrphanedResults(ctx context.Context) (int, error) {
	quizIDs, err := s.store.QuizIDs(ctx)
	if err != nil {
		return 0, s.persistenceErr(ctx, "list quiz ids", err)
	}
	results, err := s.results.ListResults(ctx, ResultFilter{})
	if err != nil {
		return 0, s.persistenceErr(ctx, "list results", err)
	}

	var orphaned []string
	for _, r := range results {
		if _, ok := quizIDs[r.QuizID]; !ok {
			s.logger.InfoContext(ctx, "orphaned result found", "result_id", r.ID, "quiz_id", r.QuizID)
			orphaned = append(orphaned, r.ID)
		}
	}
	if len(orphaned) == 0 {
		return 0, nil
	}

	deleted, err := s.results.DeleteResults(ctx, orphaned)
	if err != nil {
		return deleted, s.persistenceErr(ctx, "delete orphaned results", err)
	}
	if s.board != nil {
		s.board.Invalidate(ctx)
	}
	s.logger.InfoContext(ctx, "orphan sweep complete", "scanned", len(results), "deleted", deleted)
	return deleted, nil
}

// SweepOrphanedResultsAs runs the sweep on behalf of an administrator.
func (s *QuizService) SweepOrphanedResultsAs(ctx context.Context, p domain.Principal) (int, error) {
	if err := Authorize(p, OpSweepResults, Resource{}).Err(); err != nil {
		return 0, err
	}
	return s.SweepOrphanedResults(ctx)
}

func (s *QuizService) storedQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.store.LoadQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, s.persistenceErr(ctx, "load quiz", err)
	}
	return quiz, nil
}

func (s *QuizService) buildQuiz(id string, in QuizInput) domain.Quiz {
	quiz := domain.Quiz{
		ID:          id,
		Slug:        slug.Make(in.Title),
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Difficulty:  in.Difficulty,
		Questions:   make([]domain.Question, len(in.Questions)),
	}
	for i, qin := range in.Questions {
		question := domain.Question{
			ID:      s.newID(),
			Text:    qin.Text,
			Code:    qin.Code,
			Options: make([]domain.Option, len(qin.Options)),
		}
		for j, oin := range qin.Options {
			question.Options[j] = domain.Option{ID: s.newID(), Text: oin.Text, Correct: oin.Correct}
		}
		quiz.Questions[i] = question
	}
	return quiz
}
