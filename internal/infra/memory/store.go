package memory

import (
	"context"
	"sort"
	"sync"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// Store is an in-memory Persistence Service for quizzes and results. It is
// used when no database is configured, and in tests.
type Store struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
	results map[string]domain.Result
}

func NewStore() *Store {
	return &Store{
		quizzes: make(map[string]domain.Quiz),
		results: make(map[string]domain.Result),
	}
}

// NewStoreWithQuizzes seeds a store, handy for demos and tests.
func NewStoreWithQuizzes(quizzes ...domain.Quiz) *Store {
	s := NewStore()
	for _, q := range quizzes {
		s.quizzes[q.ID] = q.Clone()
	}
	return s
}

func (s *Store) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz.Clone(), nil
}

func (s *Store) ListQuizzes(_ context.Context, activeOnly bool) ([]domain.QuizSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QuizSummary, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		if activeOnly && !q.Active {
			continue
		}
		out = append(out, q.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = quiz.Clone()
	return nil
}

// ReplaceQuiz swaps the whole tree under one lock, so readers see either the
// old question set or the new one.
func (s *Store) ReplaceQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; !ok {
		return domain.ErrQuizNotFound
	}
	s.quizzes[quiz.ID] = quiz.Clone()
	return nil
}

func (s *Store) DeleteQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	delete(s.quizzes, quizID)
	for id, r := range s.results {
		if r.QuizID == quizID {
			delete(s.results, id)
		}
	}
	return nil
}

func (s *Store) SetQuizActive(_ context.Context, quizID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Active = active
	s.quizzes[quizID] = quiz
	return nil
}

func (s *Store) QuizIDs(_ context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{}, len(s.quizzes))
	for id := range s.quizzes {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// RemoveQuizOnly deletes a quiz without cascading, leaving its results
// orphaned. It mirrors rows removed behind the service's back.
func (s *Store) RemoveQuizOnly(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quizzes, quizID)
}

func (s *Store) CreateResult(_ context.Context, result domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.ID] = result
	return nil
}

func (s *Store) GetResult(_ context.Context, resultID string) (domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[resultID]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return s.decorateLocked(r), nil
}

func (s *Store) ListResults(_ context.Context, filter app.ResultFilter) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Result, 0, len(s.results))
	for _, r := range s.results {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.QuizID != "" && r.QuizID != filter.QuizID {
			continue
		}
		out = append(out, s.decorateLocked(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteResults(_ context.Context, resultIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range resultIDs {
		if _, ok := s.results[id]; ok {
			delete(s.results, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) decorateLocked(r domain.Result) domain.Result {
	if quiz, ok := s.quizzes[r.QuizID]; ok {
		r.QuizTitle = quiz.Title
		r.Category = quiz.Category
	}
	return r
}
