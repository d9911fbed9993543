package postgres

import (
	"context"
	"fmt"

	"timed-quiz-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

const loadQuizSQL = `
SELECT q.id, q.slug, q.title, q.description, q.category, q.difficulty, q.is_active, q.created_at,
       qn.id, qn.text, qn.code,
       o.id, o.text, o.is_correct
FROM quizzes q
LEFT JOIN questions qn ON qn.quiz_id = q.id
LEFT JOIN options o ON o.question_id = qn.id
WHERE q.id = $1
ORDER BY qn.position, o.position`

// QuizLoader loads a whole quiz tree from Postgres in one round trip. It
// backs the quiz cache on the hot read path.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	rows, err := l.pool.Query(ctx, loadQuizSQL, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	defer rows.Close()

	var (
		quiz  domain.Quiz
		found bool
		index = make(map[string]int)
	)
	for rows.Next() {
		var (
			questionID, questionText, questionCode *string
			optionID, optionText                   *string
			optionCorrect                          *bool
		)
		if err := rows.Scan(
			&quiz.ID, &quiz.Slug, &quiz.Title, &quiz.Description, &quiz.Category, &quiz.Difficulty, &quiz.Active, &quiz.CreatedAt,
			&questionID, &questionText, &questionCode,
			&optionID, &optionText, &optionCorrect,
		); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan quiz: %w", err)
		}
		found = true
		if questionID == nil {
			continue
		}

		pos, ok := index[*questionID]
		if !ok {
			pos = len(quiz.Questions)
			index[*questionID] = pos
			quiz.Questions = append(quiz.Questions, domain.Question{
				ID:   *questionID,
				Text: deref(questionText),
				Code: deref(questionCode),
			})
		}
		if optionID != nil {
			quiz.Questions[pos].Options = append(quiz.Questions[pos].Options, domain.Option{
				ID:      *optionID,
				Text:    deref(optionText),
				Correct: optionCorrect != nil && *optionCorrect,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if !found {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
