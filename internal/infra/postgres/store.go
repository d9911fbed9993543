package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"

	"github.com/uptrace/bun"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID            string    `bun:"id,pk"`
	Slug          string    `bun:"slug"`
	Title         string    `bun:"title"`
	Description   string    `bun:"description"`
	Category      string    `bun:"category"`
	Difficulty    string    `bun:"difficulty"`
	Active        bool      `bun:"is_active"`
	CreatedAt     time.Time `bun:"created_at"`
	QuestionCount int       `bun:"question_count,scanonly"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID       string `bun:"id,pk"`
	QuizID   string `bun:"quiz_id"`
	Position int    `bun:"position"`
	Text     string `bun:"text"`
	Code     string `bun:"code"`
}

type optionRow struct {
	bun.BaseModel `bun:"table:options,alias:op"`

	ID         string `bun:"id,pk"`
	QuestionID string `bun:"question_id"`
	Position   int    `bun:"position"`
	Text       string `bun:"text"`
	Correct    bool   `bun:"is_correct"`
}

type resultRow struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ID         string    `bun:"id,pk"`
	UserID     string    `bun:"user_id"`
	UserName   string    `bun:"user_name"`
	QuizID     string    `bun:"quiz_id"`
	Score      int       `bun:"score"`
	Total      int       `bun:"total"`
	Percentage float64   `bun:"percentage"`
	Status     string    `bun:"status"`
	TimeTaken  *int      `bun:"time_taken"`
	CreatedAt  time.Time `bun:"created_at"`
	QuizTitle  string    `bun:"quiz_title,scanonly"`
	Category   string    `bun:"category,scanonly"`
}

// Store persists quizzes and results with bun. Quiz trees are written inside
// a transaction so readers never observe a half-replaced question set.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz quizRow
	err := s.db.NewSelect().Model(&quiz).Where("qz.id = ?", quizID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("select quiz: %w", err)
	}

	var questions []questionRow
	if err := s.db.NewSelect().Model(&questions).
		Where("qn.quiz_id = ?", quizID).
		Order("qn.position ASC").
		Scan(ctx); err != nil {
		return domain.Quiz{}, fmt.Errorf("select questions: %w", err)
	}

	var options []optionRow
	if len(questions) > 0 {
		ids := make([]string, len(questions))
		for i, q := range questions {
			ids[i] = q.ID
		}
		if err := s.db.NewSelect().Model(&options).
			Where("op.question_id IN (?)", bun.In(ids)).
			Order("op.question_id ASC", "op.position ASC").
			Scan(ctx); err != nil {
			return domain.Quiz{}, fmt.Errorf("select options: %w", err)
		}
	}
	return assembleQuiz(quiz, questions, options), nil
}

func (s *Store) ListQuizzes(ctx context.Context, activeOnly bool) ([]domain.QuizSummary, error) {
	var rows []quizRow
	q := s.db.NewSelect().Model(&rows).
		ColumnExpr("qz.*").
		ColumnExpr("(SELECT count(*) FROM questions AS qn WHERE qn.quiz_id = qz.id) AS question_count").
		Order("qz.created_at DESC", "qz.id ASC")
	if activeOnly {
		q = q.Where("qz.is_active = TRUE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]domain.QuizSummary, len(rows))
	for i, row := range rows {
		out[i] = row.summary()
	}
	return out, nil
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := newQuizRow(quiz)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		return insertQuestions(ctx, tx, quiz)
	})
}

func (s *Store) ReplaceQuiz(ctx context.Context, quiz domain.Quiz) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := newQuizRow(quiz)
		res, err := tx.NewUpdate().Model(&row).
			Column("slug", "title", "description", "category", "difficulty", "is_active").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update quiz: %w", err)
		}
		if err := requireAffected(res, domain.ErrQuizNotFound); err != nil {
			return err
		}
		// Options go with their questions via ON DELETE CASCADE.
		if _, err := tx.NewDelete().Model((*questionRow)(nil)).
			Where("quiz_id = ?", quiz.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		return insertQuestions(ctx, tx, quiz)
	})
}

func (s *Store) DeleteQuiz(ctx context.Context, quizID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*resultRow)(nil)).
			Where("quiz_id = ?", quizID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete results: %w", err)
		}
		res, err := tx.NewDelete().Model((*quizRow)(nil)).
			Where("id = ?", quizID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete quiz: %w", err)
		}
		return requireAffected(res, domain.ErrQuizNotFound)
	})
}

func (s *Store) SetQuizActive(ctx context.Context, quizID string, active bool) error {
	res, err := s.db.NewUpdate().Model((*quizRow)(nil)).
		Set("is_active = ?", active).
		Where("id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("toggle quiz: %w", err)
	}
	return requireAffected(res, domain.ErrQuizNotFound)
}

func (s *Store) QuizIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := s.db.NewSelect().Table("quizzes").Column("id").Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("select quiz ids: %w", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *Store) CreateResult(ctx context.Context, result domain.Result) error {
	row := newResultRow(result)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) GetResult(ctx context.Context, resultID string) (domain.Result, error) {
	var row resultRow
	err := s.selectResults(&row).Where("r.id = ?", resultID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Result{}, domain.ErrResultNotFound
		}
		return domain.Result{}, fmt.Errorf("select result: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListResults(ctx context.Context, filter app.ResultFilter) ([]domain.Result, error) {
	var rows []resultRow
	q := s.selectResults(&rows).Order("r.id ASC")
	if filter.UserID != "" {
		q = q.Where("r.user_id = ?", filter.UserID)
	}
	if filter.QuizID != "" {
		q = q.Where("r.quiz_id = ?", filter.QuizID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	out := make([]domain.Result, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (s *Store) DeleteResults(ctx context.Context, resultIDs []string) (int, error) {
	if len(resultIDs) == 0 {
		return 0, nil
	}
	res, err := s.db.NewDelete().Model((*resultRow)(nil)).
		Where("id IN (?)", bun.In(resultIDs)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// selectResults joins the quiz title and category for display.
func (s *Store) selectResults(model interface{}) *bun.SelectQuery {
	return s.db.NewSelect().Model(model).
		ColumnExpr("r.*").
		ColumnExpr("qz.title AS quiz_title, qz.category AS category").
		Join("LEFT JOIN quizzes AS qz ON qz.id = r.quiz_id")
}

func insertQuestions(ctx context.Context, tx bun.Tx, quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return nil
	}
	questions, options := newTreeRows(quiz)
	if _, err := tx.NewInsert().Model(&questions).Exec(ctx); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	if len(options) > 0 {
		if _, err := tx.NewInsert().Model(&options).Exec(ctx); err != nil {
			return fmt.Errorf("insert options: %w", err)
		}
	}
	return nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func newQuizRow(q domain.Quiz) quizRow {
	return quizRow{
		ID:          q.ID,
		Slug:        q.Slug,
		Title:       q.Title,
		Description: q.Description,
		Category:    q.Category,
		Difficulty:  q.Difficulty,
		Active:      q.Active,
		CreatedAt:   q.CreatedAt,
	}
}

func newTreeRows(q domain.Quiz) ([]questionRow, []optionRow) {
	questions := make([]questionRow, 0, len(q.Questions))
	var options []optionRow
	for i, question := range q.Questions {
		questions = append(questions, questionRow{
			ID:       question.ID,
			QuizID:   q.ID,
			Position: i,
			Text:     question.Text,
			Code:     question.Code,
		})
		for j, opt := range question.Options {
			options = append(options, optionRow{
				ID:         opt.ID,
				QuestionID: question.ID,
				Position:   j,
				Text:       opt.Text,
				Correct:    opt.Correct,
			})
		}
	}
	return questions, options
}

// assembleQuiz expects questions ordered by position and options ordered by
// position within each question.
func assembleQuiz(row quizRow, questions []questionRow, options []optionRow) domain.Quiz {
	byQuestion := make(map[string][]domain.Option, len(questions))
	for _, opt := range options {
		byQuestion[opt.QuestionID] = append(byQuestion[opt.QuestionID], domain.Option{
			ID:      opt.ID,
			Text:    opt.Text,
			Correct: opt.Correct,
		})
	}
	quiz := domain.Quiz{
		ID:          row.ID,
		Slug:        row.Slug,
		Title:       row.Title,
		Description: row.Description,
		Category:    row.Category,
		Difficulty:  row.Difficulty,
		Active:      row.Active,
		CreatedAt:   row.CreatedAt,
		Questions:   make([]domain.Question, 0, len(questions)),
	}
	for _, q := range questions {
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:      q.ID,
			Text:    q.Text,
			Code:    q.Code,
			Options: byQuestion[q.ID],
		})
	}
	return quiz
}

func (r quizRow) summary() domain.QuizSummary {
	return domain.QuizSummary{
		ID:            r.ID,
		Slug:          r.Slug,
		Title:         r.Title,
		Description:   r.Description,
		Category:      r.Category,
		Difficulty:    r.Difficulty,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
		QuestionCount: r.QuestionCount,
	}
}

func newResultRow(r domain.Result) resultRow {
	return resultRow{
		ID:         r.ID,
		UserID:     r.UserID,
		UserName:   r.UserName,
		QuizID:     r.QuizID,
		Score:      r.Score,
		Total:      r.Total,
		Percentage: r.Percentage,
		Status:     string(r.Verdict),
		TimeTaken:  r.TimeTaken,
		CreatedAt:  r.CreatedAt,
	}
}

func (r resultRow) toDomain() domain.Result {
	return domain.Result{
		ID:         r.ID,
		UserID:     r.UserID,
		UserName:   r.UserName,
		QuizID:     r.QuizID,
		Score:      r.Score,
		Total:      r.Total,
		Percentage: r.Percentage,
		Verdict:    domain.Verdict(r.Status),
		TimeTaken:  r.TimeTaken,
		CreatedAt:  r.CreatedAt,
		QuizTitle:  r.QuizTitle,
		Category:   r.Category,
	}
}
