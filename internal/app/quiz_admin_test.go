package app_test

import (
	"context"
	"testing"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() app.QuizInput {
	return app.QuizInput{
		Title:      "  Go Concurrency  ",
		Category:   "Programming",
		Difficulty: "Medium",
		Questions: []app.QuestionInput{
			{Text: "Which keyword starts a goroutine?", Options: []app.OptionInput{
				{Text: "go", Correct: true},
				{Text: "async"},
			}},
		},
	}
}

func TestCreateQuiz(t *testing.T) {
	ctx := context.Background()
	deps := newTestService(t)

	quiz, err := deps.service.CreateQuiz(ctx, admin, validInput())
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency", quiz.Title)
	assert.Equal(t, "go-concurrency", quiz.Slug)
	assert.True(t, quiz.Active)
	assert.NotEmpty(t, quiz.ID)
	require.Len(t, quiz.Questions, 1)
	assert.NotEmpty(t, quiz.Questions[0].ID)
	assert.NotEqual(t, quiz.Questions[0].Options[0].ID, quiz.Questions[0].Options[1].ID)

	stored, err := deps.store.LoadQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz, stored)
}

func TestCreateQuizRequiresAdmin(t *testing.T) {
	deps := newTestService(t)

	_, err := deps.service.CreateQuiz(context.Background(), alice, validInput())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = deps.service.CreateQuiz(context.Background(), domain.Anonymous(), validInput())
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestCreateQuizValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*app.QuizInput)
		field string
		rule  string
	}{
		{"missing title", func(in *app.QuizInput) { in.Title = "   " }, "title", "required"},
		{"unknown difficulty", func(in *app.QuizInput) { in.Difficulty = "Brutal" }, "difficulty", "difficulty_level"},
		{"no questions", func(in *app.QuizInput) { in.Questions = nil }, "questions", "required"},
		{"empty question text", func(in *app.QuizInput) { in.Questions[0].Text = "" }, "questions[0].text", "required"},
		{"empty option text", func(in *app.QuizInput) { in.Questions[0].Options[1].Text = " " }, "questions[0].options[1].text", "required"},
		{"single option", func(in *app.QuizInput) { in.Questions[0].Options = in.Questions[0].Options[:1] }, "questions[0].options", "min"},
		{"two correct options", func(in *app.QuizInput) { in.Questions[0].Options[1].Correct = true }, "questions[0].options", "one_correct"},
		{"no correct option", func(in *app.QuizInput) { in.Questions[0].Options[0].Correct = false }, "questions[0].options", "one_correct"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestService(t)
			in := validInput()
			tc.edit(&in)

			_, err := deps.service.CreateQuiz(context.Background(), admin, in)
			require.ErrorIs(t, err, domain.ErrValidation)

			var verrs domain.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			found := false
			for _, ve := range verrs {
				if ve.Field == tc.field && ve.Rule == tc.rule {
					found = true
				}
			}
			assert.True(t, found, "expected %s/%s in %+v", tc.field, tc.rule, verrs)

			all, err := deps.service.ListAllQuizzes(context.Background(), admin)
			require.NoError(t, err)
			assert.Len(t, all, 1, "nothing is stored on validation failure")
		})
	}
}

func TestUpdateQuizReplacesQuestionSet(t *testing.T) {
	ctx := context.Background()
	deps := newTestService(t)

	// Warm the cache so the update has to invalidate it.
	_, err := deps.service.GetQuiz(ctx, "quiz-1", alice)
	require.NoError(t, err)
	before, err := deps.store.LoadQuiz(ctx, "quiz-1")
	require.NoError(t, err)

	in := validInput()
	updated, err := deps.service.UpdateQuiz(ctx, admin, "quiz-1", in)
	require.NoError(t, err)
	assert.Equal(t, "quiz-1", updated.ID)
	assert.Equal(t, before.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.Active)
	require.Len(t, updated.Questions, 1)
	assert.NotEqual(t, "Q1", updated.Questions[0].ID)

	view, err := deps.service.GetQuiz(ctx, "quiz-1", alice)
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency", view.Title)
	assert.Equal(t, 1, view.QuestionCount)

	_, err = deps.service.UpdateQuiz(ctx, admin, "missing", validInput())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateQuizKeepsExistingResults(t *testing.T) {
	ctx := context.Background()
	deps := newTestService(t)

	result, err := deps.service.SubmitAttempt(ctx, alice, app.Submission{QuizID: "quiz-1", Answers: domain.Answers{"Q1": "A", "Q2": "B"}})
	require.NoError(t, err)

	_, err = deps.service.UpdateQuiz(ctx, admin, "quiz-1", validInput())
	require.NoError(t, err)

	stored, err := deps.service.GetResult(ctx, result.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Score)
	assert.Equal(t, 2, stored.Total)
}

func TestDeleteQuizCascadesResults(t *testing.T) {
	ctx := context.Background()
	deps := newTestService(t)

	result, err := deps.service.SubmitAttempt(ctx, alice, app.Submission{QuizID: "quiz-1"})
	require.NoError(t, err)

	require.NoError(t, deps.service.DeleteQuiz(ctx, admin, "quiz-1"))

	_, err = deps.service.GetQuiz(ctx, "quiz-1", alice)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = deps.service.GetResult(ctx, result.ID, admin)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, deps.service.DeleteQuiz(ctx, admin, "quiz-1"), domain.ErrNotFound)
	assert.ErrorIs(t, deps.service.DeleteQuiz(ctx, alice, "quiz-1"), domain.ErrUnauthorized)
}
