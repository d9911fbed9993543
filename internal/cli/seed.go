package cli

import (
	"time"

	"timed-quiz-service/internal/domain"
)

// sampleQuizzes seeds the in-memory store when no database is configured.
func sampleQuizzes() []domain.Quiz {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Quiz{
		{
			ID:         "go-basics",
			Slug:       "go-basics",
			Title:      "Go Basics",
			Category:   "programming",
			Difficulty: "Easy",
			Active:     true,
			CreatedAt:  created,
			Questions: []domain.Question{
				{
					ID:   "go-basics-q1",
					Text: "Which keyword starts a goroutine?",
					Options: []domain.Option{
						{ID: "go-basics-q1-o1", Text: "async"},
						{ID: "go-basics-q1-o2", Text: "go", Correct: true},
						{ID: "go-basics-q1-o3", Text: "spawn"},
					},
				},
				{
					ID:   "go-basics-q2",
					Text: "What does this print?",
					Code: "fmt.Println(len(\"héllo\"))",
					Options: []domain.Option{
						{ID: "go-basics-q2-o1", Text: "5"},
						{ID: "go-basics-q2-o2", Text: "6", Correct: true},
					},
				},
			},
		},
		{
			ID:         "arithmetic",
			Slug:       "arithmetic",
			Title:      "Arithmetic",
			Category:   "math",
			Difficulty: "Easy",
			Active:     true,
			CreatedAt:  created.Add(time.Hour),
			Questions: []domain.Question{
				{
					ID:   "arithmetic-q1",
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "arithmetic-q1-o1", Text: "3"},
						{ID: "arithmetic-q1-o2", Text: "4", Correct: true},
						{ID: "arithmetic-q1-o3", Text: "5"},
					},
				},
			},
		},
	}
}
