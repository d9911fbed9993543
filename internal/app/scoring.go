package app

import "timed-quiz-service/internal/domain"

// Score maps a quiz's answer key and submitted answers to a score. Lookup is
// by question identity only, so question order does not matter. A question
// without exactly one correct option contributes nothing.
func Score(quiz domain.Quiz, answers domain.Answers) (domain.Score, error) {
	total := len(quiz.Questions)
	if total == 0 {
		return domain.Score{}, domain.ErrInvalidQuizState
	}

	score := 0
	for _, question := range quiz.Questions {
		correct, ok := question.CorrectOption()
		if !ok {
			continue
		}
		if selected, answered := answers[question.ID]; answered && selected == correct.ID {
			score++
		}
	}

	percentage := float64(score) / float64(total) * 100
	verdict := domain.VerdictFail
	if percentage >= domain.PassThreshold {
		verdict = domain.VerdictPass
	}
	return domain.Score{
		Score:      score,
		Total:      total,
		Percentage: percentage,
		Verdict:    verdict,
	}, nil
}
