package domain

import "time"

// PassThreshold is the minimum percentage for a PASS verdict.
const PassThreshold = 60.0

// Role is the authorization role carried by a principal.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Principal is the actor performing an operation. A zero Principal is anonymous.
type Principal struct {
	UserID string
	Name   string
	Role   Role
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal { return Principal{} }

func (p Principal) Authenticated() bool { return p.UserID != "" }

func (p Principal) IsAdmin() bool { return p.Authenticated() && p.Role == RoleAdmin }

// Verdict classifies a result against PassThreshold.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Code    string   `json:"code,omitempty"`
	Options []Option `json:"options"`
}

// CorrectOption returns the single correct option. ok is false when the
// question has zero or several options flagged correct.
func (q Question) CorrectOption() (Option, bool) {
	var found Option
	n := 0
	for _, opt := range q.Options {
		if opt.Correct {
			found = opt
			n++
		}
	}
	return found, n == 1
}

// HasOption reports whether optionID belongs to the question.
func (q Question) HasOption(optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// Quiz is an ordered collection of questions plus listing metadata.
type Quiz struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Difficulty  string     `json:"difficulty"`
	Active      bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	Questions   []Question `json:"questions"`
}

// Question looks a question up by identity.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Summary drops the question tree.
func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:            q.ID,
		Slug:          q.Slug,
		Title:         q.Title,
		Description:   q.Description,
		Category:      q.Category,
		Difficulty:    q.Difficulty,
		Active:        q.Active,
		CreatedAt:     q.CreatedAt,
		QuestionCount: len(q.Questions),
	}
}

// Clone returns a deep copy so callers cannot mutate shared question trees.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		out.Questions[i] = question
		out.Questions[i].Options = append([]Option(nil), question.Options...)
	}
	return out
}

// QuizSummary is the listing view of a quiz.
type QuizSummary struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category"`
	Difficulty    string    `json:"difficulty"`
	Active        bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	QuestionCount int       `json:"questionCount"`
}

// OptionView is an option as exposed to a principal. Correct is nil unless
// the principal may see the answer key.
type OptionView struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct *bool  `json:"isCorrect,omitempty"`
}

// QuestionView is a question as exposed to a principal.
type QuestionView struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Code    string       `json:"code,omitempty"`
	Options []OptionView `json:"options"`
}

// QuizView is a quiz as exposed to a principal.
type QuizView struct {
	QuizSummary
	Questions []QuestionView `json:"questions"`
}

// Answers maps question ID to the selected option ID.
type Answers map[string]string

// Score is the pure outcome of scoring one set of answers.
type Score struct {
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Verdict    Verdict `json:"status"`
}

// Result is the persisted, immutable outcome of a submitted attempt.
type Result struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	QuizID     string    `json:"quizId"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	Verdict    Verdict   `json:"status"`
	TimeTaken  *int      `json:"timeTaken,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UserName   string    `json:"userName,omitempty"`

	// Joined from the quiz at read time; never persisted.
	QuizTitle string `json:"quizTitle,omitempty"`
	Category  string `json:"category,omitempty"`
}

// LeaderboardEntry is a ranked result.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Result Result `json:"result"`
}

// Leaderboard captures the ordered standings across all results.
type Leaderboard struct {
	Podium    []LeaderboardEntry `json:"podium"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
