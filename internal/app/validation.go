package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"timed-quiz-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

// QuizInput is the admin payload for creating or replacing a quiz.
type QuizInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Category    string          `json:"category" validate:"required,max=100"`
	Difficulty  string          `json:"difficulty" validate:"required,difficulty_level"`
	Active      *bool           `json:"isActive"`
	Questions   []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

type QuestionInput struct {
	Text    string        `json:"text" validate:"required"`
	Code    string        `json:"code"`
	Options []OptionInput `json:"options" validate:"required,min=2,dive"`
}

type OptionInput struct {
	Text    string `json:"text" validate:"required"`
	Correct bool   `json:"isCorrect"`
}

// Validator checks admin payloads before any mutation happens.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("difficulty_level", validateDifficulty)
	v.RegisterStructValidation(validateSingleCorrect, QuestionInput{})
	return &Validator{validate: v}
}

// ValidateQuiz normalizes whitespace in place and validates the payload.
func (v *Validator) ValidateQuiz(in *QuizInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Difficulty = strings.TrimSpace(in.Difficulty)
	for i := range in.Questions {
		in.Questions[i].Text = strings.TrimSpace(in.Questions[i].Text)
		for j := range in.Questions[i].Options {
			in.Questions[i].Options[j].Text = strings.TrimSpace(in.Questions[i].Options[j].Text)
		}
	}

	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	out := make(domain.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, domain.ValidationError{
			Field:   fieldPath(fe.Namespace()),
			Message: validationMessage(fe),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func validateDifficulty(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "Easy", "Medium", "Hard":
		return true
	}
	return false
}

func validateSingleCorrect(sl validator.StructLevel) {
	q := sl.Current().Interface().(QuestionInput)
	if len(q.Options) == 0 {
		return
	}
	correct := 0
	for _, opt := range q.Options {
		if opt.Correct {
			correct++
		}
	}
	if correct != 1 {
		sl.ReportError(q.Options, "options", "Options", "one_correct", "")
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "difficulty_level":
		return "must be Easy, Medium, or Hard"
	case "one_correct":
		return "must have exactly one correct option"
	default:
		return fmt.Sprintf("validation failed for rule '%s'", fe.Tag())
	}
}
