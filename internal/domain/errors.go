package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an operation needs a principal and none was given.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrUnauthorized is returned when the principal's role does not allow the operation.
	ErrUnauthorized = errors.New("insufficient permissions")
	// ErrNotFound is the parent of every lookup failure.
	ErrNotFound = errors.New("not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = fmt.Errorf("option %w", ErrNotFound)
	// ErrResultNotFound indicates the requested result does not exist.
	ErrResultNotFound = fmt.Errorf("result %w", ErrNotFound)
	// ErrValidation is matched by every ValidationErrors value.
	ErrValidation = errors.New("validation failed")
	// ErrQuizUnavailable is returned when an inactive quiz is attempted.
	ErrQuizUnavailable = errors.New("quiz is not available")
	// ErrEmptyQuiz is returned when a quiz without questions is attempted.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrInvalidQuizState is returned by the scorer for a zero-question quiz.
	ErrInvalidQuizState = errors.New("quiz cannot be scored without questions")
	// ErrPersistence wraps downstream store failures.
	ErrPersistence = errors.New("persistence failure")

	ErrAttemptNotStarted    = errors.New("attempt not started")
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
	ErrAttemptSubmitted     = errors.New("attempt already submitted")
	ErrAttemptExpired       = errors.New("attempt time is up")
	ErrNotFinalQuestion     = errors.New("attempt can only be submitted from the final question")
)

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Rule    string `json:"rule,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

func (ve ValidationErrors) Is(target error) bool { return target == ErrValidation }

// PermissionError explains why an operation was denied.
type PermissionError struct {
	UserID    string `json:"userId,omitempty"`
	Operation string `json:"operation"`
	Reason    error  `json:"-"`
}

func (e *PermissionError) Error() string {
	who := e.UserID
	if who == "" {
		who = "anonymous"
	}
	return fmt.Sprintf("permission denied: %s cannot %s: %v", who, e.Operation, e.Reason)
}

func (e *PermissionError) Unwrap() error { return e.Reason }
