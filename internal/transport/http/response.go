package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"timed-quiz-service/internal/domain"
)

type errorResponse struct {
	Error   string                   `json:"error"`
	Details []domain.ValidationError `json:"details,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, errorResponse{Error: message})
}

// respondWithDomainError maps service errors to statuses. Anything unmapped
// is reported as a generic internal error.
func respondWithDomainError(w http.ResponseWriter, err error) {
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		respondWithJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Details: verrs})
		return
	}
	status, message := statusFromError(err)
	respondWithError(w, status, message)
}

func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "not allowed"
	case errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound, "quiz not found"
	case errors.Is(err, domain.ErrResultNotFound):
		return http.StatusNotFound, "result not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "validation failed"
	case errors.Is(err, domain.ErrQuizUnavailable):
		return http.StatusConflict, "quiz is not available"
	case errors.Is(err, domain.ErrEmptyQuiz):
		return http.StatusConflict, "quiz has no questions"
	case errors.Is(err, domain.ErrInvalidQuizState):
		return http.StatusConflict, "quiz cannot be scored"
	case errors.Is(err, domain.ErrAttemptSubmitted):
		return http.StatusConflict, "attempt already submitted"
	case errors.Is(err, domain.ErrAttemptExpired):
		return http.StatusConflict, "time is up"
	case errors.Is(err, domain.ErrAttemptNotStarted):
		return http.StatusConflict, "attempt not started"
	case errors.Is(err, domain.ErrAttemptNotInProgress):
		return http.StatusConflict, "attempt not in progress"
	case errors.Is(err, domain.ErrNotFinalQuestion):
		return http.StatusConflict, "submit from the final question"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
