package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/export"

	"github.com/go-chi/chi/v5"
)

// APIHandler serves the REST surface of the quiz use cases.
type APIHandler struct {
	service *app.QuizService
	logger  *slog.Logger
}

func NewAPIHandler(service *app.QuizService, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{service: service, logger: logger}
}

type submitRequest struct {
	AttemptID string            `json:"attemptId"`
	Answers   map[string]string `json:"answers"`
	TimeTaken *int              `json:"timeTaken"`
}

type toggleRequest struct {
	Active *bool `json:"isActive"`
}

type sweepResponse struct {
	Deleted int `json:"deleted"`
}

// RegisterRoutes mounts participant and admin routes. Role checks happen in
// the service so every entry point shares one policy.
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Get("/quizzes", h.listQuizzes)
	r.Get("/quizzes/{quizID}", h.getQuiz)
	r.Post("/quizzes/{quizID}/submissions", h.submitAttempt)
	r.Get("/results/me", h.listOwnResults)
	r.Get("/results/{resultID}", h.getResult)

	r.Route("/admin", func(admin chi.Router) {
		admin.Get("/quizzes", h.listAllQuizzes)
		admin.Post("/quizzes", h.createQuiz)
		admin.Put("/quizzes/{quizID}", h.updateQuiz)
		admin.Delete("/quizzes/{quizID}", h.deleteQuiz)
		admin.Patch("/quizzes/{quizID}/active", h.toggleQuiz)
		admin.Get("/results", h.listAllResults)
		admin.Get("/results/export", h.exportResults)
		admin.Post("/results/sweep", h.sweepResults)
		admin.Get("/leaderboard", h.leaderboard)
	})
}

func (h *APIHandler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.ListActiveQuizzes(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, quizzes)
}

func (h *APIHandler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetQuiz(r.Context(), chi.URLParam(r, "quizID"), PrincipalFrom(r.Context()))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, quiz)
}

func (h *APIHandler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.service.SubmitAttempt(r.Context(), PrincipalFrom(r.Context()), app.Submission{
		AttemptID: req.AttemptID,
		QuizID:    chi.URLParam(r, "quizID"),
		Answers:   req.Answers,
		TimeTaken: req.TimeTaken,
	})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *APIHandler) listOwnResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ListOwnResults(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, results)
}

func (h *APIHandler) getResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetResult(r.Context(), chi.URLParam(r, "resultID"), PrincipalFrom(r.Context()))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *APIHandler) listAllQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.ListAllQuizzes(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, quizzes)
}

func (h *APIHandler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req app.QuizInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p := PrincipalFrom(r.Context())
	quiz, err := h.service.CreateQuiz(r.Context(), p, req)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, app.ProjectQuiz(p, quiz))
}

func (h *APIHandler) updateQuiz(w http.ResponseWriter, r *http.Request) {
	var req app.QuizInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p := PrincipalFrom(r.Context())
	quiz, err := h.service.UpdateQuiz(r.Context(), p, chi.URLParam(r, "quizID"), req)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, app.ProjectQuiz(p, quiz))
}

func (h *APIHandler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuiz(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "quizID")); err != nil {
		respondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) toggleQuiz(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		respondWithError(w, http.StatusBadRequest, "isActive is required")
		return
	}
	summary, err := h.service.ToggleQuizActive(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "quizID"), *req.Active)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *APIHandler) listAllResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ListAllResults(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, results)
}

func (h *APIHandler) exportResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ListAllResults(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	data, err := export.ResultsWorkbook(results)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "results export failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}
	filename := "results-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *APIHandler) sweepResults(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.SweepOrphanedResultsAs(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sweepResponse{Deleted: deleted})
}

func (h *APIHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, lb)
}

// healthz is kept outside the API group.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

