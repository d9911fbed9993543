package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"

	"github.com/gorilla/websocket"
)

// WSHandler hosts one timed attempt per websocket connection. The server owns
// the clock: it ticks once per tickInterval and submits when time runs out.
type WSHandler struct {
	service      *app.QuizService
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	tickInterval time.Duration
}

func NewWSHandler(service *app.QuizService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service:      service,
		logger:       logger,
		upgrader:     newUpgrader(),
		tickInterval: time.Second,
	}
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type tickPayload struct {
	Remaining int `json:"remaining"`
}

type submittedPayload struct {
	Trigger domain.SubmitTrigger `json:"trigger"`
	Result  domain.Result        `json:"result"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs an attempt for ?quizId=.
//
// Client messages: start, select {questionId, optionId}, next, previous, submit.
// Server messages: ready, state, tick {remaining}, submitted {trigger, result},
// closed (the timed-out attempt could not be stored and will not be retried), error.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		respondWithError(w, http.StatusBadRequest, "missing quizId")
		return
	}
	p := PrincipalFrom(r.Context())

	attempt, err := h.service.StartAttempt(r.Context(), quizID, p)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	clockDone := make(chan struct{})
	started := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(clockDone)
		select {
		case <-started:
		case <-ctx.Done():
			return
		}
		h.runClock(ctx, attempt, send)
	}()

	send <- outboundMessage[any]{Type: "ready", Payload: attempt.State()}

	clockStarted := false
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var (
			state stepOutcome
			opErr error
		)
		switch inbound.Type {
		case "start":
			state.State, opErr = attempt.Start()
			if opErr == nil && !clockStarted {
				clockStarted = true
				close(started)
			}
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.emit(ctx, send, errorMessage("invalid select payload"))
				continue
			}
			state.State, opErr = attempt.SelectAnswer(payload.QuestionID, payload.OptionID)
		case "next":
			state.State, opErr = attempt.Advance()
		case "previous":
			state.State, opErr = attempt.Retreat()
		case "submit":
			var result domain.Result
			result, opErr = attempt.Submit(ctx)
			if opErr == nil {
				state.Result = &submittedPayload{Trigger: domain.TriggerManual, Result: result}
			}
		default:
			h.emit(ctx, send, errorMessage("unsupported message type"))
			continue
		}

		if opErr != nil {
			h.emit(ctx, send, h.errorFor(ctx, attempt, opErr))
			continue
		}
		if state.Result != nil {
			h.emit(ctx, send, outboundMessage[any]{Type: "submitted", Payload: *state.Result})
			continue
		}
		h.emit(ctx, send, outboundMessage[any]{Type: "state", Payload: state.State})
	}

	cancel()
	<-clockDone
	close(send)
	<-writerDone
}

type stepOutcome struct {
	State  app.AttemptState
	Result *submittedPayload
}

// runClock ticks the attempt until it is submitted or the connection ends.
func (h *WSHandler) runClock(ctx context.Context, attempt *app.Attempt, send chan<- outboundMessage[any]) {
	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		remaining, result, err := attempt.Tick(ctx)
		if err != nil {
			h.emit(ctx, send, h.errorFor(ctx, attempt, err))
			if errors.Is(err, domain.ErrPersistence) {
				// Time is up but the result was not stored; the next tick retries.
				continue
			}
			h.emit(ctx, send, outboundMessage[any]{Type: "closed", Payload: attempt.State()})
			return
		}
		if result != nil {
			h.emit(ctx, send, outboundMessage[any]{Type: "submitted", Payload: submittedPayload{Trigger: domain.TriggerTimeout, Result: *result}})
			return
		}
		if phase := attempt.Phase(); phase == domain.PhaseSubmitted || phase == domain.PhaseClosed {
			return
		}
		h.emit(ctx, send, outboundMessage[any]{Type: "tick", Payload: tickPayload{Remaining: remaining}})
	}
}

func (h *WSHandler) emit(ctx context.Context, send chan<- outboundMessage[any], msg outboundMessage[any]) {
	select {
	case send <- msg:
	case <-ctx.Done():
	}
}

func (h *WSHandler) errorFor(ctx context.Context, attempt *app.Attempt, err error) outboundMessage[any] {
	if errors.Is(err, domain.ErrPersistence) {
		h.logger.WarnContext(ctx, "attempt submission failed", "attempt_id", attempt.ID(), "error", err)
	}
	_, message := statusFromError(err)
	return errorMessage(message)
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
