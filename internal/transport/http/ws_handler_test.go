package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

func TestWebSocketAttemptFlow(t *testing.T) {
	env := newTestEnv(t, time.Minute, time.Second)

	conn, _, err := env.dial(t, "/ws/attempts?quizId=quiz-1", env.token(t, "alice", domain.RoleUser))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var state app.AttemptState
	ready := readNext(t, conn, "ready")
	if err := json.Unmarshal(ready.Payload, &state); err != nil {
		t.Fatalf("decode ready: %v", err)
	}
	if state.Phase != domain.PhaseNotStarted.String() {
		t.Fatalf("expected not started, got %s", state.Phase)
	}

	// Submitting before the last question is refused.
	send(t, conn, "start", nil)
	readNext(t, conn, "state")
	send(t, conn, "select", selectPayload{QuestionID: "q1", OptionID: "o1"})
	readNext(t, conn, "state")
	send(t, conn, "submit", nil)
	readNext(t, conn, "error")

	send(t, conn, "next", nil)
	msg := readNext(t, conn, "state")
	if err := json.Unmarshal(msg.Payload, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Current != 1 || state.Question == nil || state.Question.ID != "q2" {
		t.Fatalf("expected to be on q2, got %+v", state)
	}
	for _, opt := range state.Question.Options {
		if opt.Correct != nil {
			t.Fatalf("participant must not see the answer key")
		}
	}

	send(t, conn, "select", selectPayload{QuestionID: "q2", OptionID: "o4"})
	readNext(t, conn, "state")
	send(t, conn, "submit", nil)

	var submitted submittedPayload
	msg = readNext(t, conn, "submitted")
	if err := json.Unmarshal(msg.Payload, &submitted); err != nil {
		t.Fatalf("decode submitted: %v", err)
	}
	if submitted.Trigger != domain.TriggerManual {
		t.Fatalf("expected manual trigger, got %s", submitted.Trigger)
	}
	if submitted.Result.Score != 2 || submitted.Result.Verdict != domain.VerdictPass {
		t.Fatalf("unexpected result %+v", submitted.Result)
	}

	// A second submit must not create a second result.
	send(t, conn, "submit", nil)
	readNext(t, conn, "error")

	results, err := env.store.ListResults(context.Background(), app.ResultFilter{UserID: "alice"})
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one result, got %d", len(results))
	}
}

func TestWebSocketAttemptAutoSubmitsOnTimeout(t *testing.T) {
	env := newTestEnv(t, 3*time.Second, 100*time.Millisecond)

	conn, _, err := env.dial(t, "/ws/attempts?quizId=quiz-1", env.token(t, "alice", domain.RoleUser))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(t, conn, "ready")
	send(t, conn, "start", nil)
	readNext(t, conn, "state")
	send(t, conn, "select", selectPayload{QuestionID: "q1", OptionID: "o1"})
	readNext(t, conn, "state")

	var submitted submittedPayload
	msg := readNext(t, conn, "submitted")
	if err := json.Unmarshal(msg.Payload, &submitted); err != nil {
		t.Fatalf("decode submitted: %v", err)
	}
	if submitted.Trigger != domain.TriggerTimeout {
		t.Fatalf("expected timeout trigger, got %s", submitted.Trigger)
	}
	if submitted.Result.Score != 1 || submitted.Result.Total != 2 {
		t.Fatalf("expected partial answers to be scored, got %+v", submitted.Result)
	}
	if submitted.Result.TimeTaken == nil || *submitted.Result.TimeTaken != 3 {
		t.Fatalf("expected full budget as time taken, got %v", submitted.Result.TimeTaken)
	}
}

func TestWebSocketAttemptClosesWhenQuizGoesAway(t *testing.T) {
	env := newTestEnv(t, time.Second, 100*time.Millisecond)

	conn, _, err := env.dial(t, "/ws/attempts?quizId=quiz-1", env.token(t, "alice", domain.RoleUser))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readNext(t, conn, "ready")

	admin := domain.Principal{UserID: "root", Name: "Root", Role: domain.RoleAdmin}
	if _, err := env.service.ToggleQuizActive(context.Background(), admin, "quiz-1", false); err != nil {
		t.Fatalf("deactivate quiz: %v", err)
	}

	send(t, conn, "start", nil)
	readNext(t, conn, "state")

	var failure errorPayload
	msg := readNext(t, conn, "error")
	if err := json.Unmarshal(msg.Payload, &failure); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if failure.Message != "quiz is not available" {
		t.Fatalf("unexpected error message %q", failure.Message)
	}

	var state app.AttemptState
	msg = readNext(t, conn, "closed")
	if err := json.Unmarshal(msg.Payload, &state); err != nil {
		t.Fatalf("decode closed: %v", err)
	}
	if state.Phase != domain.PhaseClosed.String() {
		t.Fatalf("expected closed phase, got %s", state.Phase)
	}

	// The clock has stopped, so no further frames arrive.
	_ = conn.SetReadDeadline(time.Now().Add(400 * time.Millisecond))
	var extra wsMessage
	if err := conn.ReadJSON(&extra); err == nil {
		t.Fatalf("expected no more frames, got %s", extra.Type)
	}

	results, err := env.store.ListResults(context.Background(), app.ResultFilter{UserID: "alice"})
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestWebSocketAttemptRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t, time.Minute, time.Second)

	_, resp, err := env.dial(t, "/ws/attempts?quizId=quiz-1", "")
	if err == nil {
		t.Fatalf("expected anonymous dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}

	_, resp, err = env.dial(t, "/ws/attempts?quizId=missing", env.token(t, "alice", domain.RoleUser))
	if err == nil {
		t.Fatalf("expected unknown quiz dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", resp)
	}
}

func TestLeaderboardWebSocket(t *testing.T) {
	env := newTestEnv(t, time.Minute, time.Second)

	_, resp, err := env.dial(t, "/ws/leaderboard", env.token(t, "alice", domain.RoleUser))
	if err == nil {
		t.Fatalf("expected participant dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}

	conn, _, err := env.dial(t, "/ws/leaderboard", env.token(t, "root", domain.RoleAdmin))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var lb domain.Leaderboard
	msg := readNext(t, conn, "leaderboard")
	if err := json.Unmarshal(msg.Payload, &lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(lb.Entries) != 0 {
		t.Fatalf("expected empty leaderboard, got %+v", lb.Entries)
	}
}
