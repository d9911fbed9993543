package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"

	"github.com/gorilla/websocket"
)

const testSecret = "test-secret"

type testEnv struct {
	server  *httptest.Server
	auth    *Auth
	store   *memory.Store
	service *app.QuizService
}

func newTestEnv(t *testing.T, timeLimit, tick time.Duration) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStoreWithQuizzes(sampleQuiz())
	service := app.NewQuizService(app.Dependencies{
		Quizzes:     memory.NewQuizRepository(store, time.Minute),
		Store:       store,
		Results:     store,
		Guard:       memory.NewSubmissionGuard(time.Hour),
		Leaderboard: memory.NewLeaderboardCache(time.Second),
		Logger:      logger,
		TimeLimit:   timeLimit,
	})
	auth := NewAuth(testSecret, time.Hour)
	router := NewRouter(RouterDeps{
		Service:      service,
		Feed:         app.NewLeaderboardFeed(service, time.Second, logger),
		Auth:         auth,
		Logger:       logger,
		TickInterval: tick,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, auth: auth, store: store, service: service}
}

func (e *testEnv) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	token, err := e.auth.IssueToken(userID, strings.ToUpper(userID[:1])+userID[1:], role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = strings.NewReader(string(raw))
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) dial(t *testing.T, path, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + path
	if token != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		u += sep + "jwt=" + token
	}
	return websocket.DefaultDialer.Dial(u, nil)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readNext returns the next message whose type is not "tick".
func readNext(t *testing.T, conn *websocket.Conn, expect string) wsMessage {
	t.Helper()
	for {
		var msg wsMessage
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if msg.Type == "tick" && expect != "tick" {
			continue
		}
		if expect != "" && msg.Type != expect {
			t.Fatalf("expected type %s, got %s (%s)", expect, msg.Type, msg.Payload)
		}
		return msg
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload interface{}) {
	t.Helper()
	msg := map[string]interface{}{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:         "quiz-1",
		Title:      "Arithmetic",
		Category:   "Math",
		Difficulty: "Easy",
		Active:     true,
		CreatedAt:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "4", Correct: true},
					{ID: "o2", Text: "5"},
				},
			},
			{
				ID:   "q2",
				Text: "What is 3 * 3?",
				Options: []domain.Option{
					{ID: "o3", Text: "6"},
					{ID: "o4", Text: "9", Correct: true},
				},
			},
		},
	}
}
