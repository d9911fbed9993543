package http

import (
	"log/slog"
	"net/http"
	"time"

	"timed-quiz-service/internal/app"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps are the collaborators mounted by NewRouter.
type RouterDeps struct {
	Service *app.QuizService
	Feed    *app.LeaderboardFeed
	Auth    *Auth
	Logger  *slog.Logger
	// TickInterval is the attempt clock period; defaults to one second.
	TickInterval time.Duration
}

func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chiMiddleware.Recoverer)

	// Verifier puts the token (or its error) in context; Identify turns it
	// into a principal, anonymous when no token was sent.
	r.Use(deps.Auth.Verifier())
	r.Use(deps.Auth.Identify)

	r.Get("/healthz", healthz)

	api := NewAPIHandler(deps.Service, logger)
	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(chiMiddleware.Timeout(60 * time.Second))
		api.RegisterRoutes(v1)
	})

	attempts := NewWSHandler(deps.Service, logger)
	if deps.TickInterval > 0 {
		attempts.tickInterval = deps.TickInterval
	}
	r.Get("/ws/attempts", attempts.ServeWS)
	if deps.Feed != nil {
		r.Get("/ws/leaderboard", NewLeaderboardHandler(deps.Feed, logger).ServeWS)
	}
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chiMiddleware.GetReqID(r.Context()))
		})
	}
}
