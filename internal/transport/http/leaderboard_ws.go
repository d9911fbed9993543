package http

import (
	"log/slog"
	"net/http"

	"timed-quiz-service/internal/app"

	"github.com/gorilla/websocket"
)

// LeaderboardHandler streams leaderboard snapshots to administrators.
type LeaderboardHandler struct {
	feed     *app.LeaderboardFeed
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewLeaderboardHandler(feed *app.LeaderboardFeed, logger *slog.Logger) *LeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardHandler{feed: feed, logger: logger, upgrader: newUpgrader()}
}

func (h *LeaderboardHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	updates, cancel, err := h.feed.Subscribe(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reads only detect the close; clients have nothing to send.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case lb, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "leaderboard", Payload: lb}); err != nil {
				h.logger.Debug("ws write error", "error", err)
				return
			}
		}
	}
}
