package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/events"
	"timed-quiz-service/internal/scheduler"
	transport "timed-quiz-service/internal/transport/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	logStartup(logger, cfg)
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret not configured")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	application, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	pollInterval := config.TTLDuration(cfg.Leaderboard.PollInterval, app.DefaultPollInterval)
	feed := app.NewLeaderboardFeed(application.service, pollInterval, logger)
	auth := transport.NewAuth(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.RouterDeps{
			Service: application.service,
			Feed:    feed,
			Auth:    auth,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	if interval := config.TTLDuration(cfg.Sweep.Interval, 0); interval > 0 {
		sweeper := scheduler.New(application.service, interval, logger)
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting quiz service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return feed.Run(groupCtx)
	})
	if application.bus != nil {
		group.Go(func() error {
			return application.bus.Listen(groupCtx, func(ctx context.Context, evt events.ResultSubmitted) {
				logger.DebugContext(ctx, "result event received", "result_id", evt.ResultID, "quiz_id", evt.QuizID)
				feed.Notify()
			})
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func logStartup(logger *slog.Logger, cfg config.Config) {
	logger.Info("configuration loaded",
		"postgres", cfg.Postgres.URL != "",
		"redis", cfg.Redis.Addr != "",
		"events", cfg.Events.Enabled,
	)
}
