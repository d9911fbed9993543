package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/events"
	"timed-quiz-service/internal/infra/memory"
	pgstore "timed-quiz-service/internal/infra/postgres"
	redisstore "timed-quiz-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// application holds the collaborators shared by the CLI commands.
type application struct {
	cfg     config.Config
	logger  *slog.Logger
	service *app.QuizService
	bus     *events.Bus
	closers []func() error
}

// buildApplication wires storage, caches and the event bus from cfg.
// Without postgres.url the service runs on an in-memory store seeded with
// demo quizzes; without redis.addr caches and the submission guard stay in
// process.
func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	a := &application{cfg: cfg, logger: logger}

	var (
		store   app.QuizStore
		results app.ResultStore
		loader  memory.QuizLoader
	)
	if cfg.Postgres.URL != "" {
		db := openBunDB(cfg.Postgres.URL)
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres pool: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		pg := pgstore.NewStore(db)
		store, results = pg, pg
		loader = pgstore.NewQuizLoader(pool)
	} else {
		logger.Warn("postgres.url not set, using in-memory store with demo quizzes")
		mem := memory.NewStoreWithQuizzes(sampleQuizzes()...)
		store, results, loader = mem, mem, mem
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	timeLimit := config.TTLDuration(cfg.Quiz.TimeLimit, app.DefaultTimeLimit)
	guardTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	boardTTL := config.TTLDuration(cfg.Leaderboard.PollInterval, app.DefaultPollInterval)
	if guardTTL < timeLimit {
		guardTTL = 2 * timeLimit
	}

	deps := app.Dependencies{
		Store:     store,
		Results:   results,
		Logger:    logger,
		TimeLimit: timeLimit,
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		deps.Quizzes = redisstore.NewQuizRepository(client, loader, quizTTL)
		deps.Guard = redisstore.NewSubmissionGuard(client, guardTTL)
		deps.Leaderboard = redisstore.NewLeaderboardCache(client, boardTTL)
	} else {
		deps.Quizzes = memory.NewQuizRepository(loader, quizTTL)
		deps.Guard = memory.NewSubmissionGuard(guardTTL)
		deps.Leaderboard = memory.NewLeaderboardCache(boardTTL)
	}

	if cfg.Events.Enabled {
		bus, err := newEventBus(cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.bus = bus
		a.closers = append(a.closers, bus.Close)
		deps.Events = bus
	}

	a.service = app.NewQuizService(deps)
	return a, nil
}

func newEventBus(cfg config.Config, logger *slog.Logger) (*events.Bus, error) {
	switch cfg.Events.Publisher {
	case "kafka":
		if len(cfg.Events.KafkaBrokers) == 0 {
			return nil, errors.New("events.kafkaBrokers not configured")
		}
		return events.NewKafkaBus(events.Config{
			KafkaBrokers:  cfg.Events.KafkaBrokers,
			TopicName:     cfg.Events.Topic,
			ConsumerGroup: cfg.Events.ConsumerGroup,
			Logger:        logger,
		})
	case "", "gochannel":
		return events.NewInProcessBus(cfg.Events.Topic, logger), nil
	default:
		return nil, fmt.Errorf("unknown events publisher %q", cfg.Events.Publisher)
	}
}

// Close releases connections in reverse order of creation.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// operator is the principal used by maintenance commands.
func operator() domain.Principal {
	return domain.Principal{UserID: "cli", Name: "operator", Role: domain.RoleAdmin}
}
