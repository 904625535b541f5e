package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/grading"
	"quiz-attempt-service/internal/infra/memory"
	pgloader "quiz-attempt-service/internal/infra/postgres"
	redisinfra "quiz-attempt-service/internal/infra/redis"
	"quiz-attempt-service/internal/logger"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the attempt server",
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

	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	slotTTL := config.Duration(cfg.Redis.TTL, 4*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	quizzes, questions := sampleContent()
	var loader memory.ContentLoader = memory.NewStaticContentLoader(quizzes, questions)
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var content app.ContentRepository
	if redisClient != nil {
		content = redisinfra.NewContentRepository(redisClient, loader, quizTTL)
	} else {
		content = memory.NewContentRepository(loader, quizTTL)
	}

	var registry app.AttemptRegistry
	if redisClient != nil {
		registry = redisinfra.NewAttemptRegistry(redisClient, slotTTL)
	} else {
		registry = memory.NewAttemptRegistry()
	}

	var grader app.GradingClient
	if cfg.Grading.URL != "" {
		grader = grading.NewClient(cfg.Grading.URL, config.Duration(cfg.Grading.Timeout, 10*time.Second), log)
	} else {
		log.Warn().Msg("grading.url not configured, using the answered-counts-as-correct stub grader")
		grader = memory.NewStubGradingClient(questions)
	}

	service := app.NewAttemptService(content, registry, grader,
		app.WithServiceTick(config.Duration(cfg.Session.Tick, time.Second)),
		app.WithServiceLogger(log),
	)
	defer service.Close()

	wsHandler := transport.NewWSHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting attempt service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleContent provides a minimal quiz for running without Postgres.
func sampleContent() (map[string]domain.Quiz, map[string][]domain.Question) {
	limit := 120
	quizzes := map[string]domain.Quiz{
		"quiz-1": {
			ID:               "quiz-1",
			Title:            "Sample quiz",
			TimeLimitSeconds: &limit,
			PassingScorePct:  70,
			TotalPoints:      3,
		},
	}
	questions := map[string][]domain.Question{
		"quiz-1": {
			{
				ID:      "q1",
				Order:   0,
				Type:    domain.QuestionSingleChoice,
				Prompt:  "What is 2 + 2?",
				Options: []string{"3", "4", "5"},
				Points:  1,
			},
			{
				ID:     "q2",
				Order:  1,
				Type:   domain.QuestionTrueFalse,
				Prompt: "The sky is blue.",
				Points: 1,
			},
			{
				ID:     "q3",
				Order:  2,
				Type:   domain.QuestionShortAnswer,
				Prompt: "Name a primary color.",
				Points: 1,
			},
		},
	}
	return quizzes, questions
}
