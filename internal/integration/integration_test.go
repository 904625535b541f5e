package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/grading"
	pgloader "quiz-attempt-service/internal/infra/postgres"
	pgmigrations "quiz-attempt-service/internal/infra/postgres/migrations"
	infraredis "quiz-attempt-service/internal/infra/redis"
)

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz(), sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	// Grading server that fails its first request so the retry path is
	// exercised against real infrastructure.
	var gradingCalls int
	gradingSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gradingCalls++
		if gradingCalls == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		var payload domain.SubmissionPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(domain.GradedResult{
			Score:      2,
			MaxScore:   2,
			Percentage: 100,
			GradedAnswers: []domain.GradedAnswer{
				{QuestionID: "q1", IsCorrect: true, PointsEarned: 1, MaxPoints: 1},
				{QuestionID: "q2", IsCorrect: true, PointsEarned: 1, MaxPoints: 1},
			},
		})
	}))
	defer gradingSrv.Close()

	loader := pgloader.NewQuizLoader(pool)
	content := infraredis.NewContentRepository(redisClient, loader, 5*time.Minute)
	registry := infraredis.NewAttemptRegistry(redisClient, time.Hour)
	grader := grading.NewClient(gradingSrv.URL, 5*time.Second, zerolog.Nop())
	service := app.NewAttemptService(content, registry, grader)
	defer service.Close()

	if _, err := service.Start(ctx, "quiz-1", "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// The active slot blocks a second attempt across the shared registry.
	if _, err := service.Start(ctx, "quiz-1", "u1"); !errors.Is(err, domain.ErrAttemptActive) {
		t.Fatalf("expected ErrAttemptActive, got %v", err)
	}

	if err := service.SetAnswer("quiz-1", "u1", "q1", domain.SelectOption(1)); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if err := service.SetAnswer("quiz-1", "u1", "q2", domain.BoolOf(true)); err != nil {
		t.Fatalf("answer q2: %v", err)
	}

	// First submit hits the 503 and leaves the attempt retryable.
	if _, err := service.Submit(ctx, "quiz-1", "u1", false); !errors.Is(err, domain.ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed on first submit, got %v", err)
	}

	summary, err := service.Submit(ctx, "quiz-1", "u1", false)
	if err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if !summary.Passed || summary.Tier != domain.TierExcellent {
		t.Fatalf("expected excellent pass, got %+v", summary)
	}
	if gradingCalls != 2 {
		t.Fatalf("expected 2 grading calls, got %d", gradingCalls)
	}

	// Completion consumed one attempt and freed the slot.
	used, err := registry.AttemptsUsed(ctx, "quiz-1", "u1")
	if err != nil || used != 1 {
		t.Fatalf("expected 1 attempt used, got %d err=%v", used, err)
	}
	if _, err := service.Start(ctx, "quiz-1", "u1"); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz, questions []domain.Question) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		t.Fatalf("marshal questions: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO quizzes (id, data, questions) VALUES (?, ?::jsonb, ?::jsonb)
		 ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, questions=EXCLUDED.questions`,
		quiz.ID, string(data), string(questionsJSON)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	limit := 300
	return domain.Quiz{
		ID:               "quiz-1",
		Title:            "Networking basics",
		TimeLimitSeconds: &limit,
		PassingScorePct:  70,
		TotalPoints:      2,
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Order: 0, Type: domain.QuestionSingleChoice, Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Points: 1},
		{ID: "q2", Order: 1, Type: domain.QuestionTrueFalse, Prompt: "UDP is connectionless.", Points: 1},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
