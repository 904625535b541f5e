package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/domain"
)

type countingLoader struct {
	quizCalls     int
	questionCalls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.quizCalls++
	if quizID != "quiz-1" {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return domain.Quiz{ID: "quiz-1", Title: "Cached", PassingScorePct: 70, TotalPoints: 2}, nil
}

func (l *countingLoader) LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	l.questionCalls++
	return []domain.Question{
		{ID: "q1", Type: domain.QuestionTrueFalse, Points: 1},
		{ID: "q2", Type: domain.QuestionShortAnswer, Points: 1},
	}, nil
}

func TestContentRepositoryFillsBothKeys(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	loader := &countingLoader{}
	repo := NewContentRepository(client, loader, 10*time.Minute)

	quiz, err := repo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.Title != "Cached" {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}
	if !mr.Exists("quiz:quiz-1:meta") || !mr.Exists("quiz:quiz-1:questions") {
		t.Fatalf("fill must populate both keys")
	}

	// Questions are already cached, so the loader is not hit again.
	questions, err := repo.GetQuestions(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if loader.quizCalls != 1 || loader.questionCalls != 1 {
		t.Fatalf("expected a single fill, loader calls quiz=%d questions=%d", loader.quizCalls, loader.questionCalls)
	}
}

func TestContentRepositoryReloadsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	loader := &countingLoader{}
	repo := NewContentRepository(client, loader, time.Minute)

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if loader.quizCalls != 2 {
		t.Fatalf("expected reload after TTL, got %d loader calls", loader.quizCalls)
	}
}

func TestContentRepositoryLoaderError(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewContentRepository(client, &countingLoader{}, time.Minute)
	if _, err := repo.GetQuiz(ctx, "quiz-404"); err == nil {
		t.Fatalf("expected loader error to surface")
	}
	if mr.Exists("quiz:quiz-404:meta") {
		t.Fatalf("failed load must not cache anything")
	}
}
