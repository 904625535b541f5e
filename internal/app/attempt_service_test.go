package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

func newTestService(t *testing.T, grader app.GradingClient, clock *fakeClock, maxAttempts *int) *app.AttemptService {
	t.Helper()
	limit := 120
	quizzes := map[string]domain.Quiz{
		"quiz-1": {
			ID:               "quiz-1",
			Title:            "Networking basics",
			TimeLimitSeconds: &limit,
			PassingScorePct:  70,
			MaxAttempts:      maxAttempts,
			TotalPoints:      3,
		},
	}
	questions := map[string][]domain.Question{"quiz-1": threeQuestions()}
	content := memory.NewContentRepository(memory.NewStaticContentLoader(quizzes, questions), 5*time.Minute)
	service := app.NewAttemptService(content, memory.NewAttemptRegistry(), grader,
		app.WithServiceClock(clock.Now),
		app.WithServiceTick(time.Hour),
	)
	t.Cleanup(service.Close)
	return service
}

func TestStartRejectsSecondActiveAttempt(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(t, &fakeGrader{}, clock, nil)

	if _, err := service.Start(ctx, "quiz-1", "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Start(ctx, "quiz-1", "u1"); !errors.Is(err, domain.ErrAttemptActive) {
		t.Fatalf("expected ErrAttemptActive, got %v", err)
	}
	// A different user is unaffected.
	if _, err := service.Start(ctx, "quiz-1", "u2"); err != nil {
		t.Fatalf("second user start: %v", err)
	}
}

func TestStartUnknownQuiz(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service := newTestService(t, &fakeGrader{}, clock, nil)

	if _, err := service.Start(ctx, "quiz-404", "u1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestAttemptLimitEnforced(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	grader := &fakeGrader{result: domain.GradedResult{Percentage: 90}}
	one := 1
	service := newTestService(t, grader, clock, &one)

	if _, err := service.Start(ctx, "quiz-1", "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Submit(ctx, "quiz-1", "u1", true); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.Start(ctx, "quiz-1", "u1"); !errors.Is(err, domain.ErrAttemptLimit) {
		t.Fatalf("expected ErrAttemptLimit after consuming the only attempt, got %v", err)
	}
}

func TestAbandonDoesNotConsumeAttempt(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	one := 1
	service := newTestService(t, &fakeGrader{}, clock, &one)

	if _, err := service.Start(ctx, "quiz-1", "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := service.Abandon(ctx, "quiz-1", "u1"); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	// The slot is free again and the budget untouched.
	if _, err := service.Start(ctx, "quiz-1", "u1"); err != nil {
		t.Fatalf("restart after abandon: %v", err)
	}
}

func TestServiceSubmitProjectsSummary(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	grader := &fakeGrader{result: domain.GradedResult{
		Score:      3,
		MaxScore:   3,
		Percentage: 100,
		GradedAnswers: []domain.GradedAnswer{
			{QuestionID: "q1", IsCorrect: true, PointsEarned: 1, MaxPoints: 1},
			{QuestionID: "q2", IsCorrect: true, PointsEarned: 1, MaxPoints: 1},
			{QuestionID: "q3", IsCorrect: true, PointsEarned: 1, MaxPoints: 1},
		},
	}}
	service := newTestService(t, grader, clock, nil)

	if _, err := service.Start(ctx, "quiz-1", "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := service.SetAnswer("quiz-1", "u1", "q1", domain.SelectOption(1)); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if err := service.SetAnswer("quiz-1", "u1", "q2", domain.BoolOf(true)); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	if err := service.SetAnswer("quiz-1", "u1", "q3", domain.TextOf("udp")); err != nil {
		t.Fatalf("answer q3: %v", err)
	}
	clock.Advance(50 * time.Second)

	summary, err := service.Submit(ctx, "quiz-1", "u1", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !summary.Passed || summary.Tier != domain.TierExcellent {
		t.Fatalf("expected excellent pass, got %+v", summary)
	}
	if summary.CorrectCount != 3 {
		t.Fatalf("expected 3 correct, got %d", summary.CorrectCount)
	}
	if summary.TimeSpentSeconds != 50 {
		t.Fatalf("expected 50s spent, got %d", summary.TimeSpentSeconds)
	}

	// The finished attempt is gone from the service.
	if _, err := service.Attempt("quiz-1", "u1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound after completion, got %v", err)
	}
}

func TestServiceSubmitDeclinedConfirmation(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	grader := &fakeGrader{}
	service := newTestService(t, grader, clock, nil)

	ctrl, err := service.Start(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := service.SetAnswer("quiz-1", "u1", "q1", domain.SelectOption(0)); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// 1 of 3 answered; the caller declines by simply not forcing.
	if _, err := service.Submit(ctx, "quiz-1", "u1", false); !errors.Is(err, domain.ErrUnansweredQuestions) {
		t.Fatalf("expected ErrUnansweredQuestions, got %v", err)
	}
	if ctrl.Status() != domain.StatusInProgress {
		t.Fatalf("session must stay IN_PROGRESS, got %s", ctrl.Status())
	}
	if grader.callCount() != 0 {
		t.Fatalf("no payload may be sent")
	}
}
