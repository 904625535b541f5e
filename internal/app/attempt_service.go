package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/domain"
)

// ContentRepository supplies immutable quiz content. The service reads a
// quiz's metadata and questions exactly once per attempt and never refreshes
// them mid-attempt.
type ContentRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// AttemptRegistry enforces the one-active-attempt-per-(quiz,user) invariant
// and counts consumed attempts against the quiz's budget.
type AttemptRegistry interface {
	// Acquire claims the active slot; ErrAttemptActive when already held.
	Acquire(ctx context.Context, quizID, userID, sessionID string) error
	// Release frees the slot without consuming an attempt (abandon, failed start).
	Release(ctx context.Context, quizID, userID string)
	// Complete consumes an attempt and frees the slot.
	Complete(ctx context.Context, quizID, userID string) error
	// AttemptsUsed returns how many attempts the user has consumed.
	AttemptsUsed(ctx context.Context, quizID, userID string) (int, error)
}

// AttemptService is the UI-facing façade: one controller per active
// (quiz, user) attempt, wired to content, registry, and grading.
type AttemptService struct {
	content  ContentRepository
	registry AttemptRegistry
	grader   GradingClient
	clock    Clock
	tick     time.Duration
	log      zerolog.Logger

	mu       sync.RWMutex
	attempts map[string]*Controller
}

// ServiceOption tweaks AttemptService construction.
type ServiceOption func(*AttemptService)

// WithServiceClock injects a deterministic clock.
func WithServiceClock(clock Clock) ServiceOption {
	return func(s *AttemptService) { s.clock = clock }
}

// WithServiceTick overrides the countdown cadence for new attempts.
func WithServiceTick(d time.Duration) ServiceOption {
	return func(s *AttemptService) { s.tick = d }
}

// WithServiceLogger attaches a logger.
func WithServiceLogger(log zerolog.Logger) ServiceOption {
	return func(s *AttemptService) { s.log = log }
}

func NewAttemptService(content ContentRepository, registry AttemptRegistry, grader GradingClient, opts ...ServiceOption) *AttemptService {
	s := &AttemptService{
		content:  content,
		registry: registry,
		grader:   grader,
		clock:    time.Now,
		tick:     time.Second,
		log:      zerolog.Nop(),
		attempts: make(map[string]*Controller),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func attemptKey(quizID, userID string) string {
	return quizID + "/" + userID
}

// Start begins a new attempt. Fails when one is already active, when the
// attempt budget is exhausted, or when the quiz has no questions.
func (s *AttemptService) Start(ctx context.Context, quizID, userID string) (*Controller, error) {
	quiz, err := s.content.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	questions, err := s.content.GetQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions %s: %w", quizID, err)
	}

	if quiz.MaxAttempts != nil {
		used, err := s.registry.AttemptsUsed(ctx, quizID, userID)
		if err != nil {
			return nil, fmt.Errorf("attempt count %s/%s: %w", quizID, userID, err)
		}
		if used >= *quiz.MaxAttempts {
			return nil, fmt.Errorf("quiz %s allows %d attempts: %w", quizID, *quiz.MaxAttempts, domain.ErrAttemptLimit)
		}
	}

	sessionID := uuid.NewString()
	if err := s.registry.Acquire(ctx, quizID, userID, sessionID); err != nil {
		return nil, err
	}

	key := attemptKey(quizID, userID)
	ctrl := NewController(sessionID, quiz, questions, s.grader,
		WithClock(s.clock),
		WithTickInterval(s.tick),
		WithLogger(s.log.With().Str("session_id", sessionID).Logger()),
		WithCompletionHook(func() { s.finish(key, quizID, userID) }),
	)

	if err := ctrl.Start(); err != nil {
		s.registry.Release(ctx, quizID, userID)
		return nil, err
	}

	s.mu.Lock()
	s.attempts[key] = ctrl
	s.mu.Unlock()
	return ctrl, nil
}

// Attempt returns the active controller for a (quiz, user) pair.
func (s *AttemptService) Attempt(quizID, userID string) (*Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctrl, ok := s.attempts[attemptKey(quizID, userID)]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return ctrl, nil
}

// SetAnswer records an answer on the active attempt.
func (s *AttemptService) SetAnswer(quizID, userID, questionID string, value domain.AnswerValue) error {
	ctrl, err := s.Attempt(quizID, userID)
	if err != nil {
		return err
	}
	return ctrl.SetAnswer(questionID, value)
}

// ToggleFlag flips a review flag on the active attempt.
func (s *AttemptService) ToggleFlag(quizID, userID, questionID string) error {
	ctrl, err := s.Attempt(quizID, userID)
	if err != nil {
		return err
	}
	return ctrl.ToggleFlag(questionID)
}

// Submit hands the active attempt to the grading service and projects the
// outcome. With force=false, unanswered questions surface
// ErrUnansweredQuestions so the caller can confirm first.
func (s *AttemptService) Submit(ctx context.Context, quizID, userID string, force bool) (domain.ResultSummary, error) {
	ctrl, err := s.Attempt(quizID, userID)
	if err != nil {
		return domain.ResultSummary{}, err
	}
	result, err := ctrl.Submit(ctx, force)
	if err != nil {
		return domain.ResultSummary{}, err
	}
	if ctrl.Status() != domain.StatusCompleted {
		// single-flight no-op; another submit is in progress
		return domain.ResultSummary{}, nil
	}
	payload, _ := ctrl.Payload()
	return Project(result, ctrl.Quiz(), payload), nil
}

// Abandon stops the active attempt without consuming it.
func (s *AttemptService) Abandon(ctx context.Context, quizID, userID string) error {
	ctrl, err := s.Attempt(quizID, userID)
	if err != nil {
		return err
	}
	if err := ctrl.Abandon(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.attempts, attemptKey(quizID, userID))
	s.mu.Unlock()
	s.registry.Release(ctx, quizID, userID)
	return nil
}

// finish consumes the attempt once a controller completes on any path,
// including an auto-submit from the timer goroutine.
func (s *AttemptService) finish(key, quizID, userID string) {
	s.mu.Lock()
	delete(s.attempts, key)
	s.mu.Unlock()
	if err := s.registry.Complete(context.Background(), quizID, userID); err != nil {
		s.log.Error().Err(err).Str("quiz_id", quizID).Str("user_id", userID).Msg("attempt completion bookkeeping failed")
	}
}

// Close tears down every live controller; for process shutdown.
func (s *AttemptService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, ctrl := range s.attempts {
		ctrl.Close()
		delete(s.attempts, key)
	}
}
