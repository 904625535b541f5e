package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/domain"
)

// Event is a snapshot of attempt state pushed to subscribers on every
// mutation and timer tick.
type Event struct {
	SessionID        string               `json:"sessionId"`
	Status           domain.AttemptStatus `json:"status"`
	RemainingSeconds int                  `json:"remainingSeconds"` // -1 when untimed
	CurrentIndex     int                  `json:"currentIndex"`
	TotalQuestions   int                  `json:"totalQuestions"`
	AnsweredCount    int                  `json:"answeredCount"`
	FlaggedCount     int                  `json:"flaggedCount"`
}

// Controller runs one student through one quiz attempt: the state machine
// NOT_STARTED → IN_PROGRESS → {EXPIRED | SUBMITTING} → {COMPLETED | ERROR},
// with ABANDONED as the cooperative bail-out from IN_PROGRESS.
//
// All methods are safe for concurrent use; the timer tick and an in-flight
// submit are the only async callers in practice. Once the attempt leaves
// IN_PROGRESS, mutations and further ticks are no-ops.
type Controller struct {
	sessionID string
	quiz      domain.Quiz
	questions []domain.Question
	clock     Clock
	log       zerolog.Logger

	answers   *AnswerStore
	nav       *Navigator
	timer     *Timer
	submitter *Submitter

	// onCompleted fires once, outside the lock, when the attempt reaches
	// COMPLETED on any path (manual or auto submit, including after retry).
	onCompleted func()

	tick time.Duration

	mu        sync.Mutex
	status    domain.AttemptStatus
	startedAt time.Time

	result      *domain.GradedResult
	subscribers map[chan Event]struct{}
}

// ControllerOption tweaks construction; used by tests and the service layer.
type ControllerOption func(*Controller)

// WithClock injects a deterministic clock.
func WithClock(clock Clock) ControllerOption {
	return func(c *Controller) { c.clock = clock }
}

// WithTickInterval overrides the countdown tick cadence.
func WithTickInterval(d time.Duration) ControllerOption {
	return func(c *Controller) { c.tick = d }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

// WithCompletionHook registers the completion callback.
func WithCompletionHook(fn func()) ControllerOption {
	return func(c *Controller) { c.onCompleted = fn }
}

// NewController builds an idle controller for one attempt.
func NewController(sessionID string, quiz domain.Quiz, questions []domain.Question, grader GradingClient, opts ...ControllerOption) *Controller {
	c := &Controller{
		sessionID:   sessionID,
		quiz:        quiz,
		questions:   questions,
		clock:       time.Now,
		log:         zerolog.Nop(),
		status:      domain.StatusNotStarted,
		submitter:   NewSubmitter(grader),
		subscribers: make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timer = NewTimer(c.clock, c.tick)
	c.answers = NewAnswerStore(questions)
	c.nav = NewNavigator(len(questions))
	return c
}

// SessionID returns the attempt's stable id.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Quiz returns the immutable quiz metadata loaded at start.
func (c *Controller) Quiz() domain.Quiz {
	return c.quiz
}

// Questions returns the question set loaded at start.
func (c *Controller) Questions() []domain.Question {
	return c.questions
}

// Start moves the attempt to IN_PROGRESS and arms the countdown when the
// quiz has a time limit.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.StatusNotStarted {
		return fmt.Errorf("start attempt %s in %s: %w", c.sessionID, c.status, domain.ErrNotInProgress)
	}
	if len(c.questions) == 0 {
		return fmt.Errorf("start attempt %s: %w", c.sessionID, domain.ErrNoQuestions)
	}

	c.startedAt = c.clock()
	c.status = domain.StatusInProgress
	if c.quiz.TimeLimitSeconds != nil {
		deadline := c.startedAt.Add(time.Duration(*c.quiz.TimeLimitSeconds) * time.Second)
		c.timer.Start(deadline, func() { c.Tick() })
	}
	c.log.Info().Str("session_id", c.sessionID).Str("quiz_id", c.quiz.ID).Msg("attempt started")
	c.broadcastLocked()
	return nil
}

// Tick re-derives remaining time from the deadline and auto-submits on
// expiry. It is a no-op outside IN_PROGRESS, so rapid or missed-then-bursty
// ticks are harmless.
func (c *Controller) Tick() {
	c.mu.Lock()
	if c.status != domain.StatusInProgress {
		c.mu.Unlock()
		return
	}
	left, timed := c.timer.Remaining()
	if !timed || left > 0 {
		c.broadcastLocked()
		c.mu.Unlock()
		return
	}

	c.status = domain.StatusExpired
	c.log.Info().Str("session_id", c.sessionID).Msg("time limit reached, auto-submitting")
	c.broadcastLocked()
	// submitLocked releases the lock around the network call.
	_, err := c.submitLocked(context.Background(), true)
	if err != nil {
		c.log.Error().Err(err).Str("session_id", c.sessionID).Msg("auto-submit failed")
	}
}

// SetAnswer records a value for a question; last write wins. Rejected outside
// IN_PROGRESS or when the value's shape does not match the question type.
func (c *Controller) SetAnswer(questionID string, value domain.AnswerValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.StatusInProgress {
		return fmt.Errorf("set answer in %s: %w", c.status, domain.ErrNotInProgress)
	}
	if err := c.answers.Set(questionID, value); err != nil {
		return err
	}
	c.broadcastLocked()
	return nil
}

// ToggleFlag flips a question's review flag; allowed while IN_PROGRESS only.
func (c *Controller) ToggleFlag(questionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.StatusInProgress {
		return fmt.Errorf("toggle flag in %s: %w", c.status, domain.ErrNotInProgress)
	}
	if err := c.answers.ToggleFlag(questionID); err != nil {
		return err
	}
	c.broadcastLocked()
	return nil
}

// Answer returns the saved value for a question, if any.
func (c *Controller) Answer(questionID string) (domain.AnswerValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Get(questionID)
}

// IsFlagged reports whether a question carries the review flag.
func (c *Controller) IsFlagged(questionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.IsFlagged(questionID)
}

// GoTo moves to the given question; out-of-range indexes are no-ops.
func (c *Controller) GoTo(index int) {
	c.navigate(func() { c.nav.GoTo(index) })
}

// Next advances one question when possible.
func (c *Controller) Next() {
	c.navigate(func() { c.nav.Next() })
}

// Previous steps back one question when possible.
func (c *Controller) Previous() {
	c.navigate(func() { c.nav.Previous() })
}

func (c *Controller) navigate(move func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.StatusInProgress {
		return
	}
	before := c.nav.Current()
	move()
	if c.nav.Current() != before {
		c.broadcastLocked()
	}
}

// CurrentIndex returns the active question index.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nav.Current()
}

// UnansweredCount lets the caller decide whether to confirm before an
// incomplete submit; the controller never prompts on its own.
func (c *Controller) UnansweredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.UnansweredCount()
}

// Remaining reports the time left; ok is false for untimed quizzes.
func (c *Controller) Remaining() (time.Duration, bool) {
	return c.timer.Remaining()
}

// Status returns the current state.
func (c *Controller) Status() domain.AttemptStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Payload returns the frozen submission payload once one has been built.
func (c *Controller) Payload() (domain.SubmissionPayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.submitter.Built() {
		return domain.SubmissionPayload{}, false
	}
	return c.submitter.BuildPayload(c.sessionID, c.quiz.ID, c.answers, 0, false), true
}

// Result returns the graded result once COMPLETED.
func (c *Controller) Result() (domain.GradedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return domain.GradedResult{}, false
	}
	return *c.result, true
}

// Submit delivers the attempt to the grading service.
//
// Guards, in order: a completed attempt returns its cached result with no
// second network call; an in-flight submit makes later calls no-ops; an
// unforced submit with unanswered questions is rejected so the caller can
// confirm first. After a delivery failure (ERROR) Submit may be called again
// and resends the frozen payload.
func (c *Controller) Submit(ctx context.Context, force bool) (domain.GradedResult, error) {
	c.mu.Lock()
	switch c.status {
	case domain.StatusCompleted:
		result := *c.result
		c.mu.Unlock()
		return result, nil
	case domain.StatusSubmitting:
		c.mu.Unlock()
		return domain.GradedResult{}, nil
	case domain.StatusInProgress:
		if !force && c.answers.UnansweredCount() > 0 {
			n := c.answers.UnansweredCount()
			c.mu.Unlock()
			return domain.GradedResult{}, fmt.Errorf("%d questions: %w", n, domain.ErrUnansweredQuestions)
		}
	case domain.StatusExpired, domain.StatusError:
		// expiry hand-off or caller retry
	default:
		c.mu.Unlock()
		return domain.GradedResult{}, fmt.Errorf("submit in %s: %w", c.status, domain.ErrNotInProgress)
	}
	return c.submitLocked(ctx, false)
}

// submitLocked is entered with the lock held and returns with it released.
// The grading call runs unlocked; SUBMITTING status keeps every other path
// out in the meantime.
func (c *Controller) submitLocked(ctx context.Context, auto bool) (domain.GradedResult, error) {
	payload := c.submitter.BuildPayload(c.sessionID, c.quiz.ID, c.answers, c.timeSpentLocked(), auto)
	c.status = domain.StatusSubmitting
	c.timer.Stop()
	c.broadcastLocked()
	c.mu.Unlock()

	result, err := c.submitter.Send(ctx, payload)

	c.mu.Lock()
	if err != nil {
		c.status = domain.StatusError
		c.log.Error().Err(err).Str("session_id", c.sessionID).Msg("grading hand-off failed")
		c.broadcastLocked()
		c.mu.Unlock()
		return domain.GradedResult{}, fmt.Errorf("submit attempt %s: %w", c.sessionID, err)
	}
	c.status = domain.StatusCompleted
	c.result = &result
	c.log.Info().
		Str("session_id", c.sessionID).
		Float64("percentage", result.Percentage).
		Bool("auto", payload.AutoSubmitted).
		Msg("attempt graded")
	c.broadcastLocked()
	done := c.onCompleted
	c.mu.Unlock()

	if done != nil {
		done()
	}
	return result, nil
}

// timeSpentLocked derives elapsed seconds: limit minus remaining when timed,
// wall clock otherwise.
func (c *Controller) timeSpentLocked() int {
	if c.quiz.TimeLimitSeconds != nil {
		if left, ok := c.timer.Remaining(); ok {
			return *c.quiz.TimeLimitSeconds - int(left.Seconds())
		}
	}
	return int(c.clock().Sub(c.startedAt).Seconds())
}

// Abandon tears the attempt down without producing a payload. Valid only
// while IN_PROGRESS; an in-flight submit wins the race.
func (c *Controller) Abandon() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.StatusInProgress {
		return fmt.Errorf("abandon in %s: %w", c.status, domain.ErrNotInProgress)
	}
	c.status = domain.StatusAbandoned
	c.timer.Stop()
	c.log.Info().Str("session_id", c.sessionID).Msg("attempt abandoned")
	c.broadcastLocked()
	return nil
}

// Close releases the timer regardless of state; for owner teardown paths.
func (c *Controller) Close() {
	c.timer.Stop()
}

// Subscribe returns a channel of state events. The caller must invoke the
// returned cancel function to avoid leaks.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	initial := c.snapshotLocked()
	c.mu.Unlock()

	ch <- initial

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the current state as an event.
func (c *Controller) Snapshot() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) broadcastLocked() {
	ev := c.snapshotLocked()
	for ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the oldest update so a slow subscriber cannot block the session.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (c *Controller) snapshotLocked() Event {
	remaining := -1
	if left, ok := c.timer.Remaining(); ok {
		remaining = int(left.Seconds())
	}
	return Event{
		SessionID:        c.sessionID,
		Status:           c.status,
		RemainingSeconds: remaining,
		CurrentIndex:     c.nav.Current(),
		TotalQuestions:   c.nav.Total(),
		AnsweredCount:    c.answers.AnsweredCount(),
		FlaggedCount:     c.answers.FlaggedCount(),
	}
}
