package app

import (
	"context"

	"quiz-attempt-service/internal/domain"
)

// GradingClient delivers a submission to the grading service. Implementations
// must not retry on their own; retry is the caller's decision. The payload's
// session id is stable across retries so the server can enforce idempotency.
type GradingClient interface {
	Submit(ctx context.Context, quizID string, payload domain.SubmissionPayload) (domain.GradedResult, error)
}

// Submitter freezes a submission payload exactly once per session and hands
// it to the grading client. A retry after a failed delivery resends the
// frozen payload verbatim; it is never rebuilt from live answers.
type Submitter struct {
	grader  GradingClient
	payload *domain.SubmissionPayload
}

func NewSubmitter(grader GradingClient) *Submitter {
	return &Submitter{grader: grader}
}

// BuildPayload assembles the payload on first call and returns the frozen
// copy on every call after that.
func (s *Submitter) BuildPayload(sessionID, quizID string, store *AnswerStore, timeSpentSeconds int, autoSubmitted bool) domain.SubmissionPayload {
	if s.payload == nil {
		s.payload = &domain.SubmissionPayload{
			SessionID:        sessionID,
			QuizID:           quizID,
			Answers:          store.All(),
			TimeSpentSeconds: timeSpentSeconds,
			AutoSubmitted:    autoSubmitted,
		}
	}
	return *s.payload
}

// Built reports whether a payload has been frozen.
func (s *Submitter) Built() bool {
	return s.payload != nil
}

// Send delivers the frozen payload.
func (s *Submitter) Send(ctx context.Context, payload domain.SubmissionPayload) (domain.GradedResult, error) {
	return s.grader.Submit(ctx, payload.QuizID, payload)
}
