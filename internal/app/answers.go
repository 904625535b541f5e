package app

import (
	"fmt"

	"quiz-attempt-service/internal/domain"
)

// AnswerStore keeps the current answer per question plus the flagged set.
// It is not safe for concurrent use on its own; the owning controller
// serializes access.
type AnswerStore struct {
	questions map[string]domain.Question
	answers   map[string]domain.AnswerValue
	flags     map[string]struct{}
}

// NewAnswerStore builds a store scoped to the given questions. Writes for any
// other question id are rejected.
func NewAnswerStore(questions []domain.Question) *AnswerStore {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &AnswerStore{
		questions: byID,
		answers:   make(map[string]domain.AnswerValue),
		flags:     make(map[string]struct{}),
	}
}

// Set records a value for a question, last write wins.
func (s *AnswerStore) Set(questionID string, value domain.AnswerValue) error {
	q, ok := s.questions[questionID]
	if !ok {
		return fmt.Errorf("set answer %q: %w", questionID, domain.ErrUnknownQuestion)
	}
	if !value.ShapeFor(q) {
		return fmt.Errorf("set answer %q (%s): %w", questionID, q.Type, domain.ErrInvalidAnswer)
	}
	s.answers[questionID] = value
	return nil
}

// Get returns the current value for a question, if any.
func (s *AnswerStore) Get(questionID string) (domain.AnswerValue, bool) {
	v, ok := s.answers[questionID]
	return v, ok
}

// All returns a copy of every saved value, including empty-text drafts.
func (s *AnswerStore) All() map[string]domain.AnswerValue {
	out := make(map[string]domain.AnswerValue, len(s.answers))
	for id, v := range s.answers {
		out[id] = v
	}
	return out
}

// AnsweredCount counts questions with a real answer; empty text is a draft.
func (s *AnswerStore) AnsweredCount() int {
	n := 0
	for _, v := range s.answers {
		if v.Answered() {
			n++
		}
	}
	return n
}

// UnansweredCount is the complement of AnsweredCount over the quiz.
func (s *AnswerStore) UnansweredCount() int {
	return len(s.questions) - s.AnsweredCount()
}

// ToggleFlag flips the review flag for a question. Flags are independent of
// whether the question has an answer.
func (s *AnswerStore) ToggleFlag(questionID string) error {
	if _, ok := s.questions[questionID]; !ok {
		return fmt.Errorf("toggle flag %q: %w", questionID, domain.ErrUnknownQuestion)
	}
	if _, ok := s.flags[questionID]; ok {
		delete(s.flags, questionID)
	} else {
		s.flags[questionID] = struct{}{}
	}
	return nil
}

// IsFlagged reports whether a question is flagged for review.
func (s *AnswerStore) IsFlagged(questionID string) bool {
	_, ok := s.flags[questionID]
	return ok
}

// FlaggedCount returns the number of flagged questions.
func (s *AnswerStore) FlaggedCount() int {
	return len(s.flags)
}
