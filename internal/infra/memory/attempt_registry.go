package memory

import (
	"context"
	"fmt"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// AttemptRegistry is the in-process implementation of app.AttemptRegistry:
// one active slot and a consumed-attempt counter per (quiz, user).
type AttemptRegistry struct {
	mu     sync.Mutex
	active map[string]string // (quiz,user) key → session id
	used   map[string]int
}

func NewAttemptRegistry() *AttemptRegistry {
	return &AttemptRegistry{
		active: make(map[string]string),
		used:   make(map[string]int),
	}
}

func key(quizID, userID string) string {
	return quizID + "/" + userID
}

func (r *AttemptRegistry) Acquire(_ context.Context, quizID, userID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(quizID, userID)
	if held, ok := r.active[k]; ok {
		return fmt.Errorf("session %s holds quiz %s for user %s: %w", held, quizID, userID, domain.ErrAttemptActive)
	}
	r.active[k] = sessionID
	return nil
}

func (r *AttemptRegistry) Release(_ context.Context, quizID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, key(quizID, userID))
}

func (r *AttemptRegistry) Complete(_ context.Context, quizID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(quizID, userID)
	delete(r.active, k)
	r.used[k]++
	return nil
}

func (r *AttemptRegistry) AttemptsUsed(_ context.Context, quizID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used[key(quizID, userID)], nil
}
