package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/domain"
)

// AttemptRegistry enforces the single-active-attempt invariant across
// instances. The active slot is a SETNX key holding the session id; attempt
// consumption is a counter:
//
//	SET  attempt:active:{quizID}:{userID} {sessionID} NX EX ttl
//	INCR attempt:count:{quizID}:{userID}
//
// The slot TTL self-heals leaked sessions whose process died mid-attempt; it
// should comfortably exceed the longest quiz time limit.
type AttemptRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptRegistry(client *redis.Client, ttl time.Duration) *AttemptRegistry {
	return &AttemptRegistry{client: client, ttl: ttl}
}

func (r *AttemptRegistry) Acquire(ctx context.Context, quizID, userID, sessionID string) error {
	ok, err := r.client.SetNX(ctx, r.activeKey(quizID, userID), sessionID, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire attempt slot: %w", err)
	}
	if !ok {
		return fmt.Errorf("quiz %s user %s: %w", quizID, userID, domain.ErrAttemptActive)
	}
	return nil
}

func (r *AttemptRegistry) Release(ctx context.Context, quizID, userID string) {
	_ = r.client.Del(ctx, r.activeKey(quizID, userID)).Err()
}

func (r *AttemptRegistry) Complete(ctx context.Context, quizID, userID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.activeKey(quizID, userID))
	pipe.Incr(ctx, r.countKey(quizID, userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	return nil
}

func (r *AttemptRegistry) AttemptsUsed(ctx context.Context, quizID, userID string) (int, error) {
	n, err := r.client.Get(ctx, r.countKey(quizID, userID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("attempt count: %w", err)
	}
	return n, nil
}

func (r *AttemptRegistry) activeKey(quizID, userID string) string {
	return "attempt:active:" + quizID + ":" + userID
}

func (r *AttemptRegistry) countKey(quizID, userID string) string {
	return "attempt:count:" + quizID + ":" + userID
}
