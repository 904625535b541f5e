package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/domain"
)

// ContentLoader fetches quiz content from a backing store (e.g., Postgres).
type ContentLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// ContentRepository caches quiz content in Redis as JSON documents and falls
// back to a loader on cache miss:
//
//	SET quiz:{quizID}:meta      {quiz JSON}
//	SET quiz:{quizID}:questions {questions JSON}
type ContentRepository struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewContentRepository(client *redis.Client, loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ContentRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	raw, err := r.client.Get(ctx, r.metaKey(quizID)).Result()
	if err == nil {
		var quiz domain.Quiz
		if err := json.Unmarshal([]byte(raw), &quiz); err == nil {
			return quiz, nil
		}
	}
	quiz, _, err := r.fill(ctx, quizID)
	return quiz, err
}

func (r *ContentRepository) GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	raw, err := r.client.Get(ctx, r.questionsKey(quizID)).Result()
	if err == nil {
		var questions []domain.Question
		if err := json.Unmarshal([]byte(raw), &questions); err == nil {
			return questions, nil
		}
	}
	_, questions, err := r.fill(ctx, quizID)
	return questions, err
}

// fill loads from the backing store and populates both keys, collapsed per
// quiz id so a start stampede hits the store once.
func (r *ContentRepository) fill(ctx context.Context, quizID string) (domain.Quiz, []domain.Question, error) {
	type content struct {
		quiz      domain.Quiz
		questions []domain.Question
	}
	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return content{}, err
		}
		questions, err := r.loader.LoadQuestions(ctx, quizID)
		if err != nil {
			return content{}, err
		}

		metaJSON, err := json.Marshal(quiz)
		if err != nil {
			return content{}, err
		}
		questionsJSON, err := json.Marshal(questions)
		if err != nil {
			return content{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		pipe.Set(ctx, r.metaKey(quizID), metaJSON, ttl)
		pipe.Set(ctx, r.questionsKey(quizID), questionsJSON, ttl)
		_, _ = pipe.Exec(ctx)

		return content{quiz: quiz, questions: questions}, nil
	})
	if err != nil {
		return domain.Quiz{}, nil, err
	}
	c := result.(content)
	return c.quiz, c.questions, nil
}

func (r *ContentRepository) metaKey(quizID string) string {
	return "quiz:" + quizID + ":meta"
}

func (r *ContentRepository) questionsKey(quizID string) string {
	return "quiz:" + quizID + ":questions"
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
