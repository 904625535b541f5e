package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/domain"
)

// ContentLoader fetches quiz content from a backing store (e.g., Postgres).
type ContentLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// ContentRepository caches quiz content with TTL to avoid repeated store
// hits. An attempt reads its quiz once at start and never mid-attempt, so a
// stale cache can never change a running session.
type ContentRepository struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedContent
}

type cachedContent struct {
	quiz      domain.Quiz
	questions []domain.Question
	expiresAt time.Time
}

func NewContentRepository(loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedContent),
	}
}

func (r *ContentRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	entry, err := r.load(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return entry.quiz, nil
}

func (r *ContentRepository) GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	entry, err := r.load(ctx, quizID)
	if err != nil {
		return nil, err
	}
	questions := make([]domain.Question, len(entry.questions))
	copy(questions, entry.questions)
	return questions, nil
}

func (r *ContentRepository) load(ctx context.Context, quizID string) (cachedContent, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry, nil
		}
		r.mu.RUnlock()

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return cachedContent{}, err
		}
		questions, err := r.loader.LoadQuestions(ctx, quizID)
		if err != nil {
			return cachedContent{}, err
		}

		entry := cachedContent{
			quiz:      quiz,
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Lock()
		r.cache[quizID] = entry
		r.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return cachedContent{}, err
	}
	return result.(cachedContent), nil
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticContentLoader serves content from in-memory maps (tests/demos).
type StaticContentLoader struct {
	quizzes   map[string]domain.Quiz
	questions map[string][]domain.Question
}

func NewStaticContentLoader(quizzes map[string]domain.Quiz, questions map[string][]domain.Question) *StaticContentLoader {
	return &StaticContentLoader{quizzes: quizzes, questions: questions}
}

func (l *StaticContentLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (l *StaticContentLoader) LoadQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	if questions, ok := l.questions[quizID]; ok {
		return questions, nil
	}
	return nil, domain.ErrQuizNotFound
}
