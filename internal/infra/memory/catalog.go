package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
)

// CatalogCache is a read-through TTL cache in front of a catalog. Concurrent misses for the
// same quiz share one load.
type CatalogCache struct {
	next  app.Catalog
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewCatalogCache(next app.Catalog, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		next:  next,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedQuiz),
	}
}

func (c *CatalogCache) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := c.lookup(quizID); ok {
			return quiz, nil
		}
		quiz, err := c.next.GetQuizWithQuestions(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		ttl := c.ttlWithJitter()
		if ttl > 0 {
			c.mu.Lock()
			c.cache[quizID] = cachedQuiz{quiz: quiz, expiresAt: c.clock().Add(ttl)}
			c.mu.Unlock()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops the given quizzes, or everything when none are named.
func (c *CatalogCache) Invalidate(_ context.Context, quizIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(quizIDs) == 0 {
		c.cache = make(map[string]cachedQuiz)
		return nil
	}
	for _, id := range quizIDs {
		delete(c.cache, id)
	}
	return nil
}

func (c *CatalogCache) lookup(quizID string) (domain.Quiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[quizID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalog serves quizzes from a map (tests and demos).
type StaticCatalog struct {
	quizzes map[string]domain.Quiz
}

func NewStaticCatalog(quizzes ...domain.Quiz) *StaticCatalog {
	m := make(map[string]domain.Quiz, len(quizzes))
	for _, q := range quizzes {
		m[q.ID] = q
	}
	return &StaticCatalog{quizzes: m}
}

func (s *StaticCatalog) GetQuizWithQuestions(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := s.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
