package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
)

// CatalogCache caches whole quizzes as JSON in Redis and falls back to the next catalog on
// a miss. Redis failures degrade to a direct load.
//
//	SET {prefix}quiz:{quizID} <quiz json> EX ttl
type CatalogCache struct {
	client *redis.Client
	next   app.Catalog
	ttl    time.Duration
	prefix string
	log    *zap.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCatalogCache(client *redis.Client, next app.Catalog, ttl time.Duration, prefix string, log *zap.Logger) *CatalogCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogCache{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: prefix,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if quiz, ok := c.lookup(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := c.next.GetQuizWithQuestions(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			raw, err := json.Marshal(quiz)
			if err == nil {
				err = c.client.Set(ctx, c.key(quizID), raw, ttl).Err()
			}
			if err != nil {
				c.log.Warn("cache quiz failed", zap.String("quiz_id", quizID), zap.Error(err))
			}
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops the given quizzes, or every cached quiz when none are named.
func (c *CatalogCache) Invalidate(ctx context.Context, quizIDs ...string) error {
	keys := make([]string, 0, len(quizIDs))
	for _, id := range quizIDs {
		keys = append(keys, c.key(id))
	}
	if len(keys) == 0 {
		iter := c.client.Scan(ctx, 0, c.key("*"), 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CatalogCache) lookup(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("read cached quiz failed", zap.String("quiz_id", quizID), zap.Error(err))
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		c.log.Warn("decode cached quiz failed", zap.String("quiz_id", quizID), zap.Error(err))
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (c *CatalogCache) key(quizID string) string {
	return c.prefix + "quiz:" + quizID
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
