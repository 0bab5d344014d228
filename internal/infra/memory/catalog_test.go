package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/fixtures"
)

func TestCatalogCacheCaches(t *testing.T) {
	next := &countingCatalog{StaticCatalog: NewStaticCatalog(fixtures.Demo().Quizzes...)}
	cache := NewCatalogCache(next, time.Minute)

	if _, err := cache.GetQuizWithQuestions(context.Background(), fixtures.DemoQuizID); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if next.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", next.calls.Load())
	}

	quiz, err := cache.GetQuizWithQuestions(context.Background(), fixtures.DemoQuizID)
	if err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if next.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", next.calls.Load())
	}
	if len(quiz.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(quiz.Questions))
	}
}

func TestCatalogCacheExpiresAndInvalidates(t *testing.T) {
	next := &countingCatalog{StaticCatalog: NewStaticCatalog(fixtures.Demo().Quizzes...)}
	cache := NewCatalogCache(next, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }
	ctx := context.Background()

	_, _ = cache.GetQuizWithQuestions(ctx, fixtures.DemoQuizID)
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetQuizWithQuestions(ctx, fixtures.DemoQuizID)
	if next.calls.Load() != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", next.calls.Load())
	}

	_ = cache.Invalidate(ctx, fixtures.DemoQuizID)
	_, _ = cache.GetQuizWithQuestions(ctx, fixtures.DemoQuizID)
	if next.calls.Load() != 3 {
		t.Fatalf("expected reload after invalidate, got %d calls", next.calls.Load())
	}
}

func TestCatalogCacheCoalescesMisses(t *testing.T) {
	gate := make(chan struct{})
	next := &countingCatalog{StaticCatalog: NewStaticCatalog(fixtures.Demo().Quizzes...), gate: gate}
	cache := NewCatalogCache(next, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetQuizWithQuestions(context.Background(), fixtures.DemoQuizID); err != nil {
				t.Errorf("get quiz: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	if next.calls.Load() != 1 {
		t.Fatalf("expected one coalesced load, got %d", next.calls.Load())
	}
}

func TestCatalogCacheDoesNotCacheMisses(t *testing.T) {
	next := &countingCatalog{StaticCatalog: NewStaticCatalog()}
	cache := NewCatalogCache(next, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := cache.GetQuizWithQuestions(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if next.calls.Load() != 2 {
		t.Fatalf("expected both misses to reach the loader, got %d", next.calls.Load())
	}
}

type countingCatalog struct {
	*StaticCatalog
	calls atomic.Int32
	gate  chan struct{}
}

func (c *countingCatalog) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.StaticCatalog.GetQuizWithQuestions(ctx, quizID)
}
