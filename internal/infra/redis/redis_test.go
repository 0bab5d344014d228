package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/fixtures"
	"lesson-quiz-service/internal/infra/memory"
)

func TestCatalogCacheStoresQuizInRedis(t *testing.T) {
	mr, client := newMiniredis(t)

	next := &countingCatalog{Catalog: memory.NewStaticCatalog(fixtures.Demo().Quizzes...)}
	cache := NewCatalogCache(client, next, time.Minute, "test:", nil)
	ctx := context.Background()

	if _, err := cache.GetQuizWithQuestions(ctx, fixtures.DemoQuizID); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("expected loader called once, got %d", next.calls)
	}
	if !mr.Exists("test:quiz:" + fixtures.DemoQuizID) {
		t.Fatalf("expected redis key to be set")
	}

	quiz, err := cache.GetQuizWithQuestions(ctx, fixtures.DemoQuizID)
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", next.calls)
	}
	if len(quiz.Questions) != 5 || quiz.Questions[1].CorrectAnswer != 2 {
		t.Fatalf("cached quiz lost detail: %+v", quiz.Questions)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("test:quiz:" + fixtures.DemoQuizID) {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestCatalogCacheFallsBackWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	next := &countingCatalog{Catalog: memory.NewStaticCatalog(fixtures.Demo().Quizzes...)}
	cache := NewCatalogCache(client, next, time.Minute, "", nil)

	if _, err := cache.GetQuizWithQuestions(context.Background(), fixtures.DemoQuizID); err != nil {
		t.Fatalf("expected direct load, got %v", err)
	}
	if _, err := cache.GetQuizWithQuestions(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSchedulerRunsDueJobsOnce(t *testing.T) {
	_, client := newMiniredis(t)
	var ran []app.StartJob
	s := NewScheduler(client, "test:", func(_ context.Context, job app.StartJob) error {
		ran = append(ran, job)
		return nil
	}, nil)
	now := time.Now()
	s.clock = func() time.Time { return now }
	ctx := context.Background()

	due := app.StartJob{ID: app.StartJobID("+1", "q"), Contact: "+1", QuizID: "q", DueAt: now.Add(-time.Second)}
	later := app.StartJob{ID: app.StartJobID("+2", "q"), Contact: "+2", QuizID: "q", DueAt: now.Add(time.Hour)}
	for _, job := range []app.StartJob{due, later} {
		if err := s.Schedule(ctx, job); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}

	n, err := s.RunDue(ctx)
	if err != nil {
		t.Fatalf("run due: %v", err)
	}
	if n != 1 || len(ran) != 1 || ran[0].Contact != "+1" {
		t.Fatalf("expected only the due job to run, got n=%d ran=%+v", n, ran)
	}
	if n, _ := s.RunDue(ctx); n != 0 {
		t.Fatalf("job ran twice")
	}

	pending, err := s.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != later.ID {
		t.Fatalf("unexpected pending %+v", pending)
	}
}

func TestSchedulerReplacesAndCancels(t *testing.T) {
	_, client := newMiniredis(t)
	s := NewScheduler(client, "", func(context.Context, app.StartJob) error { return nil }, nil)
	ctx := context.Background()
	id := app.StartJobID("+1", "q")

	_ = s.Schedule(ctx, app.StartJob{ID: id, Contact: "+1", QuizID: "q", DueAt: time.Now().Add(time.Minute)})
	_ = s.Schedule(ctx, app.StartJob{ID: id, Contact: "+1", QuizID: "q", DueAt: time.Now().Add(time.Hour)})
	pending, _ := s.Pending(ctx)
	if len(pending) != 1 {
		t.Fatalf("expected re-dispatch to replace the job, got %d", len(pending))
	}

	ok, err := s.Cancel(ctx, id)
	if err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Cancel(ctx, id); ok {
		t.Fatalf("cancel of missing job reported true")
	}
}

func TestSchedulerRetriesWithBackoff(t *testing.T) {
	_, client := newMiniredis(t)
	calls := 0
	s := NewScheduler(client, "", func(context.Context, app.StartJob) error {
		calls++
		return errors.New("notifier down")
	}, nil)
	s.MaxAttempts = 2
	s.RetryBase = time.Second
	now := time.Now()
	s.clock = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Schedule(ctx, app.StartJob{ID: "job", Contact: "+1", QuizID: "q", DueAt: now})
	if _, err := s.RunDue(ctx); err != nil {
		t.Fatalf("run due: %v", err)
	}
	pending, _ := s.Pending(ctx)
	if len(pending) != 1 || pending[0].Attempts != 1 || !pending[0].DueAt.After(now) {
		t.Fatalf("expected requeued job, got %+v", pending)
	}

	now = now.Add(time.Minute)
	if _, err := s.RunDue(ctx); err != nil {
		t.Fatalf("run due: %v", err)
	}
	pending, _ = s.Pending(ctx)
	if calls != 2 || len(pending) != 0 {
		t.Fatalf("expected job dropped after max attempts, calls=%d pending=%d", calls, len(pending))
	}
}

func TestSchedulerRedeliversJobAfterExpiredLease(t *testing.T) {
	_, client := newMiniredis(t)
	var ran []app.StartJob
	s := NewScheduler(client, "", func(_ context.Context, job app.StartJob) error {
		ran = append(ran, job)
		return nil
	}, nil)
	now := time.Now()
	s.clock = func() time.Time { return now }
	ctx := context.Background()

	id := app.StartJobID("+1", "q")
	_ = s.Schedule(ctx, app.StartJob{ID: id, Contact: "+1", QuizID: "q", DueAt: now})

	// a worker that claims the job and never finishes
	if _, ok, err := s.claim(ctx, id); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if n, _ := s.RunDue(ctx); n != 0 || len(ran) != 0 {
		t.Fatalf("expected leased job to wait, n=%d", n)
	}

	now = now.Add(s.Lease + time.Second)
	n, err := s.RunDue(ctx)
	if err != nil {
		t.Fatalf("run due: %v", err)
	}
	if n != 1 || len(ran) != 1 || ran[0].ID != id {
		t.Fatalf("expected the job to run after the lease expired, n=%d ran=%+v", n, ran)
	}
	if left := client.ZCard(ctx, s.processingKey).Val() + client.HLen(ctx, s.dataKey).Val(); left != 0 {
		t.Fatalf("expected finished job to be gone, %d keys left", left)
	}
}

func TestSchedulerDropsJobsThatCannotSucceed(t *testing.T) {
	_, client := newMiniredis(t)
	calls := 0
	s := NewScheduler(client, "", func(context.Context, app.StartJob) error {
		calls++
		return fmt.Errorf("load quiz q: %w", domain.ErrQuizNotFound)
	}, nil)
	now := time.Now()
	s.clock = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Schedule(ctx, app.StartJob{ID: "job", Contact: "+1", QuizID: "q", DueAt: now})
	if _, err := s.RunDue(ctx); err != nil {
		t.Fatalf("run due: %v", err)
	}
	pending, _ := s.Pending(ctx)
	if calls != 1 || len(pending) != 0 || client.HLen(ctx, s.dataKey).Val() != 0 {
		t.Fatalf("expected job dropped without retry, calls=%d pending=%d", calls, len(pending))
	}
}

func TestSchedulerKeepsJobScheduledWhileRunning(t *testing.T) {
	_, client := newMiniredis(t)
	now := time.Now()
	var s *Scheduler
	s = NewScheduler(client, "", func(ctx context.Context, job app.StartJob) error {
		job.DueAt = now.Add(time.Hour)
		job.Attempts = 0
		return s.Schedule(ctx, job)
	}, nil)
	s.clock = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Schedule(ctx, app.StartJob{ID: "job", Contact: "+1", QuizID: "q", DueAt: now})
	if n, _ := s.RunDue(ctx); n != 1 {
		t.Fatalf("expected the job to run, got %d", n)
	}
	pending, _ := s.Pending(ctx)
	if len(pending) != 1 || !pending[0].DueAt.After(now) {
		t.Fatalf("expected the rescheduled job to survive the ack, got %+v", pending)
	}
}

type countingCatalog struct {
	app.Catalog
	calls int
}

func (c *countingCatalog) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error) {
	c.calls++
	return c.Catalog.GetQuizWithQuestions(ctx, quizID)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
