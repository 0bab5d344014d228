package memory

import (
	"context"
	"testing"
	"time"

	"lesson-quiz-service/internal/app"
)

func TestSchedulerRunsDueJob(t *testing.T) {
	ran := make(chan app.StartJob, 1)
	s := NewScheduler(func(_ context.Context, job app.StartJob) error {
		ran <- job
		return nil
	}, nil)
	defer s.Close()

	job := app.StartJob{ID: app.StartJobID("+1", "quiz"), Contact: "+1", QuizID: "quiz", DueAt: time.Now().Add(10 * time.Millisecond)}
	if err := s.Schedule(context.Background(), job); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	select {
	case got := <-ran:
		if got.Contact != "+1" || got.Attempts != 1 {
			t.Fatalf("unexpected job %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("job did not run")
	}
	pending, _ := s.Pending(context.Background())
	if len(pending) != 0 {
		t.Fatalf("expected no pending jobs, got %d", len(pending))
	}
}

func TestSchedulerReplaceAndCancel(t *testing.T) {
	ran := make(chan app.StartJob, 2)
	s := NewScheduler(func(_ context.Context, job app.StartJob) error {
		ran <- job
		return nil
	}, nil)
	defer s.Close()
	ctx := context.Background()
	id := app.StartJobID("+1", "quiz")

	_ = s.Schedule(ctx, app.StartJob{ID: id, Contact: "+1", QuizID: "quiz", DueAt: time.Now().Add(time.Hour)})
	_ = s.Schedule(ctx, app.StartJob{ID: id, Contact: "+1", QuizID: "quiz", DueAt: time.Now().Add(2 * time.Hour)})

	pending, _ := s.Pending(ctx)
	if len(pending) != 1 {
		t.Fatalf("expected replaced job to leave one pending, got %d", len(pending))
	}

	ok, err := s.Cancel(ctx, id)
	if err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	ok, _ = s.Cancel(ctx, id)
	if ok {
		t.Fatalf("second cancel should report no job")
	}

	select {
	case job := <-ran:
		t.Fatalf("cancelled job ran: %+v", job)
	case <-time.After(20 * time.Millisecond):
	}
}
