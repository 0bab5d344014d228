package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/metrics"
)

// Scheduler runs delayed quiz starts on in-process timers. Pending jobs are lost on restart.
type Scheduler struct {
	handler app.JobHandler
	timeout time.Duration
	log     *zap.Logger
	clock   func() time.Time

	mu     sync.Mutex
	jobs   map[string]*timerJob
	closed bool
}

type timerJob struct {
	job   app.StartJob
	timer *time.Timer
}

var _ app.Scheduler = (*Scheduler)(nil)

var errClosed = errors.New("scheduler closed")

func NewScheduler(handler app.JobHandler, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		handler: handler,
		timeout: time.Minute,
		log:     log,
		clock:   time.Now,
		jobs:    make(map[string]*timerJob),
	}
}

func (s *Scheduler) Schedule(_ context.Context, job app.StartJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if prev, ok := s.jobs[job.ID]; ok {
		prev.timer.Stop()
		metrics.ScheduledJobs.WithLabelValues("replaced").Inc()
	}
	entry := &timerJob{job: job}
	entry.timer = time.AfterFunc(job.DueAt.Sub(s.clock()), func() { s.fire(entry) })
	s.jobs[job.ID] = entry
	metrics.ScheduledJobs.WithLabelValues("scheduled").Inc()
	return nil
}

func (s *Scheduler) Cancel(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	entry.timer.Stop()
	delete(s.jobs, id)
	metrics.ScheduledJobs.WithLabelValues("cancelled").Inc()
	return true, nil
}

func (s *Scheduler) Pending(_ context.Context) ([]app.StartJob, error) {
	s.mu.Lock()
	out := make([]app.StartJob, 0, len(s.jobs))
	for _, entry := range s.jobs {
		out = append(out, entry.job)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

// Close stops every pending timer.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.jobs {
		entry.timer.Stop()
		delete(s.jobs, id)
	}
	s.closed = true
}

func (s *Scheduler) fire(entry *timerJob) {
	s.mu.Lock()
	// a replaced or cancelled job no longer owns its id
	if s.jobs[entry.job.ID] != entry {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, entry.job.ID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	entry.job.Attempts++
	if err := s.handler(ctx, entry.job); err != nil {
		metrics.ScheduledJobs.WithLabelValues("failed").Inc()
		s.log.Error("scheduled quiz start failed",
			zap.String("job_id", entry.job.ID),
			zap.String("contact", entry.job.Contact),
			zap.Error(err))
		return
	}
	metrics.ScheduledJobs.WithLabelValues("done").Inc()
}
