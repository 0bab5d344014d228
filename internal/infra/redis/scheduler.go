package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/metrics"
)

// Scheduler keeps delayed quiz starts in Redis so they survive restarts.
//
//	ZADD {prefix}jobs:due        <due unix ms>         {jobID}
//	ZADD {prefix}jobs:processing <lease expiry unix ms> {jobID}
//	HSET {prefix}jobs:data       {jobID} <job json>
//
// Run polls for due jobs. Claiming moves a job from the due set to the processing set, so
// several workers never run the same job at once; the payload stays until the job is
// acknowledged. A worker that dies mid-job leaves its lease behind, and once the lease
// expires the job is due again. Failed jobs are re-queued with exponential backoff until
// MaxAttempts; jobs that cannot succeed are dropped at once.
type Scheduler struct {
	client  *redis.Client
	handler app.JobHandler
	log     *zap.Logger
	clock   func() time.Time

	dueKey        string
	processingKey string
	dataKey       string

	PollInterval time.Duration
	BatchSize    int64
	MaxAttempts  int
	RetryBase    time.Duration
	JobTimeout   time.Duration
	// Lease is how long a claimed job may run before another worker takes it over.
	Lease time.Duration
}

var _ app.Scheduler = (*Scheduler)(nil)

// claimScript leases a due job and returns its payload.
// KEYS: due, processing, data. ARGV: job id, lease expiry.
var claimScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return false
end
local payload = redis.call('HGET', KEYS[3], ARGV[1])
if not payload then
  return false
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return payload
`)

// ackScript drops a finished job unless it was scheduled again while running.
// KEYS: processing, due, data. ARGV: job id.
var ackScript = redis.NewScript(`
redis.call('ZREM', KEYS[1], ARGV[1])
if not redis.call('ZSCORE', KEYS[2], ARGV[1]) then
  redis.call('HDEL', KEYS[3], ARGV[1])
end
return 1
`)

// reclaimScript makes jobs with expired leases due again.
// KEYS: processing, due. ARGV: now.
var reclaimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[1], id)
end
return #ids
`)

func NewScheduler(client *redis.Client, prefix string, handler app.JobHandler, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		client:       client,
		handler:      handler,
		log:          log,
		clock:        time.Now,
		dueKey:        prefix + "jobs:due",
		processingKey: prefix + "jobs:processing",
		dataKey:       prefix + "jobs:data",
		PollInterval:  time.Second,
		BatchSize:     32,
		MaxAttempts:   3,
		RetryBase:     5 * time.Second,
		JobTimeout:    time.Minute,
		Lease:         2 * time.Minute,
	}
}

func (s *Scheduler) Schedule(ctx context.Context, job app.StartJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := s.enqueue(ctx, job, raw, false); err != nil {
		return fmt.Errorf("schedule job %s: %w", job.ID, err)
	}
	metrics.ScheduledJobs.WithLabelValues("scheduled").Inc()
	return nil
}

// enqueue stores the payload and due time; release also ends the job's current lease.
func (s *Scheduler) enqueue(ctx context.Context, job app.StartJob, raw []byte, release bool) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.dataKey, job.ID, raw)
		pipe.ZAdd(ctx, s.dueKey, redis.Z{Score: float64(job.DueAt.UnixMilli()), Member: job.ID})
		if release {
			pipe.ZRem(ctx, s.processingKey, job.ID)
		}
		return nil
	})
	return err
}

func (s *Scheduler) Cancel(ctx context.Context, id string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.dueKey, id)
		pipe.ZRem(ctx, s.processingKey, id)
		pipe.HDel(ctx, s.dataKey, id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", id, err)
	}
	if removed.Val() == 0 {
		return false, nil
	}
	metrics.ScheduledJobs.WithLabelValues("cancelled").Inc()
	return true, nil
}

func (s *Scheduler) Pending(ctx context.Context) ([]app.StartJob, error) {
	ids, err := s.client.ZRange(ctx, s.dueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if len(ids) == 0 {
		return []app.StartJob{}, nil
	}
	payloads, err := s.client.HMGet(ctx, s.dataKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	out := make([]app.StartJob, 0, len(payloads))
	for _, p := range payloads {
		raw, ok := p.(string)
		if !ok {
			continue
		}
		var job app.StartJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		out = append(out, job)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

// Run polls until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()
	s.log.Info("redis scheduler started", zap.Duration("poll", s.PollInterval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.RunDue(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("poll due jobs failed", zap.Error(err))
			}
		}
	}
}

// RunDue claims and runs every job due now and reports how many ran. Jobs whose lease
// expired are due again first.
func (s *Scheduler) RunDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(s.clock().UnixMilli(), 10)
	reclaimed, err := reclaimScript.Run(ctx, s.client, []string{s.processingKey, s.dueKey}, now).Int()
	if err != nil {
		return 0, fmt.Errorf("reclaim expired leases: %w", err)
	}
	if reclaimed > 0 {
		metrics.ScheduledJobs.WithLabelValues("reclaimed").Add(float64(reclaimed))
		s.log.Warn("re-queued jobs with expired leases", zap.Int("count", reclaimed))
	}

	ids, err := s.client.ZRangeByScore(ctx, s.dueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: s.BatchSize,
	}).Result()
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, id := range ids {
		job, ok, err := s.claim(ctx, id)
		if err != nil {
			return ran, err
		}
		if !ok {
			continue
		}
		s.execute(ctx, job)
		ran++
	}
	return ran, nil
}

// claim leases job id; ok is false when another worker got it or it was cancelled.
func (s *Scheduler) claim(ctx context.Context, id string) (app.StartJob, bool, error) {
	leaseUntil := s.clock().Add(s.Lease).UnixMilli()
	raw, err := claimScript.Run(ctx, s.client, []string{s.dueKey, s.processingKey, s.dataKey}, id, leaseUntil).Text()
	if errors.Is(err, redis.Nil) {
		return app.StartJob{}, false, nil
	}
	if err != nil {
		return app.StartJob{}, false, fmt.Errorf("claim job %s: %w", id, err)
	}
	var job app.StartJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		s.log.Error("drop undecodable job", zap.String("job_id", id), zap.Error(err))
		s.ack(ctx, id)
		return app.StartJob{}, false, nil
	}
	return job, true, nil
}

func (s *Scheduler) ack(ctx context.Context, id string) {
	if err := ackScript.Run(ctx, s.client, []string{s.processingKey, s.dueKey, s.dataKey}, id).Err(); err != nil {
		// the lease will expire and the job runs again
		s.log.Warn("ack job failed", zap.String("job_id", id), zap.Error(err))
	}
}

func (s *Scheduler) execute(ctx context.Context, job app.StartJob) {
	job.Attempts++
	jobCtx, cancel := context.WithTimeout(ctx, s.JobTimeout)
	err := s.handler(jobCtx, job)
	cancel()
	if err == nil {
		s.ack(ctx, job.ID)
		metrics.ScheduledJobs.WithLabelValues("done").Inc()
		return
	}

	if !app.RetryableJobError(err) || job.Attempts >= s.MaxAttempts {
		s.ack(ctx, job.ID)
		metrics.ScheduledJobs.WithLabelValues("failed").Inc()
		s.log.Error("scheduled quiz start failed, giving up",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempts),
			zap.Error(err))
		return
	}
	job.DueAt = s.clock().Add(s.retryDelay(job.Attempts))
	raw, merr := json.Marshal(job)
	if merr != nil {
		s.log.Error("encode job failed", zap.String("job_id", job.ID), zap.Error(merr))
		return
	}
	if serr := s.enqueue(ctx, job, raw, true); serr != nil {
		s.log.Error("requeue job failed", zap.String("job_id", job.ID), zap.Error(serr))
		return
	}
	metrics.ScheduledJobs.WithLabelValues("retried").Inc()
	s.log.Warn("scheduled quiz start failed, retrying",
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempts),
		zap.Time("next", job.DueAt),
		zap.Error(err))
}

// retryDelay is the exponential backoff interval after the given number of attempts.
func (s *Scheduler) retryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.RetryBase
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	d := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}
