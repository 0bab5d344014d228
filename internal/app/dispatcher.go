package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/metrics"
)

// DefaultQuizDelay is how long after the video message the quiz starts.
const DefaultQuizDelay = 30 * time.Second

// Dispatcher sends a lesson video and schedules the quiz that follows it.
type Dispatcher struct {
	contents  ContentSource
	catalog   Catalog
	videos    VideoPublisher
	notifier  Notifier
	scheduler Scheduler
	delay     time.Duration
	feed      *Feed
	log       *zap.Logger
	now       func() time.Time
}

// DispatcherConfig collects the dispatcher collaborators.
type DispatcherConfig struct {
	Contents  ContentSource
	Catalog   Catalog
	Videos    VideoPublisher
	Notifier  Notifier
	Scheduler Scheduler
	Delay     time.Duration
	Feed      *Feed
	Logger    *zap.Logger
	Now       func() time.Time
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		contents:  cfg.Contents,
		catalog:   cfg.Catalog,
		videos:    cfg.Videos,
		notifier:  cfg.Notifier,
		scheduler: cfg.Scheduler,
		delay:     cfg.Delay,
		feed:      cfg.Feed,
		log:       cfg.Logger,
		now:       cfg.Now,
	}
	if d.delay <= 0 {
		d.delay = DefaultQuizDelay
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// DispatchResult describes a sent lesson.
type DispatchResult struct {
	ContentID string              `json:"contentId"`
	QuizID    string              `json:"quizId"`
	VideoURL  string              `json:"videoUrl"`
	Backend   domain.VideoBackend `json:"backend"`
	JobID     string              `json:"jobId,omitempty"`
	StartAt   time.Time           `json:"startAt,omitempty"`
}

// Dispatch sends the lesson video for contentID to contact and schedules the quiz start.
// Content, video url and a non-empty quiz must all resolve before anything is sent.
// A scheduling failure is logged and does not fail the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, contact, contentID string) (res DispatchResult, err error) {
	ctx, span := tracer.Start(ctx, "Dispatcher.Dispatch")
	defer endSpan(span, &err)

	content, err := d.contents.GetContent(ctx, contentID)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("dispatch %s: %w", contentID, err)
	}
	link, err := d.videos.ResolveVideoURL(ctx, contentID)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("dispatch %s: %w", contentID, err)
	}
	if content.QuizID == "" {
		return DispatchResult{}, fmt.Errorf("dispatch %s: %w", contentID, domain.ErrQuizNotFound)
	}
	quiz, err := d.catalog.GetQuizWithQuestions(ctx, content.QuizID)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("dispatch %s: %w", contentID, err)
	}
	if len(quiz.Questions) == 0 {
		return DispatchResult{}, fmt.Errorf("dispatch %s: %w", contentID, domain.ErrEmptyQuiz)
	}

	msg := domain.OutboundMessage{To: contact, Body: formatVideo(content, link, quiz.RewardCoins)}
	if link.Backend == domain.BackendDirect {
		msg.MediaURL = link.URL
	}
	if _, err := d.notifier.Send(ctx, msg); err != nil {
		return DispatchResult{}, fmt.Errorf("%w: video message: %v", domain.ErrDelivery, err)
	}

	res = DispatchResult{
		ContentID: contentID,
		QuizID:    quiz.ID,
		VideoURL:  link.URL,
		Backend:   link.Backend,
	}
	d.feed.Publish(Event{Type: EventLessonDispatched, Contact: contact, QuizID: quiz.ID, Text: link.URL})

	job := StartJob{
		ID:      StartJobID(contact, quiz.ID),
		Contact: contact,
		QuizID:  quiz.ID,
		DueAt:   d.now().Add(d.delay),
	}
	if err := d.scheduler.Schedule(ctx, job); err != nil {
		metrics.ScheduledJobs.WithLabelValues("schedule_failed").Inc()
		d.log.Error("schedule quiz start failed",
			zap.String("contact", contact),
			zap.String("quiz_id", quiz.ID),
			zap.Error(err))
		return res, nil
	}
	res.JobID = job.ID
	res.StartAt = job.DueAt
	d.log.Info("lesson dispatched",
		zap.String("contact", contact),
		zap.String("content_id", contentID),
		zap.String("backend", string(link.Backend)),
		zap.Time("quiz_at", job.DueAt))
	return res, nil
}
