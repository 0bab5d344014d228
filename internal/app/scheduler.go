package app

import (
	"context"
	"errors"
	"time"

	"lesson-quiz-service/internal/domain"
)

// StartJob is a delayed quiz start for one contact.
type StartJob struct {
	ID       string    `json:"id"`
	Contact  string    `json:"contact"`
	QuizID   string    `json:"quizId"`
	DueAt    time.Time `json:"dueAt"`
	Attempts int       `json:"attempts"`
}

// StartJobID is deterministic per contact and quiz so a re-dispatch replaces the pending job.
func StartJobID(contact, quizID string) string {
	return "quiz-start:" + contact + ":" + quizID
}

// JobHandler runs a due job.
type JobHandler func(ctx context.Context, job StartJob) error

// Scheduler holds delayed quiz starts.
type Scheduler interface {
	// Schedule stores job, replacing any pending job with the same id.
	Schedule(ctx context.Context, job StartJob) error
	// Cancel removes a pending job and reports whether one existed.
	Cancel(ctx context.Context, id string) (bool, error)
	// Pending lists jobs not yet run, soonest first.
	Pending(ctx context.Context) ([]StartJob, error)
}

// RetryableJobError reports whether a failed job may succeed on a later run. A missing or
// empty quiz stays that way until the catalog is reseeded.
func RetryableJobError(err error) bool {
	return !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrEmptyQuiz)
}
