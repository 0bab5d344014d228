package app

import (
	"sync"
	"time"
)

// EventType names something observable that happened to a contact.
type EventType string

const (
	EventSessionStarted   EventType = "session.started"
	EventAnswerRecorded   EventType = "answer.recorded"
	EventAnswerInvalid    EventType = "answer.invalid"
	EventSessionCompleted EventType = "session.completed"
	EventMessageInbound   EventType = "message.inbound"
	EventMessageOutbound  EventType = "message.outbound"
	EventLessonDispatched EventType = "lesson.dispatched"
)

// Event is a snapshot-friendly record pushed to feed subscribers.
type Event struct {
	Type          EventType `json:"type"`
	Contact       string    `json:"contact"`
	SessionID     string    `json:"sessionId,omitempty"`
	QuizID        string    `json:"quizId,omitempty"`
	QuestionIndex int       `json:"questionIndex,omitempty"`
	Correct       *bool     `json:"correct,omitempty"`
	Text          string    `json:"text,omitempty"`
	At            time.Time `json:"at"`
}

// Feed fans events out to in-process subscribers, optionally filtered by contact.
// A nil *Feed is valid and drops everything.
type Feed struct {
	now         func() time.Time
	mu          sync.RWMutex
	subscribers map[chan Event]string
}

func NewFeed() *Feed {
	return NewFeedWithClock(time.Now)
}

// NewFeedWithClock allows deterministic timestamps in tests.
func NewFeedWithClock(now func() time.Time) *Feed {
	return &Feed{
		now:         now,
		subscribers: make(map[chan Event]string),
	}
}

// Subscribe returns a channel of events for contact ("" for every contact).
// The caller must invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(contact string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	f.mu.Lock()
	f.subscribers[ch] = contact
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish stamps and broadcasts ev without ever blocking the publisher.
func (f *Feed) Publish(ev Event) {
	if f == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = f.now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch, contact := range f.subscribers {
		if contact != "" && contact != ev.Contact {
			continue
		}
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop its oldest event to make room
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribers reports how many subscriptions are open.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}
