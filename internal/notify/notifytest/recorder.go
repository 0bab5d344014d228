// Package notifytest provides an in-memory notifier for tests.
package notifytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"lesson-quiz-service/internal/domain"
)

// Recorder keeps every delivered message and can be told to fail.
type Recorder struct {
	mu       sync.Mutex
	sent     []domain.OutboundMessage
	failWhen func(domain.OutboundMessage) bool
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, msg domain.OutboundMessage) (domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWhen != nil && r.failWhen(msg) {
		return domain.Receipt{}, fmt.Errorf("%w: recorder: refused message to %s", domain.ErrDelivery, msg.To)
	}
	r.sent = append(r.sent, msg)
	return domain.Receipt{Provider: "recorder", MessageID: fmt.Sprintf("msg-%d", len(r.sent))}, nil
}

// FailWhen makes Send fail for messages matching fn; nil restores delivery.
func (r *Recorder) FailWhen(fn func(domain.OutboundMessage) bool) {
	r.mu.Lock()
	r.failWhen = fn
	r.mu.Unlock()
}

// FailContaining fails messages whose body contains substr.
func (r *Recorder) FailContaining(substr string) {
	r.FailWhen(func(m domain.OutboundMessage) bool { return strings.Contains(m.Body, substr) })
}

// Messages returns a copy of what was delivered to contact ("" for everyone).
func (r *Recorder) Messages(contact string) []domain.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.OutboundMessage, 0, len(r.sent))
	for _, m := range r.sent {
		if contact == "" || m.To == contact {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the latest message delivered to contact.
func (r *Recorder) Last(contact string) (domain.OutboundMessage, bool) {
	msgs := r.Messages(contact)
	if len(msgs) == 0 {
		return domain.OutboundMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

// Count returns how many messages went to contact whose body contains substr.
func (r *Recorder) Count(contact, substr string) int {
	n := 0
	for _, m := range r.Messages(contact) {
		if strings.Contains(m.Body, substr) {
			n++
		}
	}
	return n
}

// Reset forgets delivered messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}
