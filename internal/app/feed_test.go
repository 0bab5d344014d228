package app_test

import (
	"testing"

	"lesson-quiz-service/internal/app"
)

func TestFeedFiltersByContact(t *testing.T) {
	feed := app.NewFeedWithClock(fixedClock())
	mine, cancelMine := feed.Subscribe(contact)
	defer cancelMine()
	all, cancelAll := feed.Subscribe("")
	defer cancelAll()

	feed.Publish(app.Event{Type: app.EventMessageInbound, Contact: "+999"})
	feed.Publish(app.Event{Type: app.EventSessionStarted, Contact: contact})

	ev := <-mine
	if ev.Type != app.EventSessionStarted || !ev.At.Equal(fixedClock()()) {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(mine) != 0 {
		t.Fatalf("expected other contacts filtered out")
	}
	if len(all) != 2 {
		t.Fatalf("expected unfiltered subscriber to get 2 events, got %d", len(all))
	}
}

func TestFeedDropsOldestForSlowSubscriber(t *testing.T) {
	feed := app.NewFeed()
	ch, cancel := feed.Subscribe(contact)

	for i := 0; i < 20; i++ {
		feed.Publish(app.Event{Type: app.EventAnswerRecorded, Contact: contact, QuestionIndex: i})
	}
	first := <-ch
	if first.QuestionIndex != 4 {
		t.Fatalf("expected oldest events dropped, first is %d", first.QuestionIndex)
	}

	cancel()
	cancel()
	if feed.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after cancel")
	}
	for range ch {
	}
}

func TestNilFeedIsSafe(t *testing.T) {
	var feed *app.Feed
	feed.Publish(app.Event{Type: app.EventSessionCompleted, Contact: contact})
}
