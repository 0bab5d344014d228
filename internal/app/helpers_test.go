package app_test

import (
	"context"
	"testing"
	"time"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/fixtures"
	"lesson-quiz-service/internal/infra/bundb"
	"lesson-quiz-service/internal/infra/bundb/bundbtest"
	"lesson-quiz-service/internal/notify/notifytest"
)

const contact = "+5215550001"

type harness struct {
	store    *bundb.Store
	notifier *notifytest.Recorder
	feed     *app.Feed
	engine   *app.Engine
	ledger   *app.Ledger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := bundbtest.Seeded(t)
	rec := notifytest.NewRecorder()
	feed := app.NewFeed()
	return &harness{
		store:    store,
		notifier: rec,
		feed:     feed,
		engine:   app.NewEngine(store, store, rec, app.WithFeed(feed)),
		ledger:   app.NewLedger(store, nil),
	}
}

func (h *harness) start(t *testing.T, quizID string) app.StartResult {
	t.Helper()
	res, err := h.engine.Start(context.Background(), contact, quizID)
	if err != nil {
		t.Fatalf("start %s: %v", quizID, err)
	}
	return res
}

func (h *harness) answer(t *testing.T, text string) app.AnswerResult {
	t.Helper()
	res, err := h.engine.Answer(context.Background(), contact, text)
	if err != nil {
		t.Fatalf("answer %q: %v", text, err)
	}
	return res
}

func (h *harness) user(t *testing.T) domain.User {
	t.Helper()
	u, err := h.store.FindUserByContact(context.Background(), contact)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	return u
}

func (h *harness) activeSession(t *testing.T) domain.QuizSession {
	t.Helper()
	s, err := h.store.LatestActiveSession(context.Background(), h.user(t).ID)
	if err != nil {
		t.Fatalf("active session: %v", err)
	}
	return s
}

func (h *harness) attempts(t *testing.T) []domain.QuizAttempt {
	t.Helper()
	a, err := h.store.ListAttempts(context.Background(), h.user(t).ID)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	return a
}

func (h *harness) transactions(t *testing.T) []domain.WalletTransaction {
	t.Helper()
	txns, err := h.store.ListTransactions(context.Background(), h.user(t).ID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return txns
}

// emptyQuizDataset adds content whose quiz has no questions.
func emptyQuizDataset() domain.Dataset {
	return domain.Dataset{
		Contents: []domain.Content{{
			ID:     "empty-content",
			Title:  "Nothing to ask",
			Active: true,
			Video:  &domain.VideoAsset{DirectURL: "https://cdn.example.com/empty.mp4"},
		}},
		Quizzes: []domain.Quiz{{
			ID:           "empty-quiz",
			ContentID:    "empty-content",
			Title:        "Empty",
			PassingScore: 50,
			RewardCoins:  10,
			Active:       true,
		}},
	}
}

// demoQuiz loads the five question demo quiz.
func demoQuiz(t *testing.T, catalog app.Catalog) domain.Quiz {
	t.Helper()
	quiz, err := catalog.GetQuizWithQuestions(context.Background(), fixtures.DemoQuizID)
	if err != nil {
		t.Fatalf("load demo quiz: %v", err)
	}
	return quiz
}

func fixedClock() func() time.Time {
	at := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}
