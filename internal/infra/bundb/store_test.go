package bundb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/fixtures"
	"lesson-quiz-service/internal/infra/bundb"
	"lesson-quiz-service/internal/infra/bundb/bundbtest"
)

func TestSeedIsIdempotentAndOrdersQuestions(t *testing.T) {
	ctx := context.Background()
	store := bundbtest.Seeded(t)

	res, err := store.Seed(ctx, fixtures.Demo())
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if res.Quizzes != 2 || res.Questions != 6 {
		t.Fatalf("unexpected seed result %+v", res)
	}

	quiz, err := store.GetQuizWithQuestions(ctx, fixtures.DemoQuizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 5 {
		t.Fatalf("expected 5 questions after reseed, got %d", len(quiz.Questions))
	}
	for i, q := range quiz.Questions {
		if q.Position != i {
			t.Fatalf("question %d has position %d", i, q.Position)
		}
	}
	if quiz.Questions[2].Options[2] != "6g" {
		t.Fatalf("options not decoded in order: %v", quiz.Questions[2].Options)
	}
	letter, err := store.GetQuizWithQuestions(ctx, fixtures.LetterQuizID)
	if err != nil {
		t.Fatalf("get letter quiz: %v", err)
	}
	if letter.Encoding() != domain.EncodingLetter {
		t.Fatalf("expected letter encoding, got %s", letter.Encoding())
	}
}

func TestGetQuizNotFound(t *testing.T) {
	store := bundbtest.Seeded(t)
	_, err := store.GetQuizWithQuestions(context.Background(), "missing")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestContentAndDefaultQuiz(t *testing.T) {
	ctx := context.Background()
	store := bundbtest.Seeded(t)

	content, err := store.GetContent(ctx, fixtures.DemoContentID)
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if content.QuizID != fixtures.DemoQuizID {
		t.Fatalf("expected quiz %s, got %q", fixtures.DemoQuizID, content.QuizID)
	}
	if content.Video == nil || content.Video.YouTubeVideoID != "dQw4w9WgXcQ" {
		t.Fatalf("expected youtube asset, got %+v", content.Video)
	}

	id, err := store.DefaultQuizID(ctx)
	if err != nil {
		t.Fatalf("default quiz: %v", err)
	}
	if id != fixtures.DemoQuizID {
		t.Fatalf("expected first content quiz, got %s", id)
	}

	if _, err := store.GetContent(ctx, "nope"); !errors.Is(err, domain.ErrContentNotFound) {
		t.Fatalf("expected content not found, got %v", err)
	}
}

func TestDefaultQuizWithEmptyCatalog(t *testing.T) {
	store := bundb.NewStore(bundbtest.Open(t))
	if _, err := store.DefaultQuizID(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpsertUserKeepsFirstRow(t *testing.T) {
	ctx := context.Background()
	store := bundbtest.Seeded(t)

	first, err := store.UpsertUser(ctx, "+100", "Ana")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := store.UpsertUser(ctx, "+100", "Other")
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if first.ID != second.ID || second.Name != "Ana" {
		t.Fatalf("expected same user, got %+v then %+v", first, second)
	}
	if _, err := store.FindUserByContact(ctx, "+200"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestSessionUpdatesAreConditional(t *testing.T) {
	ctx := context.Background()
	store := bundbtest.Seeded(t)
	user, _ := store.UpsertUser(ctx, "+100", "Ana")
	now := time.Now()

	session := domain.QuizSession{UserID: user.ID, QuizID: fixtures.DemoQuizID, Status: domain.SessionActive, StartedAt: now}
	if err := store.CreateSession(ctx, &session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	dup := domain.QuizSession{UserID: user.ID, QuizID: fixtures.DemoQuizID, Status: domain.SessionActive, StartedAt: now}
	if err := store.CreateSession(ctx, &dup); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected second active session to conflict, got %v", err)
	}

	if err := store.SaveAnswers(ctx, session.ID, 0, domain.Answers{0: 1}); err != nil {
		t.Fatalf("save answers: %v", err)
	}
	if err := store.AdvanceSession(ctx, session.ID, 0); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := store.AdvanceSession(ctx, session.ID, 0); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected stale advance to conflict, got %v", err)
	}
	if err := store.SaveAnswers(ctx, session.ID, 0, domain.Answers{0: 2}); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected stale save to conflict, got %v", err)
	}

	got, err := store.LatestActiveSession(ctx, user.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.CurrentIndex != 1 || got.Answers.Get(0) != 1 {
		t.Fatalf("unexpected session state %+v", got)
	}

	if err := store.CompleteSession(ctx, session.ID, 1, now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.CompleteSession(ctx, session.ID, 1, now); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected double complete to conflict, got %v", err)
	}
	if _, err := store.LatestActiveSession(ctx, user.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected no active session, got %v", err)
	}
}

func TestCloseActiveSessionsOnlyTouchesQuiz(t *testing.T) {
	ctx := context.Background()
	store := bundbtest.Seeded(t)
	user, _ := store.UpsertUser(ctx, "+100", "Ana")
	now := time.Now()

	for _, quizID := range []string{fixtures.DemoQuizID, fixtures.LetterQuizID} {
		s := domain.QuizSession{UserID: user.ID, QuizID: quizID, Status: domain.SessionActive, StartedAt: now}
		if err := store.CreateSession(ctx, &s); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	closed, err := store.CloseActiveSessions(ctx, user.ID, fixtures.DemoQuizID, now)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 closed session, got %d", closed)
	}
	s, err := store.LatestActiveSession(ctx, user.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if s.QuizID != fixtures.LetterQuizID {
		t.Fatalf("expected letter quiz session to survive, got %s", s.QuizID)
	}
}

func TestCreditRollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	store := bundbtest.Seeded(t)
	user, _ := store.UpsertUser(ctx, "+100", "Ana")
	ledger := app.NewLedger(store, nil)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx app.Repository) error {
		attempt := domain.QuizAttempt{UserID: user.ID, QuizID: fixtures.DemoQuizID, SessionID: "s-1", CreatedAt: time.Now()}
		session := domain.QuizSession{ID: "s-1", UserID: user.ID, QuizID: fixtures.DemoQuizID, Status: domain.SessionCompleted, StartedAt: time.Now()}
		if err := tx.CreateSession(ctx, &session); err != nil {
			return err
		}
		if err := tx.CreateAttempt(ctx, &attempt); err != nil {
			return err
		}
		if _, _, err := ledger.CreditTx(ctx, tx, app.CreditRequest{UserID: user.ID, Amount: 50, AttemptID: attempt.ID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	after, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if after.Balance != 0 {
		t.Fatalf("expected rolled back balance 0, got %d", after.Balance)
	}
	txns, err := store.ListTransactions(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txns))
	}
}

func TestMuxAssetLookup(t *testing.T) {
	ctx := context.Background()
	store := bundbtest.Seeded(t)

	asset, err := store.GetVideoAsset(ctx, fixtures.DemoContentID)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	asset.MuxAssetID = "mux-123"
	if err := store.SaveVideoAsset(ctx, asset); err != nil {
		t.Fatalf("save asset: %v", err)
	}
	found, err := store.FindVideoAssetByMuxID(ctx, "mux-123")
	if err != nil {
		t.Fatalf("find by mux id: %v", err)
	}
	if found.ContentID != fixtures.DemoContentID || found.YouTubeURL == "" {
		t.Fatalf("unexpected asset %+v", found)
	}
	if _, err := store.FindVideoAssetByMuxID(ctx, "other"); !errors.Is(err, domain.ErrVideoNotFound) {
		t.Fatalf("expected video not found, got %v", err)
	}
}

func TestSubmissionKeyIsUnique(t *testing.T) {
	ctx := context.Background()
	store := bundbtest.Seeded(t)
	user, _ := store.UpsertUser(ctx, "+100", "Ana")
	now := time.Now()

	create := func(key string) error {
		session := domain.QuizSession{UserID: user.ID, QuizID: fixtures.DemoQuizID, Status: domain.SessionCompleted, StartedAt: now}
		if err := store.CreateSession(ctx, &session); err != nil {
			t.Fatalf("create session: %v", err)
		}
		attempt := domain.QuizAttempt{UserID: user.ID, QuizID: fixtures.DemoQuizID, SessionID: session.ID, SubmissionKey: key, CreatedAt: now}
		return store.CreateAttempt(ctx, &attempt)
	}

	for i := 0; i < 2; i++ {
		if err := create(""); err != nil {
			t.Fatalf("unkeyed attempt %d: %v", i, err)
		}
	}
	if err := create("wa:1"); err != nil {
		t.Fatalf("keyed attempt: %v", err)
	}
	if err := create("wa:1"); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected duplicate key to conflict, got %v", err)
	}

	attempts, err := store.ListAttempts(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	keyed := 0
	for _, a := range attempts {
		if a.SubmissionKey == "wa:1" {
			keyed++
		}
	}
	if len(attempts) != 3 || keyed != 1 {
		t.Fatalf("expected 3 attempts with one keyed, got %d/%d", len(attempts), keyed)
	}
}
