package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/metrics"
)

var tracer = otel.Tracer("lesson-quiz-service/app")

// Engine runs the conversational quiz state machine:
//
//	NO_SESSION -> ACTIVE(0) -> ... -> ACTIVE(n-1) -> COMPLETED
//
// Every transition for a contact runs under that contact's lock, and every session write is
// conditional on the state it was read in, so duplicate webhook deliveries cannot advance a
// session twice or credit a reward twice.
type Engine struct {
	repo     Repository
	catalog  Catalog
	notifier Notifier
	ledger   *Ledger
	feed     *Feed
	locks    *keyedLocks
	log      *zap.Logger
	now      func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *zap.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithFeed publishes session events to feed.
func WithFeed(feed *Feed) EngineOption {
	return func(e *Engine) { e.feed = feed }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(repo Repository, catalog Catalog, notifier Notifier, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:     repo,
		catalog:  catalog,
		notifier: notifier,
		locks:    newKeyedLocks(),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ledger = NewLedger(repo, e.log)
	e.ledger.now = e.now
	return e
}

// StartResult identifies the session a start created.
type StartResult struct {
	SessionID     string `json:"sessionId"`
	ClosedPrior   int    `json:"closedPrior"`
	QuestionCount int    `json:"questionCount"`
}

// Start (re)starts quizID for contact: prior active sessions of the same quiz are closed
// without an attempt, a fresh session begins at question 0 and the first question is sent.
func (e *Engine) Start(ctx context.Context, contact, quizID string) (res StartResult, err error) {
	ctx, span := tracer.Start(ctx, "Engine.Start", trace.WithAttributes(
		attribute.String("quiz.id", quizID),
	))
	defer endSpan(span, &err)

	quiz, err := e.loadQuiz(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}
	if len(quiz.Questions) == 0 {
		return StartResult{}, fmt.Errorf("start quiz %s: %w", quizID, domain.ErrEmptyQuiz)
	}

	unlock := e.locks.Lock(contact)
	defer unlock()

	user, err := e.repo.UpsertUser(ctx, contact, contact)
	if err != nil {
		return StartResult{}, fmt.Errorf("upsert user: %w", err)
	}

	now := e.now()
	session := domain.QuizSession{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		QuizID:       quiz.ID,
		CurrentIndex: 0,
		Answers:      domain.Answers{},
		Status:       domain.SessionActive,
		StartedAt:    now,
	}
	closed := 0
	err = e.repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		if closed, err = tx.CloseActiveSessions(ctx, user.ID, quiz.ID, now); err != nil {
			return err
		}
		return tx.CreateSession(ctx, &session)
	})
	if err != nil {
		return StartResult{}, fmt.Errorf("create session: %w", err)
	}
	metrics.SessionsStarted.Inc()
	e.log.Info("quiz session started",
		zap.String("contact", contact),
		zap.String("quiz_id", quiz.ID),
		zap.String("session_id", session.ID),
		zap.Int("closed_prior", closed))
	e.feed.Publish(Event{Type: EventSessionStarted, Contact: contact, SessionID: session.ID, QuizID: quiz.ID})

	res = StartResult{SessionID: session.ID, ClosedPrior: closed, QuestionCount: len(quiz.Questions)}
	body, err := FormatQuestion(quiz, 0)
	if err != nil {
		return res, err
	}
	if err := e.send(ctx, contact, formatIntro(quiz)+body); err != nil {
		return res, err
	}
	return res, nil
}

// AnswerOutcome classifies what an answer call did.
type AnswerOutcome string

const (
	OutcomeIgnored   AnswerOutcome = "ignored"
	OutcomeInvalid   AnswerOutcome = "invalid"
	OutcomeAdvanced  AnswerOutcome = "advanced"
	OutcomeCompleted AnswerOutcome = "completed"
	OutcomeConflict  AnswerOutcome = "conflict"
)

// AnswerResult reports the transition an answer produced.
type AnswerResult struct {
	Completed     bool            `json:"completed"`
	Outcome       AnswerOutcome   `json:"outcome"`
	SessionID     string          `json:"sessionId,omitempty"`
	QuestionIndex int             `json:"questionIndex"`
	Correct       bool            `json:"correct"`
	Summary       *domain.Summary `json:"summary,omitempty"`
}

// Answer applies one reply to the contact's active session. Unknown contacts and contacts
// without an active session are ignored. Unparseable or out-of-range replies trigger a
// reprompt and leave the session untouched.
func (e *Engine) Answer(ctx context.Context, contact, text string) (res AnswerResult, err error) {
	ctx, span := tracer.Start(ctx, "Engine.Answer")
	defer endSpan(span, &err)

	unlock := e.locks.Lock(contact)
	defer unlock()

	user, err := e.repo.FindUserByContact(ctx, contact)
	if errors.Is(err, domain.ErrUserNotFound) {
		return AnswerResult{Outcome: OutcomeIgnored}, nil
	}
	if err != nil {
		return AnswerResult{}, err
	}
	session, err := e.repo.LatestActiveSession(ctx, user.ID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return AnswerResult{Outcome: OutcomeIgnored}, nil
	}
	if err != nil {
		return AnswerResult{}, err
	}
	span.SetAttributes(attribute.String("session.id", session.ID), attribute.Int("question.index", session.CurrentIndex))

	quiz, err := e.loadQuiz(ctx, session.QuizID)
	if err != nil {
		return AnswerResult{}, err
	}
	idx := session.CurrentIndex
	res = AnswerResult{SessionID: session.ID, QuestionIndex: idx}
	if idx >= len(quiz.Questions) {
		// the quiz lost questions under this session; score what was answered and close it
		e.log.Warn("active session past last question, completing",
			zap.String("session_id", session.ID),
			zap.Int("index", idx),
			zap.Int("questions", len(quiz.Questions)))
		return e.finish(ctx, res, user, session.ID, idx, quiz, session.Answers)
	}
	question := quiz.Questions[idx]

	choice, ok := ParseAnswer(text, quiz.Encoding())
	if !ok || choice >= len(question.Options) {
		metrics.Answers.WithLabelValues("invalid").Inc()
		e.feed.Publish(Event{Type: EventAnswerInvalid, Contact: contact, SessionID: session.ID, QuizID: quiz.ID, QuestionIndex: idx, Text: text})
		res.Outcome = OutcomeInvalid
		return res, e.send(ctx, contact, formatInvalidAnswer(quiz.Encoding(), len(question.Options)))
	}

	answers := session.Answers.Clone()
	answers[idx] = choice
	if err := e.repo.SaveAnswers(ctx, session.ID, idx, answers); err != nil {
		return e.conflictOr(res, session.ID, err)
	}

	res.Correct = choice == question.CorrectAnswer
	if res.Correct {
		metrics.Answers.WithLabelValues("correct").Inc()
	} else {
		metrics.Answers.WithLabelValues("incorrect").Inc()
	}
	correct := res.Correct
	e.feed.Publish(Event{Type: EventAnswerRecorded, Contact: contact, SessionID: session.ID, QuizID: quiz.ID, QuestionIndex: idx, Correct: &correct})

	if err := e.send(ctx, contact, formatFeedback(question, res.Correct)); err != nil {
		return res, err
	}

	next := idx + 1
	if next < len(quiz.Questions) {
		body, err := FormatQuestion(quiz, next)
		if err != nil {
			return res, err
		}
		// the index only moves once the next question is out, so a failed send is retried
		// against the same question
		if err := e.send(ctx, contact, body); err != nil {
			return res, err
		}
		if err := e.repo.AdvanceSession(ctx, session.ID, idx); err != nil {
			return e.conflictOr(res, session.ID, err)
		}
		res.Outcome = OutcomeAdvanced
		return res, nil
	}

	return e.finish(ctx, res, user, session.ID, idx, quiz, answers)
}

func (e *Engine) finish(ctx context.Context, res AnswerResult, user domain.User, sessionID string, atIndex int, quiz domain.Quiz, answers domain.Answers) (AnswerResult, error) {
	summary, err := e.complete(ctx, user, sessionID, atIndex, quiz, answers)
	if err != nil {
		return e.conflictOr(res, sessionID, err)
	}
	res.Outcome = OutcomeCompleted
	res.Completed = true
	res.Summary = &summary
	e.sendSummary(ctx, user.Contact, summary)
	return res, nil
}

// sendSummary reports a completion. The session is final by then, so a failed send is
// logged and not surfaced.
func (e *Engine) sendSummary(ctx context.Context, contact string, summary domain.Summary) {
	if err := e.send(ctx, contact, formatSummary(summary)); err != nil {
		e.log.Error("quiz summary not delivered",
			zap.String("contact", contact),
			zap.String("session_id", summary.SessionID),
			zap.Error(err))
	}
}

// SubmitAnswers scores a whole answer map at once (structured flow replies). It creates a
// session for the record and completes it through the same path as conversational answers.
//
// key identifies the delivery (for example the channel message id). A key that already
// produced an attempt returns domain.ErrStateConflict and changes nothing. An empty key
// disables the check.
func (e *Engine) SubmitAnswers(ctx context.Context, contact, quizID string, answers domain.Answers, key string) (summary domain.Summary, err error) {
	ctx, span := tracer.Start(ctx, "Engine.SubmitAnswers", trace.WithAttributes(
		attribute.String("quiz.id", quizID),
	))
	defer endSpan(span, &err)

	quiz, err := e.loadQuiz(ctx, quizID)
	if err != nil {
		return domain.Summary{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.Summary{}, fmt.Errorf("submit quiz %s: %w", quizID, domain.ErrEmptyQuiz)
	}
	if err := answers.Validate(quiz); err != nil {
		return domain.Summary{}, err
	}

	unlock := e.locks.Lock(contact)
	defer unlock()

	user, err := e.repo.UpsertUser(ctx, contact, contact)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("upsert user: %w", err)
	}

	now := e.now()
	last := len(quiz.Questions) - 1
	session := domain.QuizSession{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		QuizID:       quiz.ID,
		CurrentIndex: last,
		Answers:      answers.Clone(),
		Status:       domain.SessionActive,
		StartedAt:    now,
	}
	err = e.repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.CloseActiveSessions(ctx, user.ID, quiz.ID, now); err != nil {
			return err
		}
		if err := tx.CreateSession(ctx, &session); err != nil {
			return err
		}
		var err error
		summary, err = e.completeTx(ctx, tx, user, session.ID, last, quiz, session.Answers, key)
		return err
	})
	if errors.Is(err, domain.ErrStateConflict) && key != "" {
		e.log.Info("duplicate submission ignored",
			zap.String("contact", contact),
			zap.String("quiz_id", quiz.ID),
			zap.String("submission_key", key))
		return domain.Summary{}, fmt.Errorf("submission %s: %w", key, err)
	}
	if err != nil {
		return domain.Summary{}, err
	}
	metrics.SessionsStarted.Inc()
	e.observeCompletion(contact, summary)
	e.sendSummary(ctx, contact, summary)
	return summary, nil
}

// HandleStartJob is the scheduler callback for delayed quiz starts.
func (e *Engine) HandleStartJob(ctx context.Context, job StartJob) error {
	_, err := e.Start(ctx, job.Contact, job.QuizID)
	return err
}

func (e *Engine) complete(ctx context.Context, user domain.User, sessionID string, atIndex int, quiz domain.Quiz, answers domain.Answers) (domain.Summary, error) {
	var summary domain.Summary
	err := e.repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		summary, err = e.completeTx(ctx, tx, user, sessionID, atIndex, quiz, answers, "")
		return err
	})
	if err != nil {
		return domain.Summary{}, err
	}
	e.observeCompletion(user.Contact, summary)
	return summary, nil
}

// completeTx scores from the full answer map, closes the session, writes the single attempt
// and, on a pass, credits the ledger. All of it commits or none of it does.
func (e *Engine) completeTx(ctx context.Context, tx Repository, user domain.User, sessionID string, atIndex int, quiz domain.Quiz, answers domain.Answers, submissionKey string) (domain.Summary, error) {
	eval := domain.Evaluate(quiz, answers)
	now := e.now()

	if err := tx.CompleteSession(ctx, sessionID, atIndex, now); err != nil {
		return domain.Summary{}, err
	}
	attempt := domain.QuizAttempt{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		QuizID:        quiz.ID,
		SessionID:     sessionID,
		Score:         eval.Score,
		Passed:        eval.Passed,
		Answers:       answers.Clone(),
		CreatedAt:     now,
		SubmissionKey: submissionKey,
	}
	if err := tx.CreateAttempt(ctx, &attempt); err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		SessionID: sessionID,
		AttemptID: attempt.ID,
		QuizID:    quiz.ID,
		Correct:   eval.Correct,
		Total:     eval.Total,
		Score:     eval.Score,
		Passed:    eval.Passed,
	}
	if eval.Passed && quiz.RewardCoins > 0 {
		txn, balance, err := e.ledger.CreditTx(ctx, tx, CreditRequest{
			UserID:      user.ID,
			Amount:      int64(quiz.RewardCoins),
			AttemptID:   attempt.ID,
			ContentID:   quiz.ContentID,
			Description: "Reward for completing quiz: " + quiz.Title,
		})
		if err != nil {
			return domain.Summary{}, err
		}
		summary.Reward = txn.Amount
		summary.Balance = balance
		summary.Transaction = txn.ID
		return summary, nil
	}

	current, err := tx.GetUser(ctx, user.ID)
	if err != nil {
		return domain.Summary{}, err
	}
	summary.Balance = current.Balance
	return summary, nil
}

func (e *Engine) observeCompletion(contact string, summary domain.Summary) {
	outcome := "failed"
	if summary.Passed {
		outcome = "passed"
	}
	metrics.Completions.WithLabelValues(outcome).Inc()
	e.log.Info("quiz session completed",
		zap.String("contact", contact),
		zap.String("session_id", summary.SessionID),
		zap.Int("score", summary.Score),
		zap.Bool("passed", summary.Passed),
		zap.Int64("reward", summary.Reward))
	e.feed.Publish(Event{Type: EventSessionCompleted, Contact: contact, SessionID: summary.SessionID, QuizID: summary.QuizID, Text: fmt.Sprintf("%d%%", summary.Score)})
}

// conflictOr turns a lost race into a logged no-op and passes other errors through.
func (e *Engine) conflictOr(res AnswerResult, sessionID string, err error) (AnswerResult, error) {
	if errors.Is(err, domain.ErrStateConflict) {
		metrics.Answers.WithLabelValues("conflict").Inc()
		e.log.Warn("session changed concurrently, answer dropped", zap.String("session_id", sessionID))
		res.Outcome = OutcomeConflict
		res.Completed = false
		return res, nil
	}
	return res, err
}

func (e *Engine) loadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := e.catalog.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	return quiz, nil
}

func (e *Engine) send(ctx context.Context, to, body string) error {
	if _, err := e.notifier.Send(ctx, domain.OutboundMessage{To: to, Body: body}); err != nil {
		e.log.Warn("notifier send failed", zap.String("to", to), zap.Error(err))
		if errors.Is(err, domain.ErrDelivery) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	return nil
}

func endSpan(span trace.Span, errp *error) {
	if errp != nil && *errp != nil {
		span.RecordError(*errp)
		span.SetStatus(codes.Error, (*errp).Error())
	}
	span.End()
}
