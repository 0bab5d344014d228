package bundb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
)

// Store implements the engine repository, the catalog and the content source.
// Session mutations are conditional updates; zero affected rows means the session moved on.
type Store struct {
	db  bun.IDB
	now func() time.Time
}

var (
	_ app.Repository    = (*Store)(nil)
	_ app.Catalog       = (*Store)(nil)
	_ app.ContentSource = (*Store)(nil)
	_ app.VideoStore    = (*Store)(nil)
)

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithinTx runs fn in one transaction. Nested calls reuse the open transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.Repository) error) error {
	if _, ok := s.db.(bun.Tx); ok {
		return fn(ctx, s)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx, now: s.now})
	})
}

func (s *Store) UpsertUser(ctx context.Context, contact, name string) (domain.User, error) {
	row := userRow{
		ID:        uuid.NewString(),
		Contact:   contact,
		Name:      name,
		CreatedAt: s.now(),
	}
	if _, err := s.db.NewInsert().Model(&row).On("CONFLICT (contact) DO NOTHING").Exec(ctx); err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return s.FindUserByContact(ctx, contact)
}

func (s *Store) FindUserByContact(ctx context.Context, contact string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("contact = ?", contact).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("contact %s: %w", contact, domain.ErrUserNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", userID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) LatestActiveSession(ctx context.Context, userID string) (domain.QuizSession, error) {
	var row sessionRow
	err := s.db.NewSelect().
		Model(&row).
		Where("user_id = ?", userID).
		Where("status = ?", string(domain.SessionActive)).
		OrderExpr("started_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("latest active session: %w", err)
	}
	return row.toDomain()
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", sessionID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizSession{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("get session: %w", err)
	}
	return row.toDomain()
}

// CloseActiveSessions completes, without an attempt, every active session of user for quiz.
func (s *Store) CloseActiveSessions(ctx context.Context, userID, quizID string, at time.Time) (int, error) {
	res, err := s.db.NewUpdate().
		Table("quiz_sessions").
		Set("status = ?", string(domain.SessionCompleted)).
		Set("completed_at = ?", at).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Where("status = ?", string(domain.SessionActive)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("close active sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) CreateSession(ctx context.Context, session *domain.QuizSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	answers, err := encodeAnswers(session.Answers)
	if err != nil {
		return err
	}
	row := sessionRow{
		ID:           session.ID,
		UserID:       session.UserID,
		QuizID:       session.QuizID,
		CurrentIndex: session.CurrentIndex,
		Answers:      answers,
		Status:       string(session.Status),
		StartedAt:    session.StartedAt,
		CompletedAt:  session.CompletedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: active session already exists", domain.ErrStateConflict)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) SaveAnswers(ctx context.Context, sessionID string, atIndex int, answers domain.Answers) error {
	encoded, err := encodeAnswers(answers)
	if err != nil {
		return err
	}
	res, err := s.db.NewUpdate().
		Table("quiz_sessions").
		Set("answers = ?", encoded).
		Where("id = ?", sessionID).
		Where("status = ?", string(domain.SessionActive)).
		Where("current_index = ?", atIndex).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	return expectOne(res, "save answers", sessionID)
}

func (s *Store) AdvanceSession(ctx context.Context, sessionID string, fromIndex int) error {
	res, err := s.db.NewUpdate().
		Table("quiz_sessions").
		Set("current_index = ?", fromIndex+1).
		Where("id = ?", sessionID).
		Where("status = ?", string(domain.SessionActive)).
		Where("current_index = ?", fromIndex).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("advance session: %w", err)
	}
	return expectOne(res, "advance session", sessionID)
}

func (s *Store) CompleteSession(ctx context.Context, sessionID string, atIndex int, at time.Time) error {
	res, err := s.db.NewUpdate().
		Table("quiz_sessions").
		Set("status = ?", string(domain.SessionCompleted)).
		Set("completed_at = ?", at).
		Where("id = ?", sessionID).
		Where("status = ?", string(domain.SessionActive)).
		Where("current_index = ?", atIndex).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return expectOne(res, "complete session", sessionID)
}

func (s *Store) CreateAttempt(ctx context.Context, attempt *domain.QuizAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	answers, err := encodeAnswers(attempt.Answers)
	if err != nil {
		return err
	}
	row := attemptRow{
		ID:            attempt.ID,
		UserID:        attempt.UserID,
		QuizID:        attempt.QuizID,
		SessionID:     attempt.SessionID,
		Score:         attempt.Score,
		Passed:        attempt.Passed,
		Answers:       answers,
		SubmissionKey: attempt.SubmissionKey,
		CreatedAt:     attempt.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: attempt already recorded (session %s, submission %q)",
				domain.ErrStateConflict, attempt.SessionID, attempt.SubmissionKey)
		}
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (s *Store) ListAttempts(ctx context.Context, userID string) ([]domain.QuizAttempt, error) {
	var rows []attemptRow
	if err := s.db.NewSelect().Model(&rows).Where("user_id = ?", userID).OrderExpr("created_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.QuizAttempt, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ApplyCredit inserts the transaction row and bumps the user balance. Callers run it inside
// WithinTx so both writes land together.
func (s *Store) ApplyCredit(ctx context.Context, txn *domain.WalletTransaction) (int64, error) {
	row := walletTransactionRow{
		ID:          txn.ID,
		UserID:      txn.UserID,
		Amount:      txn.Amount,
		Type:        txn.Type,
		Description: txn.Description,
		AttemptID:   txn.AttemptID,
		ContentID:   txn.ContentID,
		CreatedAt:   txn.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("attempt %s: %w", txn.AttemptID, domain.ErrAlreadyCredited)
		}
		return 0, fmt.Errorf("insert wallet transaction: %w", err)
	}
	res, err := s.db.NewUpdate().
		Table("users").
		Set("balance = balance + ?", txn.Amount).
		Where("id = ?", txn.UserID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("increment balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return 0, fmt.Errorf("credit user %s: %w", txn.UserID, domain.ErrUserNotFound)
	}
	user, err := s.GetUser(ctx, txn.UserID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]domain.WalletTransaction, error) {
	var rows []walletTransactionRow
	if err := s.db.NewSelect().Model(&rows).Where("user_id = ?", userID).OrderExpr("created_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]domain.WalletTransaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) SumTransactions(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := s.db.NewSelect().
		Table("wallet_transactions").
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(ctx, &sum)
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

func expectOne(res sql.Result, op, sessionID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n != 1 {
		return fmt.Errorf("%s %s: %w", op, sessionID, domain.ErrStateConflict)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
