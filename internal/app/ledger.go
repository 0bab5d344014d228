package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/metrics"
)

// Ledger credits reward points. The balance increment and the transaction row are one write.
type Ledger struct {
	repo Repository
	now  func() time.Time
	log  *zap.Logger
}

func NewLedger(repo Repository, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{repo: repo, now: time.Now, log: log}
}

// CreditRequest describes one reward.
type CreditRequest struct {
	UserID      string
	Amount      int64
	AttemptID   string
	ContentID   string
	Description string
}

// Credit opens its own transaction and credits the user.
func (l *Ledger) Credit(ctx context.Context, req CreditRequest) (domain.WalletTransaction, int64, error) {
	var (
		txn     domain.WalletTransaction
		balance int64
	)
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		txn, balance, err = l.CreditTx(ctx, tx, req)
		return err
	})
	return txn, balance, err
}

// CreditTx credits inside the caller's transaction so it commits or rolls back with it.
func (l *Ledger) CreditTx(ctx context.Context, tx Repository, req CreditRequest) (domain.WalletTransaction, int64, error) {
	if req.Amount <= 0 {
		return domain.WalletTransaction{}, 0, domain.ErrInvalidAmount
	}
	if req.AttemptID == "" {
		return domain.WalletTransaction{}, 0, fmt.Errorf("%w: credit needs an attempt", domain.ErrLedgerInvariant)
	}
	txn := domain.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Amount:      req.Amount,
		Type:        domain.TransactionQuizReward,
		Description: req.Description,
		AttemptID:   req.AttemptID,
		ContentID:   req.ContentID,
		CreatedAt:   l.now(),
	}
	balance, err := tx.ApplyCredit(ctx, &txn)
	if err != nil {
		return domain.WalletTransaction{}, 0, fmt.Errorf("apply credit: %w", err)
	}
	metrics.CoinsCredited.Add(float64(req.Amount))
	l.log.Info("ledger credit",
		zap.String("user_id", req.UserID),
		zap.Int64("amount", req.Amount),
		zap.String("attempt_id", req.AttemptID),
		zap.Int64("balance", balance))
	return txn, balance, nil
}

// Wallet is a user's balance with its backing transactions.
type Wallet struct {
	User         domain.User                `json:"user"`
	Transactions []domain.WalletTransaction `json:"transactions"`
	LedgerSum    int64                      `json:"ledgerSum"`
}

// Wallet loads the user's balance and history by contact.
func (l *Ledger) Wallet(ctx context.Context, contact string) (Wallet, error) {
	user, err := l.repo.FindUserByContact(ctx, contact)
	if err != nil {
		return Wallet{}, err
	}
	txns, err := l.repo.ListTransactions(ctx, user.ID)
	if err != nil {
		return Wallet{}, err
	}
	sum, err := l.repo.SumTransactions(ctx, user.ID)
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{User: user, Transactions: txns, LedgerSum: sum}, nil
}

// Verify checks the materialized balance against the ledger sum.
func (l *Ledger) Verify(ctx context.Context, userID string) error {
	user, err := l.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	sum, err := l.repo.SumTransactions(ctx, userID)
	if err != nil {
		return err
	}
	if user.Balance != sum {
		return fmt.Errorf("%w: user %s balance %d != ledger sum %d", domain.ErrLedgerInvariant, userID, user.Balance, sum)
	}
	return nil
}
