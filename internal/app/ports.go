package app

import (
	"context"
	"time"

	"lesson-quiz-service/internal/domain"
)

// Catalog loads quiz content (from cache/backing store). Questions come back in position
// order and that order is the canonical index space for session answers.
type Catalog interface {
	GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ContentSource resolves lesson content with its video asset and quiz reference.
type ContentSource interface {
	GetContent(ctx context.Context, contentID string) (domain.Content, error)
	DefaultQuizID(ctx context.Context) (string, error)
}

// Notifier delivers messages over the user's channel.
type Notifier interface {
	Send(ctx context.Context, msg domain.OutboundMessage) (domain.Receipt, error)
}

// VideoPublisher resolves a content id to a publicly fetchable video url.
type VideoPublisher interface {
	ResolveVideoURL(ctx context.Context, contentID string) (domain.VideoLink, error)
}

// Repository abstracts how users, sessions, attempts and ledger entries are stored.
// Mutations on sessions are conditional and return domain.ErrStateConflict when the
// session is no longer in the expected state.
type Repository interface {
	UpsertUser(ctx context.Context, contact, name string) (domain.User, error)
	FindUserByContact(ctx context.Context, contact string) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)

	LatestActiveSession(ctx context.Context, userID string) (domain.QuizSession, error)
	GetSession(ctx context.Context, sessionID string) (domain.QuizSession, error)
	CloseActiveSessions(ctx context.Context, userID, quizID string, at time.Time) (int, error)
	CreateSession(ctx context.Context, session *domain.QuizSession) error
	SaveAnswers(ctx context.Context, sessionID string, atIndex int, answers domain.Answers) error
	AdvanceSession(ctx context.Context, sessionID string, fromIndex int) error
	CompleteSession(ctx context.Context, sessionID string, atIndex int, at time.Time) error

	CreateAttempt(ctx context.Context, attempt *domain.QuizAttempt) error
	ListAttempts(ctx context.Context, userID string) ([]domain.QuizAttempt, error)

	ApplyCredit(ctx context.Context, txn *domain.WalletTransaction) (int64, error)
	ListTransactions(ctx context.Context, userID string) ([]domain.WalletTransaction, error)
	SumTransactions(ctx context.Context, userID string) (int64, error)

	// WithinTx runs fn against a repository bound to one transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
}

// VideoStore persists per-content video assets.
type VideoStore interface {
	GetVideoAsset(ctx context.Context, contentID string) (domain.VideoAsset, error)
	FindVideoAssetByMuxID(ctx context.Context, muxAssetID string) (domain.VideoAsset, error)
	SaveVideoAsset(ctx context.Context, asset domain.VideoAsset) error
}
