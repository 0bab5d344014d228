package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every "missing entity" error; callers surface it, never retry it.
	ErrNotFound = errors.New("not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrContentNotFound indicates an unknown lesson content id.
	ErrContentNotFound = fmt.Errorf("content %w", ErrNotFound)
	// ErrUserNotFound is returned when no user exists for a contact or id.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrSessionNotFound is returned when a user has no active quiz session.
	ErrSessionNotFound = fmt.Errorf("quiz session %w", ErrNotFound)
	// ErrVideoNotFound indicates content without a playable video url.
	ErrVideoNotFound = fmt.Errorf("video %w", ErrNotFound)

	// ErrEmptyQuiz is returned when a quiz has no questions and cannot be started.
	ErrEmptyQuiz = errors.New("quiz has no questions")

	// ErrInvalidInput covers malformed user or API input. The engine recovers from it locally.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidAnswer indicates answer text that maps to no option of the current question.
	ErrInvalidAnswer = fmt.Errorf("%w: answer does not match an option", ErrInvalidInput)
	// ErrInvalidAnswers indicates an answer map that does not fit the quiz.
	ErrInvalidAnswers = fmt.Errorf("%w: answers do not fit the quiz", ErrInvalidInput)

	// ErrStateConflict is returned when a session is not in the state a mutation expected.
	ErrStateConflict = errors.New("quiz session state conflict")

	// ErrDelivery wraps notifier and video publisher failures.
	ErrDelivery = errors.New("downstream delivery failed")

	// ErrLedgerInvariant is the root of rejected ledger writes.
	ErrLedgerInvariant = errors.New("ledger invariant violated")
	// ErrInvalidAmount rejects zero or negative credits.
	ErrInvalidAmount = fmt.Errorf("%w: amount must be positive", ErrLedgerInvariant)
	// ErrAlreadyCredited rejects a second credit for the same attempt.
	ErrAlreadyCredited = fmt.Errorf("%w: attempt already credited", ErrLedgerInvariant)
)
