// Package postgres is the pgx read path for quiz content.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lesson-quiz-service/internal/domain"
)

// Catalog loads quizzes straight from Postgres with pgx. It reads the tables the bun
// migrations create and is meant to sit behind a cache.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// Connect opens a pgx pool for dsn and checks it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

const (
	quizQuery = `SELECT id, content_id, title, description, passing_score, reward_coins, active, answer_encoding
FROM quizzes WHERE id = $1`
	questionsQuery = `SELECT id, text, options, correct_answer, position
FROM questions WHERE quiz_id = $1 ORDER BY position ASC`
)

func (c *Catalog) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		quiz     domain.Quiz
		encoding string
	)
	err := c.pool.QueryRow(ctx, quizQuery, quizID).Scan(
		&quiz.ID, &quiz.ContentID, &quiz.Title, &quiz.Description,
		&quiz.PassingScore, &quiz.RewardCoins, &quiz.Active, &encoding,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, fmt.Errorf("quiz %s: %w", quizID, domain.ErrQuizNotFound)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	quiz.AnswerEncoding = domain.AnswerEncoding(encoding)

	rows, err := c.pool.Query(ctx, questionsQuery, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			q       domain.Question
			options string
		)
		if err := rows.Scan(&q.ID, &q.Text, &options, &q.CorrectAnswer, &q.Position); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return domain.Quiz{}, fmt.Errorf("decode options of question %s: %w", q.ID, err)
		}
		q.QuizID = quizID
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("iterate questions: %w", err)
	}
	return quiz, nil
}
