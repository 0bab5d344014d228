package bundb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"lesson-quiz-service/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk"`
	Contact   string    `bun:"contact,notnull"`
	Name      string    `bun:"name"`
	Email     string    `bun:"email"`
	Balance   int64     `bun:"balance,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:        r.ID,
		Contact:   r.Contact,
		Name:      r.Name,
		Email:     r.Email,
		Balance:   r.Balance,
		CreatedAt: r.CreatedAt,
	}
}

type contentRow struct {
	bun.BaseModel `bun:"table:contents,alias:c"`

	ID          string    `bun:"id,pk"`
	Title       string    `bun:"title,notnull"`
	Description string    `bun:"description"`
	Position    int       `bun:"position"`
	Active      bool      `bun:"active"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

type videoAssetRow struct {
	bun.BaseModel `bun:"table:video_assets,alias:v"`

	ContentID      string `bun:"content_id,pk"`
	YouTubeURL     string `bun:"youtube_url"`
	YouTubeVideoID string `bun:"youtube_video_id"`
	YouTubeStatus  string `bun:"youtube_status"`
	MuxAssetID     string `bun:"mux_asset_id"`
	MuxPlaybackID  string `bun:"mux_playback_id"`
	MuxURL         string `bun:"mux_url"`
	MuxStatus      string `bun:"mux_status"`
	DirectURL      string `bun:"direct_url"`
}

func videoAssetFromDomain(a domain.VideoAsset) videoAssetRow {
	return videoAssetRow{
		ContentID:      a.ContentID,
		YouTubeURL:     a.YouTubeURL,
		YouTubeVideoID: a.YouTubeVideoID,
		YouTubeStatus:  string(a.YouTubeStatus),
		MuxAssetID:     a.MuxAssetID,
		MuxPlaybackID:  a.MuxPlaybackID,
		MuxURL:         a.MuxURL,
		MuxStatus:      string(a.MuxStatus),
		DirectURL:      a.DirectURL,
	}
}

func (r videoAssetRow) toDomain() domain.VideoAsset {
	return domain.VideoAsset{
		ContentID:      r.ContentID,
		YouTubeURL:     r.YouTubeURL,
		YouTubeVideoID: r.YouTubeVideoID,
		YouTubeStatus:  domain.AssetStatus(r.YouTubeStatus),
		MuxAssetID:     r.MuxAssetID,
		MuxPlaybackID:  r.MuxPlaybackID,
		MuxURL:         r.MuxURL,
		MuxStatus:      domain.AssetStatus(r.MuxStatus),
		DirectURL:      r.DirectURL,
	}
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID             string `bun:"id,pk"`
	ContentID      string `bun:"content_id,notnull"`
	Title          string `bun:"title,notnull"`
	Description    string `bun:"description"`
	PassingScore   int    `bun:"passing_score"`
	RewardCoins    int    `bun:"reward_coins"`
	Active         bool   `bun:"active"`
	AnswerEncoding string `bun:"answer_encoding"`
}

// questionRow keeps options as a JSON text column so both dialects share one shape.
type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qq"`

	ID            string `bun:"id,pk"`
	QuizID        string `bun:"quiz_id,notnull"`
	Text          string `bun:"text,notnull"`
	Options       string `bun:"options,notnull"`
	CorrectAnswer int    `bun:"correct_answer"`
	Position      int    `bun:"position"`
}

func quizFromRows(q quizRow, questions []questionRow) (domain.Quiz, error) {
	quiz := domain.Quiz{
		ID:             q.ID,
		ContentID:      q.ContentID,
		Title:          q.Title,
		Description:    q.Description,
		PassingScore:   q.PassingScore,
		RewardCoins:    q.RewardCoins,
		Active:         q.Active,
		AnswerEncoding: domain.AnswerEncoding(q.AnswerEncoding),
		Questions:      make([]domain.Question, 0, len(questions)),
	}
	for _, r := range questions {
		var options []string
		if err := json.Unmarshal([]byte(r.Options), &options); err != nil {
			return domain.Quiz{}, fmt.Errorf("decode options of question %s: %w", r.ID, err)
		}
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:            r.ID,
			QuizID:        r.QuizID,
			Text:          r.Text,
			Options:       options,
			CorrectAnswer: r.CorrectAnswer,
			Position:      r.Position,
		})
	}
	return quiz, nil
}

type sessionRow struct {
	bun.BaseModel `bun:"table:quiz_sessions,alias:s"`

	ID           string    `bun:"id,pk"`
	UserID       string    `bun:"user_id,notnull"`
	QuizID       string    `bun:"quiz_id,notnull"`
	CurrentIndex int       `bun:"current_index"`
	Answers      string    `bun:"answers,notnull"`
	Status       string    `bun:"status,notnull"`
	StartedAt    time.Time `bun:"started_at,notnull"`
	CompletedAt  time.Time `bun:"completed_at,nullzero"`
}

func (r sessionRow) toDomain() (domain.QuizSession, error) {
	answers, err := decodeAnswers(r.Answers)
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("session %s: %w", r.ID, err)
	}
	return domain.QuizSession{
		ID:           r.ID,
		UserID:       r.UserID,
		QuizID:       r.QuizID,
		CurrentIndex: r.CurrentIndex,
		Answers:      answers,
		Status:       domain.SessionStatus(r.Status),
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
	}, nil
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	QuizID    string    `bun:"quiz_id,notnull"`
	SessionID string    `bun:"session_id,notnull"`
	Score     int       `bun:"score"`
	Passed    bool      `bun:"passed"`
	Answers   string    `bun:"answers,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`

	// NULL for conversational attempts; the unique index only binds keyed submissions.
	SubmissionKey string `bun:"submission_key,nullzero"`
}

func (r attemptRow) toDomain() (domain.QuizAttempt, error) {
	answers, err := decodeAnswers(r.Answers)
	if err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("attempt %s: %w", r.ID, err)
	}
	return domain.QuizAttempt{
		ID:            r.ID,
		UserID:        r.UserID,
		QuizID:        r.QuizID,
		SessionID:     r.SessionID,
		Score:         r.Score,
		Passed:        r.Passed,
		Answers:       answers,
		SubmissionKey: r.SubmissionKey,
		CreatedAt:     r.CreatedAt,
	}, nil
}

type walletTransactionRow struct {
	bun.BaseModel `bun:"table:wallet_transactions,alias:w"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id,notnull"`
	Amount      int64     `bun:"amount"`
	Type        string    `bun:"type,notnull"`
	Description string    `bun:"description"`
	AttemptID   string    `bun:"attempt_id,notnull"`
	ContentID   string    `bun:"content_id"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

func (r walletTransactionRow) toDomain() domain.WalletTransaction {
	return domain.WalletTransaction{
		ID:          r.ID,
		UserID:      r.UserID,
		Amount:      r.Amount,
		Type:        r.Type,
		Description: r.Description,
		AttemptID:   r.AttemptID,
		ContentID:   r.ContentID,
		CreatedAt:   r.CreatedAt,
	}
}

func encodeAnswers(a domain.Answers) (string, error) {
	if a == nil {
		a = domain.Answers{}
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	return string(raw), nil
}

func decodeAnswers(raw string) (domain.Answers, error) {
	answers := domain.Answers{}
	if raw == "" {
		return answers, nil
	}
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, err
	}
	return answers, nil
}
