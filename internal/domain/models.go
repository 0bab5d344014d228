package domain

import "time"

// User is a channel participant identified by a phone/contact address.
type User struct {
	ID        string    `json:"id"`
	Contact   string    `json:"contact"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
}

// Content is an educational unit: one video and at most one quiz.
type Content struct {
	ID          string      `json:"id" validate:"required"`
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description"`
	Position    int         `json:"position" validate:"gte=0"`
	Active      bool        `json:"active"`
	Video       *VideoAsset `json:"video,omitempty"`
	QuizID      string      `json:"quizId,omitempty"`
}

// AssetStatus tracks a publishing backend's processing state.
type AssetStatus string

const (
	AssetPending    AssetStatus = "pending"
	AssetProcessing AssetStatus = "processing"
	AssetReady      AssetStatus = "ready"
	AssetError      AssetStatus = "error"
)

// VideoBackend names where a playable url came from.
type VideoBackend string

const (
	BackendYouTube VideoBackend = "youtube"
	BackendMux     VideoBackend = "mux"
	BackendDirect  VideoBackend = "direct"
)

// VideoAsset holds candidate playable urls per publishing backend.
type VideoAsset struct {
	ContentID      string      `json:"contentId"`
	YouTubeURL     string      `json:"youtubeUrl,omitempty" validate:"omitempty,url"`
	YouTubeVideoID string      `json:"youtubeVideoId,omitempty"`
	YouTubeStatus  AssetStatus `json:"youtubeStatus,omitempty"`
	MuxAssetID     string      `json:"muxAssetId,omitempty"`
	MuxPlaybackID  string      `json:"muxPlaybackId,omitempty"`
	MuxURL         string      `json:"muxUrl,omitempty" validate:"omitempty,url"`
	MuxStatus      AssetStatus `json:"muxStatus,omitempty"`
	DirectURL      string      `json:"directUrl,omitempty" validate:"omitempty,url"`
}

// URLFor returns the stored url for a backend, empty when absent.
func (v VideoAsset) URLFor(backend VideoBackend) string {
	switch backend {
	case BackendYouTube:
		return v.YouTubeURL
	case BackendMux:
		return v.MuxURL
	case BackendDirect:
		return v.DirectURL
	}
	return ""
}

// VideoLink is a resolved playable url.
type VideoLink struct {
	URL     string       `json:"url"`
	Backend VideoBackend `json:"backend"`
}

// AnswerEncoding is the symbol set users reply with.
type AnswerEncoding string

const (
	// EncodingNumeric accepts "1".."N"; the default for conversational quizzes.
	EncodingNumeric AnswerEncoding = "numeric"
	// EncodingLetter accepts "A".."Z"; kept for the two-option demo lesson.
	EncodingLetter AnswerEncoding = "letter"
)

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID            string   `json:"id" validate:"required"`
	QuizID        string   `json:"quizId"`
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options" validate:"min=2,dive,required"`
	CorrectAnswer int      `json:"correctAnswer" validate:"gte=0"`
	Position      int      `json:"position" validate:"gte=0"`
}

// Quiz is an ordered collection of questions attached to one content item.
// Questions are always held in position order; their slice index is the key of Answers.
type Quiz struct {
	ID             string         `json:"id" validate:"required"`
	ContentID      string         `json:"contentId" validate:"required"`
	Title          string         `json:"title" validate:"required"`
	Description    string         `json:"description,omitempty"`
	PassingScore   int            `json:"passingScore" validate:"gte=0,lte=100"`
	RewardCoins    int            `json:"rewardCoins" validate:"gte=0"`
	Active         bool           `json:"active"`
	AnswerEncoding AnswerEncoding `json:"answerEncoding" validate:"omitempty,oneof=numeric letter"`
	Questions      []Question     `json:"questions" validate:"dive"`
}

// Encoding returns the quiz encoding, defaulting to numeric.
func (q Quiz) Encoding() AnswerEncoding {
	if q.AnswerEncoding == "" {
		return EncodingNumeric
	}
	return q.AnswerEncoding
}

// SessionStatus is the lifecycle state of a quiz session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// QuizSession is a user's progress through one quiz.
type QuizSession struct {
	ID           string        `json:"id"`
	UserID       string        `json:"userId"`
	QuizID       string        `json:"quizId"`
	CurrentIndex int           `json:"currentIndex"`
	Answers      Answers       `json:"answers"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"startedAt"`
	CompletedAt  time.Time     `json:"completedAt,omitempty"`
}

// QuizAttempt is the immutable scored record of a completed session.
type QuizAttempt struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	QuizID    string    `json:"quizId"`
	SessionID string    `json:"sessionId"`
	Score     int       `json:"score"`
	Passed    bool      `json:"passed"`
	Answers   Answers   `json:"answers"`
	CreatedAt time.Time `json:"createdAt"`

	// SubmissionKey identifies the inbound delivery behind a whole-quiz submission.
	// At most one attempt exists per key.
	SubmissionKey string `json:"submissionKey,omitempty"`
}

// TransactionQuizReward tags ledger entries produced by passed quizzes.
const TransactionQuizReward = "quiz_reward"

// WalletTransaction is an immutable ledger credit.
type WalletTransaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Amount      int64     `json:"amount"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	AttemptID   string    `json:"attemptId"`
	ContentID   string    `json:"contentId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Summary is the result of completing a session.
type Summary struct {
	SessionID   string `json:"sessionId"`
	AttemptID   string `json:"attemptId"`
	QuizID      string `json:"quizId"`
	Correct     int    `json:"correct"`
	Total       int    `json:"total"`
	Score       int    `json:"score"`
	Passed      bool   `json:"passed"`
	Reward      int64  `json:"reward"`
	Balance     int64  `json:"balance"`
	Transaction string `json:"transactionId,omitempty"`
}

// OutboundMessage is what the notifier delivers.
type OutboundMessage struct {
	To       string `json:"to"`
	Body     string `json:"body"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

// Receipt acknowledges a delivered message.
type Receipt struct {
	Provider  string `json:"provider"`
	MessageID string `json:"messageId,omitempty"`
}

// InboundMessage is the transport-neutral inbound payload.
type InboundMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
	Name string `json:"name,omitempty"`
}

// Dataset is a catalog snapshot loaded by the seed command.
type Dataset struct {
	Contents []Content `json:"contents" validate:"dive"`
	Quizzes  []Quiz    `json:"quizzes" validate:"dive"`
}
