package app

import (
	"context"
	"errors"

	"lesson-quiz-service/internal/domain"
)

// Readiness reports whether a lesson can be dispatched end to end.
type Readiness struct {
	Ready     bool     `json:"ready"`
	Issues    []string `json:"issues"`
	ContentID string   `json:"contentId"`
	Title     string   `json:"title,omitempty"`
	VideoURL  string   `json:"videoUrl,omitempty"`
	QuizID    string   `json:"quizId,omitempty"`
	Questions int      `json:"questions"`
}

// CheckReadiness inspects content, video and quiz for contentID and lists what is missing.
// Only storage failures are returned as errors.
func CheckReadiness(ctx context.Context, contents ContentSource, videos VideoPublisher, catalog Catalog, contentID string) (Readiness, error) {
	r := Readiness{ContentID: contentID, Issues: []string{}}

	content, err := contents.GetContent(ctx, contentID)
	if errors.Is(err, domain.ErrNotFound) {
		r.Issues = append(r.Issues, "content not found, run the seed first")
		return r, nil
	}
	if err != nil {
		return Readiness{}, err
	}
	r.Title = content.Title

	link, err := videos.ResolveVideoURL(ctx, contentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		r.Issues = append(r.Issues, "no playable video url configured")
	case err != nil:
		return Readiness{}, err
	default:
		r.VideoURL = link.URL
		if link.Backend != domain.BackendYouTube {
			r.Issues = append(r.Issues, "youtube url not configured, falling back to "+string(link.Backend))
		}
	}

	if content.QuizID == "" {
		r.Issues = append(r.Issues, "quiz not found")
	} else {
		r.QuizID = content.QuizID
		quiz, err := catalog.GetQuizWithQuestions(ctx, content.QuizID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			r.Issues = append(r.Issues, "quiz not found")
		case err != nil:
			return Readiness{}, err
		default:
			r.Questions = len(quiz.Questions)
			if r.Questions == 0 {
				r.Issues = append(r.Issues, "quiz has no questions")
			}
		}
	}

	r.Ready = r.VideoURL != "" && r.Questions > 0
	return r, nil
}
