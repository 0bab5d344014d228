// Package fixtures holds the demo catalog used by the seed command and tests.
package fixtures

import "lesson-quiz-service/internal/domain"

const (
	DemoContentID = "demo-content-1"
	DemoQuizID    = "demo-quiz-1"

	LetterContentID = "kraft-lesson"
	LetterQuizID    = "kraft-quick-quiz"
)

// Demo returns a fresh copy of the demo dataset: a five question numeric quiz
// (pass at 70, 50 points) and a one question A/B letter quiz.
func Demo() domain.Dataset {
	return domain.Dataset{
		Contents: []domain.Content{
			{
				ID:          DemoContentID,
				Title:       "Introduction to Kraft Singles",
				Description: "Learn about the ingredients and benefits of Kraft Singles",
				Position:    1,
				Active:      true,
				Video: &domain.VideoAsset{
					YouTubeURL:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
					YouTubeVideoID: "dQw4w9WgXcQ",
					YouTubeStatus:  domain.AssetReady,
					MuxStatus:      domain.AssetPending,
				},
			},
			{
				ID:          LetterContentID,
				Title:       "Kraft Singles: Real Cheese",
				Description: "Some \"cheeses\" are plastic imitations. Kraft Singles is real American cheese made with cow's milk.",
				Position:    2,
				Active:      true,
				Video: &domain.VideoAsset{
					DirectURL: "https://lactalis-demo.vercel.app/videos/Kraft_Singles_Commercial_Script.mp4",
				},
			},
		},
		Quizzes: []domain.Quiz{
			{
				ID:             DemoQuizID,
				ContentID:      DemoContentID,
				Title:          "Quiz: Kraft Singles",
				Description:    "Test what you know about Kraft Singles",
				PassingScore:   70,
				RewardCoins:    50,
				Active:         true,
				AnswerEncoding: domain.EncodingNumeric,
				Questions: []domain.Question{
					{
						ID:            "demo-q1",
						Text:          "What is the main ingredient of Kraft Singles?",
						Options:       []string{"Vegetable fat", "Cow's milk and calcium", "Artificial flavouring", "Water"},
						CorrectAnswer: 1,
					},
					{
						ID:            "demo-q2",
						Text:          "What sets Kraft Singles apart from imitations?",
						Options:       []string{"It is cheaper", "The orange colour", "It is real cheese", "It has more fat"},
						CorrectAnswer: 2,
						Position:      1,
					},
					{
						ID:            "demo-q3",
						Text:          "How many grams of protein are in one Kraft Singles slice?",
						Options:       []string{"2g", "4g", "6g", "8g"},
						CorrectAnswer: 2,
						Position:      2,
					},
					{
						ID:            "demo-q4",
						Text:          "Does Kraft Singles contain real dairy?",
						Options:       []string{"No, it is fully artificial", "Yes, it contains milk and calcium", "It only contains calcium", "It depends on the flavour"},
						CorrectAnswer: 1,
						Position:      3,
					},
					{
						ID:            "demo-q5",
						Text:          "What is the main benefit of Kraft Singles?",
						Options:       []string{"It is cheaper", "It is real cheese with calcium", "It needs no refrigeration", "It has more flavour"},
						CorrectAnswer: 1,
						Position:      4,
					},
				},
			},
			{
				ID:             LetterQuizID,
				ContentID:      LetterContentID,
				Title:          "Quick quiz: Kraft Singles",
				Description:    "A mum tells you: \"the other cheese is cheaper...\" What is the best answer?",
				PassingScore:   100,
				RewardCoins:    50,
				Active:         true,
				AnswerEncoding: domain.EncodingLetter,
				Questions: []domain.Question{
					{
						ID:   "kraft-q1",
						Text: "A mum tells you: \"the other cheese is cheaper...\" What is the best answer?",
						Options: []string{
							"\"Yes, but Kraft Singles tastes better\"",
							"\"I understand, but look: Kraft Singles has calcium and real milk protein. Imitations don't. What would you rather give your kids?\"",
						},
						CorrectAnswer: 1,
					},
				},
			},
		},
	}
}
