package app_test

import (
	"strings"
	"testing"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/fixtures"
)

func TestFormatQuestionIsDeterministic(t *testing.T) {
	quiz := fixtures.Demo().Quizzes[0]
	first, err := app.FormatQuestion(quiz, 2)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	second, _ := app.FormatQuestion(quiz, 2)
	if first != second {
		t.Fatalf("expected identical output")
	}
	for _, want := range []string{"*Question 3/5:*", "Reply with the number", "1️⃣ 2g", "4️⃣ 8g"} {
		if !strings.Contains(first, want) {
			t.Fatalf("expected %q in %q", want, first)
		}
	}
}

func TestFormatQuestionLetterLabels(t *testing.T) {
	quiz := fixtures.Demo().Quizzes[1]
	body, err := app.FormatQuestion(quiz, 0)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.Contains(body, "*A)*") || !strings.Contains(body, "*B)*") || !strings.Contains(body, "letter") {
		t.Fatalf("expected letter labels, got %q", body)
	}
}

func TestFormatQuestionOutOfRange(t *testing.T) {
	quiz := domain.Quiz{ID: "q"}
	if _, err := app.FormatQuestion(quiz, 0); err == nil {
		t.Fatalf("expected out of range error")
	}
}
