package app

import (
	"fmt"
	"strconv"
	"strings"

	"lesson-quiz-service/internal/domain"
)

// RewardUnit is how reward points are named in channel messages.
const RewardUnit = "L-Coins"

var keycaps = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// FormatQuestion renders question index of quiz as channel text. Same input, same output.
func FormatQuestion(quiz domain.Quiz, index int) (string, error) {
	if index < 0 || index >= len(quiz.Questions) {
		return "", fmt.Errorf("question index %d out of range for quiz %s", index, quiz.ID)
	}
	question := quiz.Questions[index]
	encoding := quiz.Encoding()

	var b strings.Builder
	fmt.Fprintf(&b, "*Question %d/%d:*\n\n", index+1, len(quiz.Questions))
	b.WriteString(question.Text)
	b.WriteString("\n\n")
	b.WriteString(replyHint(encoding))
	b.WriteString("\n\n")
	for i, option := range question.Options {
		b.WriteString(optionLabel(encoding, i))
		b.WriteString(" ")
		b.WriteString(option)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// formatIntro prefixes the first question of a fresh session.
func formatIntro(quiz domain.Quiz) string {
	return fmt.Sprintf("📝 *Quiz time: %s*\n\nAnswer these questions to earn %s:\n\n", quiz.Title, RewardUnit)
}

func optionLabel(encoding domain.AnswerEncoding, index int) string {
	if encoding == domain.EncodingLetter {
		return "*" + AnswerSymbol(encoding, index) + ")*"
	}
	if index < len(keycaps) {
		return keycaps[index]
	}
	return strconv.Itoa(index+1) + "."
}

func replyHint(encoding domain.AnswerEncoding) string {
	if encoding == domain.EncodingLetter {
		return "Reply with the letter of your option:"
	}
	return "Reply with the number of your option:"
}

// formatInvalidAnswer lists the accepted symbols for the current question.
func formatInvalidAnswer(encoding domain.AnswerEncoding, options int) string {
	symbols := make([]string, options)
	for i := range symbols {
		symbols[i] = AnswerSymbol(encoding, i)
	}
	list := strings.Join(symbols, ", ")
	if options > 1 {
		list = strings.Join(symbols[:options-1], ", ") + " or " + symbols[options-1]
	}
	noun := "number"
	if encoding == domain.EncodingLetter {
		noun = "letter"
	}
	return fmt.Sprintf("❌ Please reply only with the %s of your option (%s).", noun, list)
}

// formatFeedback names the correct option whatever the outcome.
func formatFeedback(question domain.Question, correct bool) string {
	right := question.Options[question.CorrectAnswer]
	if correct {
		return fmt.Sprintf("✅ Correct!\n\n%s\n\n\"%s\" is the right answer.", question.Text, right)
	}
	return fmt.Sprintf("❌ Incorrect.\n\nThe correct answer is: %s\n\n%s", right, question.Text)
}

func formatSummary(s domain.Summary) string {
	var b strings.Builder
	b.WriteString("🎉 *Quiz completed!*\n\n*Results:*\n\n")
	fmt.Fprintf(&b, "Correct answers: %d/%d\n\n", s.Correct, s.Total)
	fmt.Fprintf(&b, "Score: %d%%\n", s.Score)
	if s.Passed {
		b.WriteString("Status: PASSED ✅\n\n")
	} else {
		b.WriteString("Status: NOT PASSED ❌\n\n")
	}
	if s.Reward > 0 {
		fmt.Fprintf(&b, "You earned %d %s! 🪙\n\n", s.Reward, RewardUnit)
	} else if !s.Passed {
		fmt.Fprintf(&b, "Try again to earn %s\n\n", RewardUnit)
	}
	fmt.Fprintf(&b, "Current balance: %d %s", s.Balance, RewardUnit)
	return b.String()
}

func formatVideo(content domain.Content, link domain.VideoLink, reward int) string {
	description := content.Description
	if description == "" {
		description = "Watch the whole video and earn points"
	}
	return fmt.Sprintf("🎬 *%s*\n\n%s\n\n%s\n\n🪙 Reward: %d %s", content.Title, description, link.URL, reward, RewardUnit)
}

const (
	msgHelp     = "👋 Hi! To take a quiz, first watch a training video. Reply QUIZ to start the current quiz, or BALANCE to see your " + RewardUnit + "."
	msgNoActive = "You have no active quiz right now. Reply QUIZ to start one or HELP for options."
	msgFailure  = "⚠️ Something went wrong on our side. Please try again in a moment."
)

func formatBalance(user domain.User) string {
	return fmt.Sprintf("💰 Your balance: %d %s", user.Balance, RewardUnit)
}
