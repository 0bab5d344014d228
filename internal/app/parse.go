package app

import (
	"strconv"
	"strings"
	"unicode"

	"lesson-quiz-service/internal/domain"
)

// ParseAnswer maps raw reply text to a zero-based option index using the quiz encoding.
// Characters outside the encoding's symbol set are stripped first. It reports false when
// no usable symbol remains; range checks against the question happen in the caller.
func ParseAnswer(text string, encoding domain.AnswerEncoding) (int, bool) {
	switch encoding {
	case domain.EncodingLetter:
		return parseLetter(text)
	default:
		return parseNumber(text)
	}
}

func parseNumber(text string) (int, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, text)
	if digits == "" || len(digits) > 3 {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

func parseLetter(text string) (int, bool) {
	letters := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return unicode.ToUpper(r)
		}
		return -1
	}, text)
	if len(letters) != 1 {
		return 0, false
	}
	return int(letters[0] - 'A'), true
}

// AnswerSymbol renders the reply symbol for an option index.
func AnswerSymbol(encoding domain.AnswerEncoding, index int) string {
	if encoding == domain.EncodingLetter {
		return string(rune('A' + index))
	}
	return strconv.Itoa(index + 1)
}
