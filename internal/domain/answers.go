package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// NoAnswer marks a question without a recorded answer; it never matches a correct option.
const NoAnswer = -1

// Answers maps a zero-based question index to the zero-based option the user chose.
type Answers map[int]int

// Clone returns an independent copy; a nil map clones to an empty one.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Get returns the chosen option for a question or NoAnswer.
func (a Answers) Get(index int) int {
	if v, ok := a[index]; ok {
		return v
	}
	return NoAnswer
}

// Indexes returns the answered question indexes in ascending order.
func (a Answers) Indexes() []int {
	keys := make([]int, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Validate checks every key is a question of quiz and every value one of its options.
func (a Answers) Validate(quiz Quiz) error {
	for qi, oi := range a {
		if qi < 0 || qi >= len(quiz.Questions) {
			return fmt.Errorf("%w: question index %d out of range", ErrInvalidAnswers, qi)
		}
		if oi < 0 || oi >= len(quiz.Questions[qi].Options) {
			return fmt.Errorf("%w: option %d out of range for question %d", ErrInvalidAnswers, oi, qi)
		}
	}
	return nil
}

// MarshalJSON writes a JSON object with string keys so the column stays stable across dialects.
func (a Answers) MarshalJSON() ([]byte, error) {
	raw := make(map[string]int, len(a))
	for k, v := range a {
		raw[fmt.Sprint(k)] = v
	}
	return json.Marshal(raw)
}

// UnmarshalJSON accepts the object form written by MarshalJSON.
func (a *Answers) UnmarshalJSON(data []byte) error {
	var raw map[int]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode answers: %w", err)
	}
	out := make(Answers, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	*a = out
	return nil
}

// Evaluation is a scored answer map.
type Evaluation struct {
	Correct int
	Total   int
	Score   int
	Passed  bool
}

// Evaluate scores answers against quiz from the full answer map, never from running counters.
func Evaluate(quiz Quiz, answers Answers) Evaluation {
	total := len(quiz.Questions)
	correct := 0
	for i, q := range quiz.Questions {
		if answers.Get(i) == q.CorrectAnswer {
			correct++
		}
	}
	score := 0
	if total > 0 {
		score = int(math.Round(float64(100*correct) / float64(total)))
	}
	return Evaluation{
		Correct: correct,
		Total:   total,
		Score:   score,
		Passed:  score >= quiz.PassingScore,
	}
}
