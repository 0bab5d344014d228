package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validator exposes the shared validator for transport payloads.
func Validator() *validator.Validate {
	return validate
}

// Validate checks quiz shape and the correct-answer invariant of every question.
func (q Quiz) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: quiz %s: %v", ErrInvalidInput, q.ID, err)
	}
	for i, question := range q.Questions {
		if question.CorrectAnswer >= len(question.Options) {
			return fmt.Errorf("%w: quiz %s question %d: correct answer %d outside %d options",
				ErrInvalidInput, q.ID, i, question.CorrectAnswer, len(question.Options))
		}
	}
	return nil
}

// Validate checks content fields and its video urls.
func (c Content) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: content %s: %v", ErrInvalidInput, c.ID, err)
	}
	return nil
}
