package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lesson-quiz-service/internal/domain"
)

// FlowVersion is the WhatsApp Flow JSON version the export targets.
const FlowVersion = "6.0"

type Flow struct {
	Version string         `json:"version"`
	Screens []FlowScreen   `json:"screens"`
	Data    map[string]any `json:"data"`
}

type FlowScreen struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Data       map[string]any  `json:"data,omitempty"`
	Components []FlowComponent `json:"components,omitempty"`
	Actions    []FlowAction    `json:"actions"`
}

type FlowComponent struct {
	Type    string       `json:"type"`
	Name    string       `json:"name"`
	Options []FlowOption `json:"options"`
}

type FlowOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type FlowAction struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// BuildFlow renders quiz as an intro screen, one screen per question and a submit screen.
// Option values are zero-based indexes, the same index space the engine stores.
func BuildFlow(quiz domain.Quiz) (Flow, error) {
	if len(quiz.Questions) == 0 {
		return Flow{}, fmt.Errorf("flow for quiz %s: %w", quiz.ID, domain.ErrEmptyQuiz)
	}
	description := quiz.Description
	if description == "" {
		description = "Complete the quiz to earn " + RewardUnit
	}

	screens := make([]FlowScreen, 0, len(quiz.Questions)+2)
	screens = append(screens, FlowScreen{
		ID:    "QUIZ_INTRO",
		Title: quiz.Title,
		Data: map[string]any{
			"quiz_description": description,
			"total_questions":  len(quiz.Questions),
			"passing_score":    quiz.PassingScore,
			"reward_coins":     quiz.RewardCoins,
		},
		Actions: []FlowAction{{
			ID:      "start_quiz",
			Type:    "complete",
			Payload: map[string]any{"screen": questionScreen(0)},
		}},
	})

	for i, q := range quiz.Questions {
		next := "SUBMIT"
		if i < len(quiz.Questions)-1 {
			next = questionScreen(i + 1)
		}
		options := make([]FlowOption, len(q.Options))
		for j, text := range q.Options {
			options[j] = FlowOption{
				ID:    "option_" + strconv.Itoa(j),
				Title: text,
				Type:  "radio",
				Value: strconv.Itoa(j),
			}
		}
		screens = append(screens, FlowScreen{
			ID:    questionScreen(i),
			Title: q.Text,
			Data: map[string]any{
				"question_id": q.ID,
				"options":     q.Options,
			},
			Components: []FlowComponent{{Type: "RadioButtonsGroup", Name: "answer", Options: options}},
			Actions: []FlowAction{{
				ID:   "next",
				Type: "complete",
				Payload: map[string]any{
					"screen":      next,
					"answer":      "{{answer}}",
					"question_id": q.ID,
				},
			}},
		})
	}

	screens = append(screens, FlowScreen{
		ID:    "SUBMIT",
		Title: "Quiz completed!",
		Data:  map[string]any{"message": "Thanks for completing the quiz. Your answers are being scored."},
		Actions: []FlowAction{{
			ID:      "submit",
			Type:    "complete",
			Payload: map[string]any{"action": "submit_quiz"},
		}},
	})

	return Flow{Version: FlowVersion, Screens: screens, Data: map[string]any{}}, nil
}

func questionScreen(index int) string {
	return "QUESTION_" + strconv.Itoa(index+1)
}

// FlowToken is the context a flow message carries back in its reply.
type FlowToken struct {
	QuizID    string `json:"quiz_id"`
	ContentID string `json:"content_id"`
}

// ParseFlowToken decodes the flow_token of an nfm_reply.
func ParseFlowToken(raw string) (FlowToken, error) {
	var tok FlowToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return FlowToken{}, fmt.Errorf("%w: flow token: %v", domain.ErrInvalidInput, err)
	}
	if tok.QuizID == "" {
		return FlowToken{}, fmt.Errorf("%w: flow token without quiz_id", domain.ErrInvalidInput)
	}
	return tok, nil
}

type flowResponse struct {
	Screens []struct {
		ID   string `json:"id"`
		Data struct {
			Answer json.RawMessage `json:"answer"`
		} `json:"data"`
	} `json:"screens"`
	Answers map[string]json.RawMessage `json:"answers"`
}

// ParseFlowResponse extracts a typed answer map from a completed flow. Answers come either
// as QUESTION_n screens or, failing that, as an answers object keyed by question id.
// Unknown screens and question ids are skipped; malformed values are rejected.
func ParseFlowResponse(raw []byte, quiz domain.Quiz) (domain.Answers, error) {
	var resp flowResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: flow response: %v", domain.ErrInvalidAnswers, err)
	}

	answers := domain.Answers{}
	for _, screen := range resp.Screens {
		n, ok := strings.CutPrefix(screen.ID, "QUESTION_")
		if !ok || len(screen.Data.Answer) == 0 {
			continue
		}
		idx, err := strconv.Atoi(n)
		if err != nil || idx < 1 || idx > len(quiz.Questions) {
			continue
		}
		v, err := flowValue(screen.Data.Answer)
		if err != nil {
			return nil, err
		}
		answers[idx-1] = v
	}

	if len(answers) == 0 && len(resp.Answers) > 0 {
		byID := make(map[string]int, len(quiz.Questions))
		for i, q := range quiz.Questions {
			byID[q.ID] = i
		}
		for id, rawValue := range resp.Answers {
			idx, ok := byID[id]
			if !ok {
				continue
			}
			v, err := flowValue(rawValue)
			if err != nil {
				return nil, err
			}
			answers[idx] = v
		}
	}

	if err := answers.Validate(quiz); err != nil {
		return nil, err
	}
	return answers, nil
}

// flowValue accepts both 2 and "2".
func flowValue(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%w: answer %s", domain.ErrInvalidAnswers, raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: answer %q", domain.ErrInvalidAnswers, s)
	}
	return n, nil
}
