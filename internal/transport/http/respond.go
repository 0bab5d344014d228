package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"lesson-quiz-service/internal/domain"
)

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrEmptyQuiz):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStateConflict), errors.Is(err, domain.ErrAlreadyCredited):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeErr(w, status, err.Error())
}

// decode reads a JSON body into dst and validates its struct tags.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	if err := domain.Validator().Struct(dst); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}
