package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/fixtures"
)

// quizFlow exports the WhatsApp Flow definition of a quiz.
func (h *handlers) quizFlow(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.Catalog.GetQuizWithQuestions(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	flow, err := app.BuildFlow(quiz)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

type dispatchRequest struct {
	Contact   string `json:"contact" validate:"required"`
	ContentID string `json:"contentId"`
}

func (h *handlers) dispatchLesson(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ContentID == "" {
		req.ContentID = fixtures.DemoContentID
	}
	res, err := h.Dispatcher.Dispatch(r.Context(), req.Contact, req.ContentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type startRequest struct {
	Contact string `json:"contact" validate:"required"`
}

// startQuiz starts a quiz right away, skipping the video and the delay.
func (h *handlers) startQuiz(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.Start(r.Context(), req.Contact, chi.URLParam(r, "quizID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// seed loads the posted dataset, or the demo catalog when the body is empty.
func (h *handlers) seed(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "unreadable body")
		return
	}
	data := fixtures.Demo()
	if len(raw) > 0 {
		data = domain.Dataset{}
		if err := json.Unmarshal(raw, &data); err != nil {
			h.fail(w, r, errors.Join(domain.ErrInvalidInput, err))
			return
		}
	}
	res, err := h.Seed(r.Context(), data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) checkData(w http.ResponseWriter, r *http.Request) {
	contentID := r.URL.Query().Get("contentId")
	if contentID == "" {
		contentID = fixtures.DemoContentID
	}
	res, err := app.CheckReadiness(r.Context(), h.Contents, h.Videos, h.Catalog, contentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type videoURLRequest struct {
	ContentID      string `json:"contentId"`
	YouTubeURL     string `json:"youtubeUrl" validate:"omitempty,url"`
	YouTubeVideoID string `json:"youtubeVideoId"`
}

func (h *handlers) setVideoURL(w http.ResponseWriter, r *http.Request) {
	var req videoURLRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ContentID == "" {
		req.ContentID = fixtures.DemoContentID
	}
	asset, err := h.Videos.SetYouTubeVideo(r.Context(), req.ContentID, req.YouTubeURL, req.YouTubeVideoID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *handlers) wallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.Ledger.Wallet(r.Context(), chi.URLParam(r, "contact"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Scheduler.Pending(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *handlers) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	ok, err := h.Scheduler.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, "job "+id+" not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
