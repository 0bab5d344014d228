package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/notify"
)

func (h *handlers) twilioLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Twilio webhook endpoint is active"})
}

// twilioInbound handles the form-encoded WhatsApp messages Twilio forwards.
func (h *handlers) twilioInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid form body")
		return
	}
	from := notify.StripWhatsAppPrefix(r.PostForm.Get("From"))
	body := r.PostForm.Get("Body")
	if from == "" || body == "" {
		writeErr(w, http.StatusBadRequest, "missing From or Body")
		return
	}

	res, err := h.Router.Route(r.Context(), domain.InboundMessage{
		From: from,
		Text: body,
		Name: r.PostForm.Get("ProfileName"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "action": res.Action, "completed": res.Completed})
}

// whatsappVerify answers the Meta subscription handshake.
func (h *handlers) whatsappVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if h.VerifyToken == "" || q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.VerifyToken {
		writeErr(w, http.StatusForbidden, "verification failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

type metaWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []metaMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type metaMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type         string `json:"type"`
		FlowToken    string `json:"flow_token"`
		ResponseJSON string `json:"response_json"`
		NfmReply     *struct {
			ResponseJSON string `json:"response_json"`
		} `json:"nfm_reply"`
	} `json:"interactive"`
}

// whatsappInbound processes Cloud API notifications. Text goes to the router, completed flows
// are scored in one go, keyed by message id so a redelivered reply is recorded once.
// Failures are logged per message and the batch is still acknowledged.
func (h *handlers) whatsappInbound(w http.ResponseWriter, r *http.Request) {
	var payload metaWebhook
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	processed := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if err := h.handleMetaMessage(r, msg, names[msg.From]); err != nil {
					h.log.Warn("whatsapp message failed",
						zap.String("from", msg.From),
						zap.String("message_id", msg.ID),
						zap.Error(err))
					continue
				}
				processed++
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "processed": processed})
}

func (h *handlers) handleMetaMessage(r *http.Request, msg metaMessage, name string) error {
	switch {
	case msg.Type == "text" && msg.Text != nil:
		_, err := h.Router.Route(r.Context(), domain.InboundMessage{From: msg.From, Text: msg.Text.Body, Name: name})
		return err
	case msg.Type == "interactive" && msg.Interactive != nil && msg.Interactive.Type == "nfm_reply":
		return h.completeFlow(r, msg)
	default:
		return nil
	}
}

// completeFlow scores a WhatsApp Flow reply. The flow token comes either next to the
// response or inside it.
func (h *handlers) completeFlow(r *http.Request, msg metaMessage) error {
	i := msg.Interactive
	response := i.ResponseJSON
	if response == "" && i.NfmReply != nil {
		response = i.NfmReply.ResponseJSON
	}
	if response == "" {
		return errors.New("nfm_reply without response_json")
	}
	token := i.FlowToken
	if token == "" {
		var inner struct {
			FlowToken string `json:"flow_token"`
		}
		if err := json.Unmarshal([]byte(response), &inner); err == nil {
			token = inner.FlowToken
		}
	}
	tok, err := app.ParseFlowToken(token)
	if err != nil {
		return err
	}
	quiz, err := h.Catalog.GetQuizWithQuestions(r.Context(), tok.QuizID)
	if err != nil {
		return err
	}
	answers, err := app.ParseFlowResponse([]byte(response), quiz)
	if err != nil {
		return err
	}
	summary, err := h.Engine.SubmitAnswers(r.Context(), strings.TrimSpace(msg.From), quiz.ID, answers, flowSubmissionKey(msg.ID, token, response))
	if errors.Is(err, domain.ErrStateConflict) {
		h.log.Info("flow reply already recorded", zap.String("from", msg.From), zap.String("message_id", msg.ID))
		return nil
	}
	if err != nil {
		return err
	}
	h.log.Info("flow quiz completed",
		zap.String("from", msg.From),
		zap.String("quiz_id", quiz.ID),
		zap.Int("score", summary.Score),
		zap.Bool("passed", summary.Passed))
	return nil
}

// flowSubmissionKey prefers the channel message id and falls back to a digest of the reply.
func flowSubmissionKey(messageID, token, response string) string {
	if messageID != "" {
		return "wa:" + messageID
	}
	sum := sha256.Sum256([]byte(token + "\n" + response))
	return "flow:" + hex.EncodeToString(sum[:])
}

type muxEvent struct {
	Type string       `json:"type"`
	Data app.MuxAsset `json:"data"`
}

func (h *handlers) muxEvent(w http.ResponseWriter, r *http.Request) {
	var ev muxEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid mux event")
		return
	}
	if ev.Type != "video.asset.ready" {
		writeJSON(w, http.StatusOK, map[string]any{"received": true, "ignored": ev.Type})
		return
	}
	asset, err := h.Videos.MuxAssetReady(r.Context(), ev.Data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "asset": asset})
}
