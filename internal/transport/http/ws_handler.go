package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
)

// WSHandler is a browser chat simulator: it plays the user's side of the WhatsApp
// conversation and streams everything the service does for that contact.
type WSHandler struct {
	router   *app.Router
	feed     *app.Feed
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(router *app.Router, feed *app.Feed, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		router: router,
		feed:   feed,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type textPayload struct {
	Text string `json:"text"`
}

type outboundFrame[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinedPayload struct {
	Contact string `json:"contact"`
}

// ServeWS upgrades the request and bridges the socket to the router and the event feed.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	contact := r.URL.Query().Get("contact")
	name := r.URL.Query().Get("name")
	if contact == "" {
		http.Error(w, "missing contact", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := h.feed.Subscribe(contact)
	defer cancel()

	send := make(chan outboundFrame[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// single writer: gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		broken := false
		for msg := range send {
			if broken {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.String("contact", contact), zap.Error(err))
				// unblock the reader; keep draining so no sender gets stuck
				_ = conn.Close()
				broken = true
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundFrame[any]{Type: "event", Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundFrame[any]{Type: "joined", Payload: joinedPayload{Contact: contact}}

	for {
		var inbound inboundFrame
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "message":
			var payload textPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundFrame[any]{Type: "error", Payload: errorPayload{Message: "invalid message payload"}}
				continue
			}
			res, err := h.router.Route(r.Context(), domain.InboundMessage{From: contact, Text: payload.Text, Name: name})
			if err != nil {
				send <- outboundFrame[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundFrame[any]{Type: "routed", Payload: res}
		default:
			send <- outboundFrame[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}
