package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"lesson-quiz-service/internal/domain"
)

// MetaConfig addresses the WhatsApp Cloud API.
type MetaConfig struct {
	Token         string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string
}

// Meta sends messages with the WhatsApp Cloud API (Graph API /{phone_number_id}/messages).
type Meta struct {
	cfg    MetaConfig
	client *http.Client
}

func NewMeta(cfg MetaConfig, client *http.Client) (*Meta, error) {
	if cfg.Token == "" || cfg.PhoneNumberID == "" {
		return nil, errors.New("meta access token and phone number id must be configured")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v21.0"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Meta{cfg: cfg, client: client}, nil
}

type metaText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type metaMedia struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type metaRequest struct {
	MessagingProduct string     `json:"messaging_product"`
	RecipientType    string     `json:"recipient_type"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             *metaText  `json:"text,omitempty"`
	Video            *metaMedia `json:"video,omitempty"`
}

type metaResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (m *Meta) Send(ctx context.Context, msg domain.OutboundMessage) (domain.Receipt, error) {
	req := metaRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               strings.TrimPrefix(StripWhatsAppPrefix(msg.To), "+"),
	}
	if msg.MediaURL != "" {
		req.Type = "video"
		req.Video = &metaMedia{Link: msg.MediaURL, Caption: msg.Body}
	} else {
		req.Type = "text"
		req.Text = &metaText{Body: msg.Body, PreviewURL: strings.Contains(msg.Body, "http")}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.Receipt{}, deliveryError(ProviderMeta, err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(m.cfg.BaseURL, "/"), m.cfg.APIVersion, m.cfg.PhoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Receipt{}, deliveryError(ProviderMeta, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.cfg.Token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return domain.Receipt{}, deliveryError(ProviderMeta, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Receipt{}, deliveryError(ProviderMeta, err)
	}

	var out metaResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode >= 300 {
		reason := resp.Status
		if out.Error != nil && out.Error.Message != "" {
			reason = fmt.Sprintf("%s (code %d)", out.Error.Message, out.Error.Code)
		}
		return domain.Receipt{}, deliveryError(ProviderMeta, errors.New(reason))
	}
	id := ""
	if len(out.Messages) > 0 {
		id = out.Messages[0].ID
	}
	return delivered(ProviderMeta, id), nil
}
