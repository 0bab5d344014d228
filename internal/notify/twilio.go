package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"lesson-quiz-service/internal/domain"
)

// DefaultTwilioFrom is the Twilio WhatsApp sandbox sender.
const DefaultTwilioFrom = "whatsapp:+14155238886"

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Twilio sends WhatsApp messages through the Twilio REST API.
type Twilio struct {
	api  messageCreator
	from string
}

func NewTwilio(accountSID, authToken, from string) (*Twilio, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio account sid and auth token must be configured")
	}
	if from == "" {
		from = DefaultTwilioFrom
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Twilio{api: client.Api, from: WhatsAppAddress(from)}, nil
}

// Send has no context support in the Twilio SDK; a cancelled ctx only short-circuits
// before the call.
func (t *Twilio) Send(ctx context.Context, msg domain.OutboundMessage) (domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, deliveryError(ProviderTwilio, err)
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(WhatsAppAddress(msg.To))
	params.SetFrom(t.from)
	params.SetBody(msg.Body)
	if msg.MediaURL != "" {
		params.SetMediaUrl([]string{msg.MediaURL})
	}
	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return domain.Receipt{}, deliveryError(ProviderTwilio, err)
	}
	id := ""
	if resp != nil && resp.Sid != nil {
		id = *resp.Sid
	}
	return delivered(ProviderTwilio, id), nil
}

// WhatsAppAddress prefixes a phone number with "whatsapp:" and a leading "+".
func WhatsAppAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return "whatsapp:" + phone
}

// StripWhatsAppPrefix turns a Twilio sender address back into a contact.
func StripWhatsAppPrefix(addr string) string {
	return strings.TrimPrefix(strings.TrimSpace(addr), "whatsapp:")
}
