// Package notify delivers outbound channel messages through Twilio, the Meta Cloud API or
// the log, wrapped with retry, rate limiting and feed publishing.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/metrics"
)

const (
	ProviderTwilio = "twilio"
	ProviderMeta   = "meta"
	ProviderLog    = "log"
)

// Config selects and configures the provider.
type Config struct {
	Provider string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	MetaToken         string
	MetaPhoneNumberID string
	MetaAPIVersion    string
	MetaBaseURL       string

	RatePerSecond float64
	Burst         int
	MaxRetries    uint64
	RetryBase     time.Duration
	Timeout       time.Duration
}

// New builds the provider named by cfg and wraps it: feed publishing outermost, then rate
// limiting, then retries around the raw provider.
func New(cfg Config, feed *app.Feed, log *zap.Logger) (app.Notifier, error) {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var base app.Notifier
	switch cfg.Provider {
	case ProviderTwilio:
		t, err := NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
		if err != nil {
			return nil, err
		}
		base = t
	case ProviderMeta:
		m, err := NewMeta(MetaConfig{
			Token:         cfg.MetaToken,
			PhoneNumberID: cfg.MetaPhoneNumberID,
			APIVersion:    cfg.MetaAPIVersion,
			BaseURL:       cfg.MetaBaseURL,
		}, &http.Client{Timeout: timeout})
		if err != nil {
			return nil, err
		}
		base = m
	case ProviderLog, "":
		base = NewLog(log)
	default:
		return nil, fmt.Errorf("unknown notifier provider %q", cfg.Provider)
	}

	var n app.Notifier = base
	if cfg.MaxRetries > 0 {
		n = NewRetrying(n, cfg.MaxRetries, cfg.RetryBase, log)
	}
	if cfg.RatePerSecond > 0 {
		n = NewRateLimited(n, cfg.RatePerSecond, cfg.Burst)
	}
	log.Info("notifier ready", zap.String("provider", providerName(cfg.Provider)))
	return NewFeedNotifier(n, feed), nil
}

func providerName(p string) string {
	if p == "" {
		return ProviderLog
	}
	return p
}

// deliveryError wraps a provider failure as domain.ErrDelivery and counts it.
func deliveryError(provider string, err error) error {
	metrics.NotifierSends.WithLabelValues(provider, "error").Inc()
	return fmt.Errorf("%w: %s: %v", domain.ErrDelivery, provider, err)
}

func delivered(provider, id string) domain.Receipt {
	metrics.NotifierSends.WithLabelValues(provider, "ok").Inc()
	return domain.Receipt{Provider: provider, MessageID: id}
}

// Func adapts a function to app.Notifier.
type Func func(ctx context.Context, msg domain.OutboundMessage) (domain.Receipt, error)

func (f Func) Send(ctx context.Context, msg domain.OutboundMessage) (domain.Receipt, error) {
	return f(ctx, msg)
}
