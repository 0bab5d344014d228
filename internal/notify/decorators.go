package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
)

// Retrying retries failed sends with exponential backoff.
type Retrying struct {
	next       app.Notifier
	maxRetries uint64
	base       time.Duration
	log        *zap.Logger
}

func NewRetrying(next app.Notifier, maxRetries uint64, base time.Duration, log *zap.Logger) *Retrying {
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retrying{next: next, maxRetries: maxRetries, base: base, log: log}
}

func (r *Retrying) Send(ctx context.Context, msg domain.OutboundMessage) (domain.Receipt, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.base
	exp.MaxInterval = 5 * time.Second
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, r.maxRetries), ctx)

	receipt, err := backoff.RetryNotifyWithData(func() (domain.Receipt, error) {
		rc, err := r.next.Send(ctx, msg)
		if err != nil && ctx.Err() != nil {
			return rc, backoff.Permanent(err)
		}
		return rc, err
	}, policy, func(err error, wait time.Duration) {
		r.log.Warn("send failed, retrying", zap.String("to", msg.To), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		if errors.Is(err, domain.ErrDelivery) {
			return domain.Receipt{}, err
		}
		return domain.Receipt{}, fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	return receipt, nil
}

// RateLimited caps outbound throughput with a token bucket.
type RateLimited struct {
	next    app.Notifier
	limiter *rate.Limiter
}

func NewRateLimited(next app.Notifier, perSecond float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) Send(ctx context.Context, msg domain.OutboundMessage) (domain.Receipt, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: rate limit: %v", domain.ErrDelivery, err)
	}
	return r.next.Send(ctx, msg)
}

// FeedNotifier mirrors delivered messages onto the event feed so the demo chat can show them.
type FeedNotifier struct {
	next app.Notifier
	feed *app.Feed
}

func NewFeedNotifier(next app.Notifier, feed *app.Feed) *FeedNotifier {
	return &FeedNotifier{next: next, feed: feed}
}

func (f *FeedNotifier) Send(ctx context.Context, msg domain.OutboundMessage) (domain.Receipt, error) {
	receipt, err := f.next.Send(ctx, msg)
	if err != nil {
		return receipt, err
	}
	text := msg.Body
	if msg.MediaURL != "" {
		text += "\n" + msg.MediaURL
	}
	f.feed.Publish(app.Event{Type: app.EventMessageOutbound, Contact: StripWhatsAppPrefix(msg.To), Text: text})
	return receipt, nil
}
