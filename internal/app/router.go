package app

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"lesson-quiz-service/internal/domain"
)

// Action is what the router did with an inbound message.
type Action string

const (
	ActionAnswer   Action = "answer"
	ActionStart    Action = "start"
	ActionHelp     Action = "help"
	ActionBalance  Action = "balance"
	ActionNoActive Action = "no_active"
	ActionIgnored  Action = "ignored"
)

var commands = map[string]Action{
	"QUIZ":    ActionStart,
	"START":   ActionStart,
	"EMPEZAR": ActionStart,
	"HELP":    ActionHelp,
	"AYUDA":   ActionHelp,
	"?":       ActionHelp,
	"BALANCE": ActionBalance,
	"SALDO":   ActionBalance,
	"POINTS":  ActionBalance,
}

// Router demultiplexes inbound channel messages: answers while a session is active,
// commands otherwise.
type Router struct {
	repo     Repository
	engine   *Engine
	contents ContentSource
	notifier Notifier
	feed     *Feed
	log      *zap.Logger
}

func NewRouter(repo Repository, engine *Engine, contents ContentSource, notifier Notifier, feed *Feed, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{repo: repo, engine: engine, contents: contents, notifier: notifier, feed: feed, log: log}
}

// RouteResult reports how a message was handled.
type RouteResult struct {
	Action    Action `json:"action"`
	Completed bool   `json:"completed"`
}

// Route handles one inbound message. Unknown text is answered with a notice, never an error;
// errors come only from storage or delivery.
func (r *Router) Route(ctx context.Context, msg domain.InboundMessage) (RouteResult, error) {
	contact := strings.TrimSpace(msg.From)
	if contact == "" {
		return RouteResult{Action: ActionIgnored}, nil
	}
	r.feed.Publish(Event{Type: EventMessageInbound, Contact: contact, Text: msg.Text})

	name := msg.Name
	if name == "" {
		name = contact
	}
	user, err := r.repo.UpsertUser(ctx, contact, name)
	if err != nil {
		return RouteResult{}, err
	}

	_, err = r.repo.LatestActiveSession(ctx, user.ID)
	switch {
	case err == nil:
		res, err := r.engine.Answer(ctx, contact, msg.Text)
		return RouteResult{Action: ActionAnswer, Completed: res.Completed}, err
	case !errors.Is(err, domain.ErrSessionNotFound):
		return RouteResult{}, err
	}

	action, ok := commands[strings.ToUpper(strings.TrimSpace(msg.Text))]
	if !ok {
		action = ActionNoActive
	}
	r.log.Debug("inbound command", zap.String("contact", contact), zap.String("action", string(action)))

	switch action {
	case ActionStart:
		return RouteResult{Action: ActionStart}, r.startDefault(ctx, contact)
	case ActionHelp:
		return RouteResult{Action: ActionHelp}, r.reply(ctx, contact, msgHelp)
	case ActionBalance:
		return RouteResult{Action: ActionBalance}, r.reply(ctx, contact, formatBalance(user))
	default:
		return RouteResult{Action: ActionNoActive}, r.reply(ctx, contact, msgNoActive)
	}
}

func (r *Router) startDefault(ctx context.Context, contact string) error {
	quizID, err := r.contents.DefaultQuizID(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		r.log.Warn("no active quiz to start", zap.String("contact", contact))
		return r.reply(ctx, contact, msgHelp)
	}
	if err != nil {
		return err
	}
	if _, err := r.engine.Start(ctx, contact, quizID); err != nil {
		if errors.Is(err, domain.ErrDelivery) {
			return err
		}
		r.log.Error("start quiz from command failed", zap.String("contact", contact), zap.Error(err))
		return r.reply(ctx, contact, msgFailure)
	}
	return nil
}

func (r *Router) reply(ctx context.Context, to, body string) error {
	if _, err := r.notifier.Send(ctx, domain.OutboundMessage{To: to, Body: body}); err != nil {
		if errors.Is(err, domain.ErrDelivery) {
			return err
		}
		return errors.Join(domain.ErrDelivery, err)
	}
	return nil
}
