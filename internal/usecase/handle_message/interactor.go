// Package handle_message is the ordered step every chat line goes through:
// fill in the channel, show it on the overlay feed, then route it.
package handle_message

import (
	"context"

	"djBot/internal/domain"
)

type Router interface {
	Handle(ctx context.Context, msg domain.Message, out domain.OutgoingMessagePort) error
}

type ChatPublisher interface {
	PublishChat(msg domain.Message)
}

// ChannelDefaults names the channel a platform falls back to when an adapter
// leaves it empty.
type ChannelDefaults func(p domain.Platform) string

type Interactor struct {
	router    Router
	out       domain.OutgoingMessagePort
	publisher ChatPublisher
	defaults  ChannelDefaults
}

func NewInteractor(out domain.OutgoingMessagePort, router Router, publisher ChatPublisher, defaults ChannelDefaults) *Interactor {
	return &Interactor{
		router:    router,
		out:       out,
		publisher: publisher,
		defaults:  defaults,
	}
}

func (uc *Interactor) Handle(ctx context.Context, msg domain.Message) error {
	if msg.ChannelID == "" && uc.defaults != nil {
		msg.ChannelID = uc.defaults(msg.Platform)
	}
	if uc.publisher != nil {
		uc.publisher.PublishChat(msg)
	}
	return uc.router.Handle(ctx, msg, uc.out)
}
