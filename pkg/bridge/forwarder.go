package bridge

import (
	"context"
	"fmt"
	"log"

	"github.com/sellerbridge/sellerbridge/pkg/bus"
	"github.com/sellerbridge/sellerbridge/pkg/correlation"
)

// Sender delivers a message and returns its channel message id.
type Sender interface {
	Send(ctx context.Context, msg bus.OutboundMessage) (string, error)
}

// Forwarder turns new customer messages into operator notifications. It is
// the only writer of correlation entries. Each message is sent at most once.
type Forwarder struct {
	store     *correlation.Store
	out       Sender
	channel   string
	chatID    string
	storeName string
}

func NewForwarder(store *correlation.Store, out Sender, channel, chatID, storeName string) *Forwarder {
	return &Forwarder{
		store:     store,
		out:       out,
		channel:   channel,
		chatID:    chatID,
		storeName: storeName,
	}
}

// Forward creates the correlation entry, sends the notification and binds
// the returned notification id to the token.
func (f *Forwarder) Forward(ctx context.Context, msg correlation.ExternalMessage) (string, error) {
	token := f.store.Create(msg)

	id, err := f.out.Send(ctx, bus.OutboundMessage{
		Channel: f.channel,
		ChatID:  f.chatID,
		Content: FormatNotification(msg, token, f.storeName),
	})
	if err != nil {
		f.store.Discard(token)
		return "", fmt.Errorf("send notification for %s: %w", token, err)
	}

	if err := f.store.BindOutboundID(token, id); err != nil {
		f.store.Discard(token)
		return "", fmt.Errorf("bind notification for %s: %w", token, err)
	}
	log.Printf("Forwarded message from %s as %s", msg.Sender, token)
	return token, nil
}

// Handle adapts Forward to the poller handler signature.
func (f *Forwarder) Handle(ctx context.Context, msg correlation.ExternalMessage) error {
	_, err := f.Forward(ctx, msg)
	return err
}
