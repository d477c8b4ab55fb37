package bus

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed MessageBus.
var ErrBusClosed = errors.New("message bus closed")

// MessageBus decouples operator channels from the bridge controller.
type MessageBus struct {
	inbound             chan InboundMessage
	outbound            chan OutboundMessage
	outboundSubscribers map[string][]func(context.Context, OutboundMessage)
	subscribersMu       sync.RWMutex
	done                chan struct{}
	closed              atomic.Bool
}

// NewMessageBus creates a new MessageBus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:             make(chan InboundMessage, 100),
		outbound:            make(chan OutboundMessage, 100),
		outboundSubscribers: make(map[string][]func(context.Context, OutboundMessage)),
		done:                make(chan struct{}),
	}
}

// PublishInbound publishes a message from a channel to the controller.
func (b *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	select {
	case b.inbound <- msg:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeInbound blocks for the next inbound message. It returns false once
// the bus is closed or ctx is done.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-b.inbound:
		return msg, ok
	case <-b.done:
		return InboundMessage{}, false
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound queues a message for the subscribers of msg.Channel.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	select {
	case b.outbound <- msg:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscribeOutbound subscribes to outbound messages for a specific channel.
func (b *MessageBus) SubscribeOutbound(channel string, callback func(context.Context, OutboundMessage)) {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()
	b.outboundSubscribers[channel] = append(b.outboundSubscribers[channel], callback)
}

// DispatchOutbound delivers outbound messages in order until the bus is
// closed or ctx is done. Run it in a goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.outbound:
			b.subscribersMu.RLock()
			subscribers := b.outboundSubscribers[msg.Channel]
			b.subscribersMu.RUnlock()

			if len(subscribers) == 0 {
				log.Printf("No subscriber for outbound channel %s", msg.Channel)
				continue
			}
			for _, cb := range subscribers {
				deliver(ctx, cb, msg)
			}
		case <-b.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func deliver(ctx context.Context, cb func(context.Context, OutboundMessage), msg OutboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Error in outbound subscriber callback: %v", r)
		}
	}()
	cb(ctx, msg)
}

// Close stops the dispatcher and rejects further publishes. Safe to call twice.
func (b *MessageBus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
}
