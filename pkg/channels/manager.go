package channels

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sellerbridge/sellerbridge/pkg/bus"
)

// Manager owns the enabled channels and routes outbound messages to them.
type Manager struct {
	bus      *bus.MessageBus
	channels map[string]Channel
	order    []string
}

func NewManager(messageBus *bus.MessageBus) *Manager {
	return &Manager{
		bus:      messageBus,
		channels: make(map[string]Channel),
	}
}

// Register adds ch and subscribes it to outbound messages addressed to it.
func (m *Manager) Register(ch Channel) {
	name := ch.Name()
	if _, ok := m.channels[name]; !ok {
		m.order = append(m.order, name)
	}
	m.channels[name] = ch
	m.bus.SubscribeOutbound(name, func(ctx context.Context, msg bus.OutboundMessage) {
		if _, err := ch.Send(ctx, msg); err != nil {
			log.Printf("Error sending %s message: %v", name, err)
		}
	})
}

func (m *Manager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// Names lists the registered channels in registration order.
func (m *Manager) Names() []string {
	return append([]string(nil), m.order...)
}

// StartAll starts every channel, stopping those already started on failure.
func (m *Manager) StartAll(ctx context.Context) error {
	for i, name := range m.order {
		if err := m.channels[name].Start(ctx); err != nil {
			for _, started := range m.order[:i] {
				_ = m.channels[started].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", name, err)
		}
		log.Printf("Channel %s started", name)
	}
	return nil
}

func (m *Manager) StopAll(ctx context.Context) error {
	var errs []error
	for _, name := range m.order {
		if err := m.channels[name].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Send delivers msg synchronously and returns its channel message id.
func (m *Manager) Send(ctx context.Context, msg bus.OutboundMessage) (string, error) {
	ch, ok := m.channels[msg.Channel]
	if !ok {
		return "", fmt.Errorf("unknown channel %q", msg.Channel)
	}
	return ch.Send(ctx, msg)
}

// Delete removes a message when the channel supports it. It reports false
// when the channel cannot delete messages.
func (m *Manager) Delete(ctx context.Context, channel, chatID, messageID string) (bool, error) {
	ch, ok := m.channels[channel]
	if !ok {
		return false, fmt.Errorf("unknown channel %q", channel)
	}
	deleter, ok := ch.(MessageDeleter)
	if !ok {
		return false, nil
	}
	return true, deleter.Delete(ctx, chatID, messageID)
}
