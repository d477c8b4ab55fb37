package channels

import (
	"context"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sellerbridge/sellerbridge/pkg/bus"
)

// Channel is an operator messaging channel.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Send delivers msg and returns the channel-assigned message id, which
	// later replies thread onto.
	Send(ctx context.Context, msg bus.OutboundMessage) (string, error)
}

// MessageDeleter is implemented by channels that can remove a message,
// e.g. one carrying credentials.
type MessageDeleter interface {
	Delete(ctx context.Context, chatID, messageID string) error
}

// BaseChannel provides common functionality for channels.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowList []string
	running   atomic.Bool
}

func NewBaseChannel(name string, messageBus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       messageBus,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) setRunning(running bool) {
	c.running.Store(running)
}

// IsAllowed checks if a sender may operate the bridge. Sender ids may be
// compound "id|username"; allow entries may be an id, a username or "@username".
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart, userPart := senderID, ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		if senderID == allowed || idPart == trimmed || (userPart != "" && userPart == trimmed) {
			return true
		}
	}
	return false
}

// HandleMessage publishes an inbound message from an allowed sender.
func (c *BaseChannel) HandleMessage(ctx context.Context, msg bus.InboundMessage) {
	if !c.IsAllowed(msg.SenderID) {
		log.Printf("%s: ignoring message from %s", c.name, msg.SenderID)
		return
	}
	msg.Channel = c.name
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := c.bus.PublishInbound(ctx, msg); err != nil {
		log.Printf("%s: failed to publish inbound message: %v", c.name, err)
	}
}
