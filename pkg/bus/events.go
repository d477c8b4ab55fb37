package bus

import (
	"time"
)

// InboundMessage is a message received from an operator channel.
type InboundMessage struct {
	Channel   string `json:"channel"`
	SenderID  string `json:"sender_id"`
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	// ReplyToID is the channel id of the message this one replies to.
	ReplyToID string `json:"reply_to_id,omitempty"`
	// ReplyToText is the text of the replied-to message, when the channel exposes it.
	ReplyToText string            `json:"reply_to_text,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata"`
}

// IsReply reports whether the message threads onto an earlier one.
func (m *InboundMessage) IsReply() bool {
	return m.ReplyToID != ""
}

// ConversationKey identifies the operator chat, e.g. for pending prompts.
func (m *InboundMessage) ConversationKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage is a message to send to an operator channel.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
	ReplyTo string `json:"reply_to,omitempty"`
}
