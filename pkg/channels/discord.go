package channels

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sellerbridge/sellerbridge/pkg/bus"
	"github.com/sellerbridge/sellerbridge/pkg/config"
)

const sendTimeout = 10 * time.Second

// DiscordChannel implements an operator channel on a Discord text channel.
// Replies thread onto notifications through message references.
type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	config  config.DiscordConfig
	ctx     context.Context
}

func NewDiscordChannel(cfg config.DiscordConfig, messageBus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", messageBus, cfg.AllowFrom),
		session:     session,
		config:      cfg,
		ctx:         context.Background(),
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	c.ctx = ctx
	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	c.setRunning(true)

	if u := c.session.State.User; u != nil {
		log.Printf("Discord bot connected as %s", u.Username)
	}
	return nil
}

func (c *DiscordChannel) Stop(_ context.Context) error {
	c.setRunning(false)
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) (string, error) {
	if !c.IsRunning() {
		return "", errors.New("discord bot not running")
	}
	if msg.ChatID == "" {
		return "", errors.New("channel ID is empty")
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	type result struct {
		m   *discordgo.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		var (
			m   *discordgo.Message
			err error
		)
		if msg.ReplyTo != "" {
			m, err = c.session.ChannelMessageSendReply(msg.ChatID, msg.Content, &discordgo.MessageReference{
				MessageID: msg.ReplyTo,
				ChannelID: msg.ChatID,
			})
		} else {
			m, err = c.session.ChannelMessageSend(msg.ChatID, msg.Content)
		}
		done <- result{m, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("failed to send discord message: %w", r.err)
		}
		return r.m.ID, nil
	case <-sendCtx.Done():
		return "", fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) Delete(_ context.Context, chatID, messageID string) error {
	return c.session.ChannelMessageDelete(chatID, messageID)
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if !c.fromNotifyChannel(m.ChannelID) {
		return
	}
	in, ok := discordInbound(m.Message)
	if !ok {
		return
	}
	c.HandleMessage(c.ctx, in)
}

// fromNotifyChannel limits operator input to the channel notifications go to.
func (c *DiscordChannel) fromNotifyChannel(channelID string) bool {
	return channelID != "" && channelID == c.config.NotifyChannelID
}

func discordInbound(m *discordgo.Message) (bus.InboundMessage, bool) {
	if m == nil || m.Author == nil || m.Content == "" {
		return bus.InboundMessage{}, false
	}
	in := bus.InboundMessage{
		SenderID:  m.Author.ID + "|" + m.Author.Username,
		ChatID:    m.ChannelID,
		MessageID: m.ID,
		Content:   m.Content,
		Metadata: map[string]string{
			"username": m.Author.Username,
			"guild_id": m.GuildID,
		},
	}
	if ref := m.MessageReference; ref != nil {
		in.ReplyToID = ref.MessageID
	}
	if m.ReferencedMessage != nil {
		in.ReplyToText = m.ReferencedMessage.Content
	}
	return in, true
}
