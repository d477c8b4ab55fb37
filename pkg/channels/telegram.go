package channels

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sellerbridge/sellerbridge/pkg/bus"
	"github.com/sellerbridge/sellerbridge/pkg/config"
)

const accessDeniedText = "Access denied. Admin only."

// TelegramChannel implements the Telegram channel over long polling.
type TelegramChannel struct {
	*BaseChannel
	config config.TelegramConfig
	bot    *tgbotapi.BotAPI
}

// NewTelegramChannel creates a new TelegramChannel. The admin is always allowed.
func NewTelegramChannel(cfg config.TelegramConfig, messageBus *bus.MessageBus) *TelegramChannel {
	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", messageBus, cfg.Allowed()),
		config:      cfg,
	}
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	if c.config.Token == "" {
		return errors.New("telegram token is empty")
	}

	client := &http.Client{}
	if c.config.Proxy != "" {
		proxyURL, err := url.Parse(c.config.Proxy)
		if err != nil {
			return fmt.Errorf("invalid telegram proxy %q: %w", c.config.Proxy, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(c.config.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	c.bot = bot
	log.Printf("Telegram bot authorized on account %s", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)
	c.setRunning(true)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok || !c.IsRunning() {
					return
				}
				if update.Message == nil {
					continue
				}
				c.handleUpdate(ctx, update.Message)
			}
		}
	}()

	return nil
}

func (c *TelegramChannel) Stop(_ context.Context) error {
	c.setRunning(false)
	if c.bot != nil {
		c.bot.StopReceivingUpdates()
	}
	return nil
}

func (c *TelegramChannel) Send(_ context.Context, msg bus.OutboundMessage) (string, error) {
	if c.bot == nil {
		return "", errors.New("telegram bot not initialized")
	}
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid chat ID: %s", msg.ChatID)
	}
	if msg.Content == "" {
		return "", errors.New("empty message")
	}

	out := tgbotapi.NewMessage(chatID, msg.Content)
	if msg.ReplyTo != "" {
		if replyTo, err := strconv.Atoi(msg.ReplyTo); err == nil {
			out.ReplyToMessageID = replyTo
		}
	}

	sent, err := c.bot.Send(out)
	if err != nil {
		return "", fmt.Errorf("failed to send telegram message: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// Delete removes a message from a chat.
func (c *TelegramChannel) Delete(_ context.Context, chatID, messageID string) error {
	if c.bot == nil {
		return errors.New("telegram bot not initialized")
	}
	chat, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("invalid message ID: %s", messageID)
	}
	_, err = c.bot.Request(tgbotapi.NewDeleteMessage(chat, id))
	return err
}

func (c *TelegramChannel) handleUpdate(ctx context.Context, msg *tgbotapi.Message) {
	in, ok := telegramInbound(msg)
	if !ok {
		return
	}

	if !c.IsAllowed(in.SenderID) {
		if msg.IsCommand() && msg.Command() == "start" {
			if _, err := c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, accessDeniedText)); err != nil {
				log.Printf("telegram: failed to reply to %s: %v", in.SenderID, err)
			}
		}
		log.Printf("telegram: rejected message from %s", in.SenderID)
		return
	}

	c.HandleMessage(ctx, in)
}

// telegramInbound converts a Telegram message. Messages without a sender or
// text are skipped.
func telegramInbound(msg *tgbotapi.Message) (bus.InboundMessage, bool) {
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return bus.InboundMessage{}, false
	}
	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	if content == "" {
		return bus.InboundMessage{}, false
	}

	senderID := strconv.FormatInt(msg.From.ID, 10)
	if msg.From.UserName != "" {
		senderID = senderID + "|" + msg.From.UserName
	}

	in := bus.InboundMessage{
		SenderID:  senderID,
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		MessageID: strconv.Itoa(msg.MessageID),
		Content:   content,
		Metadata: map[string]string{
			"username":   msg.From.UserName,
			"first_name": msg.From.FirstName,
		},
	}
	if reply := msg.ReplyToMessage; reply != nil {
		in.ReplyToID = strconv.Itoa(reply.MessageID)
		in.ReplyToText = reply.Text
	}
	return in, true
}
