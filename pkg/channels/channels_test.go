package channels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerbridge/sellerbridge/pkg/bus"
	"github.com/sellerbridge/sellerbridge/pkg/config"
)

func TestIsAllowed(t *testing.T) {
	open := NewBaseChannel("test", nil, nil)
	assert.True(t, open.IsAllowed("anyone"))

	c := NewBaseChannel("test", nil, []string{"42", "@alice"})
	assert.True(t, c.IsAllowed("42"))
	assert.True(t, c.IsAllowed("42|bob"))
	assert.True(t, c.IsAllowed("7|alice"))
	assert.False(t, c.IsAllowed("7|bob"))
	assert.False(t, c.IsAllowed("420"))
}

func TestHandleMessageFiltersAndPublishes(t *testing.T) {
	b := bus.NewMessageBus()
	defer b.Close()
	c := NewBaseChannel("telegram", b, []string{"42"})
	ctx := context.Background()

	c.HandleMessage(ctx, bus.InboundMessage{SenderID: "7", Content: "ignored"})
	c.HandleMessage(ctx, bus.InboundMessage{SenderID: "42|admin", Content: "/status"})

	got, ok := b.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "telegram", got.Channel)
	assert.Equal(t, "/status", got.Content)
	assert.False(t, got.Timestamp.IsZero())
}

func TestTelegramAllowListIncludesAdmin(t *testing.T) {
	ch := NewTelegramChannel(config.TelegramConfig{AdminID: 99, AllowFrom: []string{"5"}}, bus.NewMessageBus())
	assert.True(t, ch.IsAllowed("99|owner"))
	assert.True(t, ch.IsAllowed("5"))
	assert.False(t, ch.IsAllowed("6"))
	assert.Equal(t, "telegram", ch.Name())
}

func TestTelegramInbound(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 12,
		From:      &tgbotapi.User{ID: 42, UserName: "admin", FirstName: "Ahmad"},
		Chat:      &tgbotapi.Chat{ID: 42},
		Text:      "Sure, shipping today",
		ReplyToMessage: &tgbotapi.Message{
			MessageID: 10,
			Text:      "ID: CUST1-abcdef12",
		},
	}

	in, ok := telegramInbound(msg)
	require.True(t, ok)
	assert.Equal(t, "42|admin", in.SenderID)
	assert.Equal(t, "42", in.ChatID)
	assert.Equal(t, "12", in.MessageID)
	assert.Equal(t, "10", in.ReplyToID)
	assert.Equal(t, "ID: CUST1-abcdef12", in.ReplyToText)
	assert.Equal(t, "Ahmad", in.Metadata["first_name"])

	_, ok = telegramInbound(&tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}})
	assert.False(t, ok, "no text")
	_, ok = telegramInbound(&tgbotapi.Message{Text: "x"})
	assert.False(t, ok, "no sender")
}

func TestTelegramSendRequiresBot(t *testing.T) {
	ch := NewTelegramChannel(config.TelegramConfig{}, bus.NewMessageBus())
	_, err := ch.Send(context.Background(), bus.OutboundMessage{ChatID: "1", Content: "x"})
	assert.Error(t, err)
	assert.Error(t, ch.Start(context.Background()), "empty token")
}

func TestDiscordInbound(t *testing.T) {
	m := &discordgo.Message{
		ID:               "900",
		ChannelID:        "chan",
		Content:          "ok will do",
		Author:           &discordgo.User{ID: "u1", Username: "ops"},
		MessageReference: &discordgo.MessageReference{MessageID: "800"},
		ReferencedMessage: &discordgo.Message{
			ID:      "800",
			Content: "ID: CUST2-12345678",
		},
	}

	in, ok := discordInbound(m)
	require.True(t, ok)
	assert.Equal(t, "u1|ops", in.SenderID)
	assert.Equal(t, "chan", in.ChatID)
	assert.Equal(t, "900", in.MessageID)
	assert.Equal(t, "800", in.ReplyToID)
	assert.Equal(t, "ID: CUST2-12345678", in.ReplyToText)

	_, ok = discordInbound(&discordgo.Message{Author: &discordgo.User{ID: "u1"}})
	assert.False(t, ok)
}

func TestDiscordIgnoresOtherChannels(t *testing.T) {
	b := bus.NewMessageBus()
	t.Cleanup(b.Close)

	ch, err := NewDiscordChannel(config.DiscordConfig{
		Token:           "discord-token",
		NotifyChannelID: "notify",
		AllowFrom:       []string{"u1"},
	}, b)
	require.NoError(t, err)

	message := func(channelID string) *discordgo.MessageCreate {
		return &discordgo.MessageCreate{Message: &discordgo.Message{
			ID:        "1",
			ChannelID: channelID,
			Content:   "/status",
			Author:    &discordgo.User{ID: "u1", Username: "ops"},
		}}
	}

	ch.handleMessage(ch.session, message("general"))
	ch.handleMessage(ch.session, message(""))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := b.ConsumeInbound(ctx)
	assert.False(t, ok, "messages outside the notify channel must be dropped")

	ch.handleMessage(ch.session, message("notify"))

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	in, ok := b.ConsumeInbound(ctx2)
	require.True(t, ok)
	assert.Equal(t, "notify", in.ChatID)
	assert.Equal(t, "discord", in.Channel)
}

type fakeChannel struct {
	name     string
	sent     []bus.OutboundMessage
	deleted  []string
	startErr error
	started  bool
	stopped  bool
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeChannel) Stop(context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeChannel) Send(_ context.Context, msg bus.OutboundMessage) (string, error) {
	f.sent = append(f.sent, msg)
	return "m1", nil
}

type deletingChannel struct{ fakeChannel }

func (d *deletingChannel) Delete(_ context.Context, _, messageID string) error {
	d.deleted = append(d.deleted, messageID)
	return nil
}

func TestManagerSendAndDelete(t *testing.T) {
	m := NewManager(bus.NewMessageBus())
	tg := &deletingChannel{fakeChannel{name: "telegram"}}
	dc := &fakeChannel{name: "discord"}
	m.Register(tg)
	m.Register(dc)
	ctx := context.Background()

	id, err := m.Send(ctx, bus.OutboundMessage{Channel: "telegram", ChatID: "1", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
	assert.Len(t, tg.sent, 1)

	_, err = m.Send(ctx, bus.OutboundMessage{Channel: "slack"})
	assert.Error(t, err)

	ok, err := m.Delete(ctx, "telegram", "1", "5")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"5"}, tg.deleted)

	ok, err = m.Delete(ctx, "discord", "1", "5")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"telegram", "discord"}, m.Names())
}

func TestManagerStartAllRollsBack(t *testing.T) {
	m := NewManager(bus.NewMessageBus())
	first := &fakeChannel{name: "telegram"}
	second := &fakeChannel{name: "discord", startErr: errors.New("bad token")}
	m.Register(first)
	m.Register(second)

	err := m.StartAll(context.Background())
	assert.ErrorContains(t, err, "bad token")
	assert.True(t, first.started)
	assert.True(t, first.stopped)

	require.NoError(t, m.StopAll(context.Background()))
}
