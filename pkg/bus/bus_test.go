package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundRoundTrip(t *testing.T) {
	b := NewMessageBus()
	defer b.Close()
	ctx := context.Background()

	in := InboundMessage{Channel: "telegram", ChatID: "42", Content: "hi", ReplyToID: "7"}
	require.NoError(t, b.PublishInbound(ctx, in))

	got, ok := b.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, in, got)
	assert.True(t, got.IsReply())
	assert.Equal(t, "telegram:42", got.ConversationKey())
}

func TestClosedBusRejectsPublish(t *testing.T) {
	b := NewMessageBus()
	b.Close()
	b.Close()

	ctx := context.Background()
	assert.ErrorIs(t, b.PublishInbound(ctx, InboundMessage{}), ErrBusClosed)
	assert.ErrorIs(t, b.PublishOutbound(ctx, OutboundMessage{}), ErrBusClosed)

	_, ok := b.ConsumeInbound(ctx)
	assert.False(t, ok)
}

func TestConsumeInboundHonoursContext(t *testing.T) {
	b := NewMessageBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := b.ConsumeInbound(ctx)
	assert.False(t, ok)
}

func TestDispatchOutboundInOrderAndRecovers(t *testing.T) {
	b := NewMessageBus()
	ctx := context.Background()

	var mu sync.Mutex
	var got []string
	b.SubscribeOutbound("telegram", func(_ context.Context, msg OutboundMessage) {
		if msg.Content == "panic" {
			panic("boom")
		}
		mu.Lock()
		got = append(got, msg.Content)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		b.DispatchOutbound(ctx)
		close(done)
	}()

	for _, c := range []string{"one", "panic", "two"} {
		require.NoError(t, b.PublishOutbound(ctx, OutboundMessage{Channel: "telegram", Content: c}))
	}
	require.NoError(t, b.PublishOutbound(ctx, OutboundMessage{Channel: "discord", Content: "dropped"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	b.Close()
	<-done
	assert.Equal(t, []string{"one", "two"}, got)
}
