package run

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerbridge/sellerbridge/pkg/audit"
	"github.com/sellerbridge/sellerbridge/pkg/bus"
	"github.com/sellerbridge/sellerbridge/pkg/channels"
	"github.com/sellerbridge/sellerbridge/pkg/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Bridge.StoreName = "Shop A"
	cfg.Bridge.Selectors.MessageIDAttr = "data-id"
	cfg.Bridge.MaxCorrelations = 50
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = "123:abc"
	cfg.Channels.Telegram.AdminID = 42
	return cfg
}

func TestSessionOptions(t *testing.T) {
	opts := sessionOptions(testConfig())

	assert.Equal(t, "https://seller.shopee.com.my/account/signin", opts.SignInURL)
	assert.Equal(t, "https://seller.shopee.com.my/portal/chat", opts.ChatURL)
	assert.Equal(t, 10*time.Second, opts.WaitTimeout)
	assert.Equal(t, 30*time.Second, opts.LoginTimeout)
	assert.NotEmpty(t, opts.Selectors.Dashboard)
}

func TestControllerOptions(t *testing.T) {
	opts := controllerOptions(testConfig())

	assert.Equal(t, "telegram", opts.NotifyChannel)
	assert.Equal(t, "42", opts.NotifyChatID)
	assert.Equal(t, "Shop A", opts.StoreName)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, "data-id", opts.Poll.IDAttr)
	assert.NotEmpty(t, opts.Poll.MessageItem)
	assert.Equal(t, 5*time.Second, opts.Relay.WaitTimeout)
	assert.Equal(t, time.Second, opts.Relay.Settle)
}

func TestStoreOptions(t *testing.T) {
	cfg := testConfig()

	opts := storeOptions(cfg, nil)
	assert.Equal(t, 50, opts.MaxEntries)
	assert.Nil(t, opts.Sink)

	journal, err := audit.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	opts = storeOptions(cfg, journal)
	assert.Equal(t, journal, opts.Sink)
}

func TestRegisterChannels(t *testing.T) {
	b := bus.NewMessageBus()
	t.Cleanup(b.Close)

	m := channels.NewManager(b)
	require.NoError(t, registerChannels(m, testConfig(), b))
	assert.Equal(t, []string{"telegram"}, m.Names())

	cfg := testConfig()
	cfg.Channels.Telegram.Enabled = false
	err := registerChannels(channels.NewManager(b), cfg, b)
	assert.EqualError(t, err, "no channels enabled")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf, testConfig(), []string{"telegram"}, true)

	out := buf.String()
	assert.Contains(t, out, "portal/chat")
	assert.Contains(t, out, "telegram")
	assert.Contains(t, out, "/login")
}
