package onboard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerbridge/sellerbridge/pkg/config"
)

func TestOnboardWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	created, err := onboard(path, false)
	require.NoError(t, err)
	assert.True(t, created)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Channels.Telegram.Enabled)
	assert.Equal(t, config.DefaultConfig().Bridge.PollIntervalMs, cfg.Bridge.PollIntervalMs)
}

func TestOnboardKeepsExistingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  store_name: Mine\n"), 0o600))

	created, err := onboard(path, false)
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Mine")

	created, err = onboard(path, true)
	require.NoError(t, err)
	assert.True(t, created)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Mine")
}
