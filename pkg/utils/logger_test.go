package utils

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatableLoggerRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l := NewRotatableLogger(path, 10, 2)
	t.Cleanup(func() { l.Close() })

	for _, line := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		_, err := l.Write([]byte(line))
		require.NoError(t, err)
	}

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dddddddd\n", string(current))

	first, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "cccccccc\n", string(first))

	second, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbb\n", string(second))

	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatableLoggerAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o600))

	l := NewRotatableLogger(path, 1024, 1)
	_, err := l.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

func TestDebugf(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetDebug(false)
	})

	SetDebug(false)
	Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetDebug(true)
	Debugf("shown %d", 2)
	assert.Equal(t, "DEBUG shown 2", strings.TrimSpace(buf.String()))
}

func TestSetupLoggerCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	prevOut, prevFlags := log.Writer(), log.Flags()
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})

	closer, err := SetupLogger(dir, false)
	require.NoError(t, err)
	log.Print("hello from test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}
