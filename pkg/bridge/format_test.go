package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerbridge/sellerbridge/pkg/correlation"
)

func TestFormatNotification(t *testing.T) {
	msg := correlation.ExternalMessage{
		Sender:     "Ali",
		Text:       "where is my order",
		ObservedAt: time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC),
	}

	text := FormatNotification(msg, "CUST1710000000000-0a1b2c3d", "Kedai Test")

	assert.True(t, len(text) > 0 && text[:len(NotificationHeader)] == NotificationHeader)
	assert.Contains(t, text, "👤 Customer: Ali")
	assert.Contains(t, text, "🆔 ID: CUST1710000000000-0a1b2c3d")
	assert.Contains(t, text, "🏪 Store: Kedai Test")
	assert.Contains(t, text, `💬 Message: "where is my order"`)
	assert.Contains(t, text, "⏰ Time: 09/03/2024 14:05")

	token, ok := ParseToken(text)
	require.True(t, ok)
	assert.Equal(t, "CUST1710000000000-0a1b2c3d", token)
}

func TestFormatNotificationOmitsEmptyStore(t *testing.T) {
	text := FormatNotification(correlation.ExternalMessage{Sender: "Ali", Text: "x"}, "CUST1-00000000", "")
	assert.NotContains(t, text, "Store:")
}

func TestParseTokenRejectsOtherText(t *testing.T) {
	for _, text := range []string{"", "hello", "CUST123", "ID: CUST12-XYZ12345", "order SP123456789"} {
		_, ok := ParseToken(text)
		assert.False(t, ok, text)
	}
}

func TestParseTokenIgnoresCustomerTextAroundIt(t *testing.T) {
	store := correlation.NewStore(correlation.Options{})
	token := store.Create(correlation.ExternalMessage{Sender: "Siti", Text: "is CUST in stock?"})

	text := FormatNotification(correlation.ExternalMessage{Sender: "Siti", Text: "is CUST in stock?"}, token, "")
	got, ok := ParseToken(text)
	require.True(t, ok)
	assert.Equal(t, token, got)
}

func TestParseTokenPrefersIDLine(t *testing.T) {
	msg := correlation.ExternalMessage{Sender: "CUST1-aaaaaaaa", Text: "copy of CUST2-bbbbbbbb"}
	text := FormatNotification(msg, "CUST3-cccccccc", "")

	got, ok := ParseToken(text)
	require.True(t, ok)
	assert.Equal(t, "CUST3-cccccccc", got)
}
