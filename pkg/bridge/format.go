package bridge

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sellerbridge/sellerbridge/pkg/correlation"
)

// NotificationHeader starts every forwarded customer message.
const NotificationHeader = "🔔 New Shopee Message"

const timeLayout = "02/01/2006 15:04"

var (
	idLinePattern = regexp.MustCompile(`(?m)^🆔 ID: (CUST\d+-[0-9a-f]{8})\s*$`)
	tokenPattern  = regexp.MustCompile(`\bCUST\d+-[0-9a-f]{8}\b`)
)

// FormatNotification renders the operator notification for msg. The token
// sits on its own "ID:" line so ParseToken can recover it from the text.
func FormatNotification(msg correlation.ExternalMessage, token, store string) string {
	observed := msg.ObservedAt
	if observed.IsZero() {
		observed = time.Now()
	}
	var b strings.Builder
	b.WriteString(NotificationHeader + "\n\n")
	fmt.Fprintf(&b, "👤 Customer: %s\n", msg.Sender)
	fmt.Fprintf(&b, "🆔 ID: %s\n", token)
	if store != "" {
		fmt.Fprintf(&b, "🏪 Store: %s\n", store)
	}
	fmt.Fprintf(&b, "💬 Message: \"%s\"\n", msg.Text)
	fmt.Fprintf(&b, "⏰ Time: %s\n\n", observed.Format(timeLayout))
	b.WriteString("💡 Reply to this message to respond to the customer")
	return b.String()
}

// ParseToken extracts a conversation token from notification text. The ID
// line wins over tokens appearing elsewhere, e.g. quoted by a customer.
func ParseToken(text string) (string, bool) {
	if m := idLinePattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	token := tokenPattern.FindString(text)
	return token, token != ""
}
