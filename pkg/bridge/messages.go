package bridge

import (
	"fmt"
	"strings"
	"time"
)

const (
	welcomeText = `🔗 Shopee Chat Bridge Bot

This bot bridges Shopee customer chat with the admin on this channel.

🔄 Flow:
Shopee customer → Bot → Admin → Reply → Bot → Shopee customer

🚀 Quick setup:
1. /login - Log in to the Shopee seller account
2. /monitor - Start monitoring chat
3. Receive customer messages and reply to them

✅ Ready to start! Use /login first.`

	helpText = `📋 Shopee Chat Bridge Bot - Help

🔧 Setup commands:
• /start - Show the welcome message
• /login - Log in to Shopee (format: email:password)
• /monitor - Start monitoring Shopee chat
• /stop - Stop monitoring

📊 Management commands:
• /status - Show bot status (/status json for raw output)
• /test - Send a test customer message
• /help - Show this help

💬 How to use:
1. Setup: /start → /login → /monitor
2. Customer messages are forwarded automatically
3. Reply directly to a forwarded message
4. The bot sends your reply to the customer

⚠️ Important:
• Accounts with 2FA enabled must log in manually once to clear it
• Keep monitoring active for real-time forwarding`

	loginPromptText = `🔐 Shopee Login

Send your credentials in the format:
email:password

Example: myemail@gmail.com:mypassword

⚠️ Credentials are kept in memory only and never saved.`

	loginFormatText      = "❌ Wrong format. Use: email:password"
	loggingInText        = "🔄 Logging in to Shopee..."
	loginBusyText        = "⚠️ A login is already in progress"
	loginWhileMonitoring = "⚠️ Stop monitoring with /stop before logging in again"
	notLoggedInText      = "❌ Please login first using /login"
	alreadyMonitoring    = "⚠️ Monitoring already active"
	notMonitoringText    = "⚠️ Monitoring is not active"
	testSentText         = "✅ Test customer message sent! Check above for the forwarded message."
	unknownCommandText   = "❓ Unknown command. Use /help to see available commands."
	freeTextHint         = "💡 Reply to a forwarded customer message to respond, or use /help."
	customerNotFoundText = "❌ Customer not found for this reply"
	emptyReplyText       = "❌ Reply is empty"
)

func loginSuccessText(email, store string, at time.Time) string {
	return fmt.Sprintf(`✅ Login Successful!

📧 Email: %s
🏪 Store: %s
⏰ Login Time: %s

Next step: use /monitor to start monitoring chat`, email, store, at.Format(timeLayout))
}

func monitoringStartedText(store string, interval time.Duration, at time.Time) string {
	return fmt.Sprintf(`✅ Monitoring Started!

🏪 Store: %s
⏰ Started: %s
🔄 Interval: every %s

Now watching your Shopee chat for new messages...`, store, at.Format(timeLayout), interval)
}

func monitoringStoppedText(at time.Time) string {
	return fmt.Sprintf(`⏹️ Monitoring Stopped

⏰ Stopped: %s

Use /monitor to start again.`, at.Format(timeLayout))
}

func monitoringLostText(err error) string {
	return fmt.Sprintf("❌ Browser reconnection failed: %v\n\nMonitoring stopped. Use /login and then /monitor to resume.", err)
}

func replySentText(customer, reply string, at time.Time) string {
	return fmt.Sprintf(`✅ Reply Sent Successfully

👤 To: %s
💬 Your Reply: "%s"
⏰ Sent: %s

Customer will receive your message in Shopee chat.`, customer, reply, at.Format(timeLayout))
}

func check(ok bool, yes, no string) string {
	if ok {
		return "✅ " + yes
	}
	return "❌ " + no
}

func statusText(s Status) string {
	var b strings.Builder
	b.WriteString("📊 System Status\n\n")
	fmt.Fprintf(&b, "🔐 Login Status: %s\n", check(s.LoggedIn, "Logged In", "Not Logged In"))
	fmt.Fprintf(&b, "👀 Monitoring: %s\n", check(s.Monitoring, "Active", "Stopped"))
	fmt.Fprintf(&b, "🌐 Browser: %s\n", check(s.BrowserRunning, "Running", "Not Running"))
	fmt.Fprintf(&b, "⏱️ Uptime: %s\n\n", (time.Duration(s.UptimeSeconds) * time.Second).String())
	b.WriteString("📈 Statistics:\n")
	fmt.Fprintf(&b, "• Active Chats: %d\n", s.ActiveConversationCount)
	fmt.Fprintf(&b, "• Pending Replies: %d\n", s.PendingReplies)
	fmt.Fprintf(&b, "• Chat History: %d messages\n\n", s.HistoryCount)
	b.WriteString("🏪 Store Info:\n")
	fmt.Fprintf(&b, "• Name: %s\n", s.StoreName)
	fmt.Fprintf(&b, "• URL: %s\n\n", s.StoreURL)
	b.WriteString("⚙️ Configuration:\n")
	fmt.Fprintf(&b, "• Monitoring Interval: %dms\n", s.PollIntervalMs)
	fmt.Fprintf(&b, "• Headless Mode: %t", s.Headless)
	return b.String()
}
