package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Selectors are the page-driver selectors for the seller center UI.
type Selectors struct {
	EmailInput    string `env:"SELLERBRIDGE_SELECTOR_EMAIL_INPUT"    yaml:"email_input"`
	PasswordInput string `env:"SELLERBRIDGE_SELECTOR_PASSWORD_INPUT" yaml:"password_input"`
	SubmitButton  string `env:"SELLERBRIDGE_SELECTOR_SUBMIT_BUTTON"  yaml:"submit_button"`
	Dashboard     string `env:"SELLERBRIDGE_SELECTOR_DASHBOARD"      yaml:"dashboard"`
	TwoFactor     string `env:"SELLERBRIDGE_SELECTOR_TWO_FACTOR"     yaml:"two_factor"`
	LoginError    string `env:"SELLERBRIDGE_SELECTOR_LOGIN_ERROR"    yaml:"login_error"`
	MessageItem   string `env:"SELLERBRIDGE_SELECTOR_MESSAGE_ITEM"   yaml:"message_item"`
	SenderName    string `env:"SELLERBRIDGE_SELECTOR_SENDER_NAME"    yaml:"sender_name"`
	MessageIDAttr string `env:"SELLERBRIDGE_SELECTOR_MESSAGE_ID_ATTR" yaml:"message_id_attr"`
	ChatInput     string `env:"SELLERBRIDGE_SELECTOR_CHAT_INPUT"     yaml:"chat_input"`
	SendButton    string `env:"SELLERBRIDGE_SELECTOR_SEND_BUTTON"    yaml:"send_button"`
}

type BridgeConfig struct {
	PollIntervalMs  int       `env:"SELLERBRIDGE_BRIDGE_POLL_INTERVAL_MS"   yaml:"poll_interval_ms"`
	Headless        bool      `env:"SELLERBRIDGE_BRIDGE_HEADLESS"           yaml:"headless"`
	BaseURL         string    `env:"SELLERBRIDGE_BRIDGE_BASE_URL"           yaml:"base_url"`
	StoreName       string    `env:"SELLERBRIDGE_BRIDGE_STORE_NAME"         yaml:"store_name"`
	StoreURL        string    `env:"SELLERBRIDGE_BRIDGE_STORE_URL"          yaml:"store_url"`
	SignInPath      string    `env:"SELLERBRIDGE_BRIDGE_SIGN_IN_PATH"       yaml:"sign_in_path"`
	ChatPath        string    `env:"SELLERBRIDGE_BRIDGE_CHAT_PATH"          yaml:"chat_path"`
	NotifyChannel   string    `env:"SELLERBRIDGE_BRIDGE_NOTIFY_CHANNEL"     yaml:"notify_channel"`
	MaxCorrelations int       `env:"SELLERBRIDGE_BRIDGE_MAX_CORRELATIONS"   yaml:"max_correlations"`
	MaxHistory      int       `env:"SELLERBRIDGE_BRIDGE_MAX_HISTORY"        yaml:"max_history"`
	WaitTimeoutMs   int       `env:"SELLERBRIDGE_BRIDGE_WAIT_TIMEOUT_MS"    yaml:"wait_timeout_ms"`
	LoginTimeoutMs  int       `env:"SELLERBRIDGE_BRIDGE_LOGIN_TIMEOUT_MS"   yaml:"login_timeout_ms"`
	ReplyTimeoutMs  int       `env:"SELLERBRIDGE_BRIDGE_REPLY_TIMEOUT_MS"   yaml:"reply_timeout_ms"`
	SubmitSettleMs  int       `env:"SELLERBRIDGE_BRIDGE_SUBMIT_SETTLE_MS"   yaml:"submit_settle_ms"`
	ChromePath      string    `env:"SELLERBRIDGE_BRIDGE_CHROME_PATH"        yaml:"chrome_path,omitempty"`
	Selectors       Selectors `yaml:"selectors"`
}

// PollInterval returns the configured polling interval.
func (b BridgeConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalMs) * time.Millisecond
}

func (b BridgeConfig) WaitTimeout() time.Duration {
	return time.Duration(b.WaitTimeoutMs) * time.Millisecond
}

func (b BridgeConfig) LoginTimeout() time.Duration {
	return time.Duration(b.LoginTimeoutMs) * time.Millisecond
}

func (b BridgeConfig) ReplyTimeout() time.Duration {
	return time.Duration(b.ReplyTimeoutMs) * time.Millisecond
}

func (b BridgeConfig) SubmitSettle() time.Duration {
	return time.Duration(b.SubmitSettleMs) * time.Millisecond
}

// SignInURL joins the base URL and the sign-in path.
func (b BridgeConfig) SignInURL() string {
	return joinURL(b.BaseURL, b.SignInPath)
}

// ChatURL joins the base URL and the chat path.
func (b BridgeConfig) ChatURL() string {
	return joinURL(b.BaseURL, b.ChatPath)
}

type TelegramConfig struct {
	Enabled   bool     `env:"SELLERBRIDGE_CHANNELS_TELEGRAM_ENABLED"    yaml:"enabled"`
	Token     string   `env:"SELLERBRIDGE_CHANNELS_TELEGRAM_TOKEN"      yaml:"token"`
	AdminID   int64    `env:"SELLERBRIDGE_CHANNELS_TELEGRAM_ADMIN_ID"   yaml:"admin_id"`
	AllowFrom []string `env:"SELLERBRIDGE_CHANNELS_TELEGRAM_ALLOW_FROM" yaml:"allow_from"`
	Proxy     string   `env:"SELLERBRIDGE_CHANNELS_TELEGRAM_PROXY"      yaml:"proxy,omitempty"`
}

// Allowed returns the allow list, always including the admin.
func (t TelegramConfig) Allowed() []string {
	allowed := append([]string(nil), t.AllowFrom...)
	if t.AdminID != 0 {
		allowed = append(allowed, strconv.FormatInt(t.AdminID, 10))
	}
	return allowed
}

type DiscordConfig struct {
	Enabled         bool     `env:"SELLERBRIDGE_CHANNELS_DISCORD_ENABLED"           yaml:"enabled"`
	Token           string   `env:"SELLERBRIDGE_CHANNELS_DISCORD_TOKEN"             yaml:"token"`
	NotifyChannelID string   `env:"SELLERBRIDGE_CHANNELS_DISCORD_NOTIFY_CHANNEL_ID" yaml:"notify_channel_id"`
	AllowFrom       []string `env:"SELLERBRIDGE_CHANNELS_DISCORD_ALLOW_FROM"        yaml:"allow_from"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
}

type HistoryConfig struct {
	SQLitePath string `env:"SELLERBRIDGE_HISTORY_SQLITE_PATH" yaml:"sqlite_path"`
}

type LogConfig struct {
	Dir string `env:"SELLERBRIDGE_LOG_DIR" yaml:"dir"`
}

type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Channels ChannelsConfig `yaml:"channels"`
	History  HistoryConfig  `yaml:"history"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			PollIntervalMs: 5000,
			Headless:       true,
			BaseURL:        "https://seller.shopee.com.my/",
			SignInPath:     "account/signin",
			ChatPath:       "portal/chat",
			NotifyChannel:  "telegram",
			WaitTimeoutMs:  10000,
			LoginTimeoutMs: 30000,
			ReplyTimeoutMs: 5000,
			SubmitSettleMs: 1000,
			Selectors: Selectors{
				EmailInput:    `input[placeholder*="email"], input[placeholder*="Email"]`,
				PasswordInput: `input[placeholder*="password"], input[placeholder*="Password"]`,
				SubmitButton:  `button[type="submit"], .login-button, .btn-login`,
				Dashboard:     `.seller-center-header, .dashboard`,
				TwoFactor:     `.otp-input, .verification-code`,
				LoginError:    `.login-error, .error-message`,
				MessageItem:   `.chat-message, .message-item, .conversation-item`,
				SenderName:    `.customer-name, .sender-name`,
				ChatInput:     `.chat-input, .message-input, textarea`,
				SendButton:    `.send-button, .btn-send, button[type="submit"]`,
			},
		},
		Log: LogConfig{
			Dir: filepath.Join("~", ".sellerbridge", "logs"),
		},
	}
}

// LoadConfig loads the configuration from the given path and applies
// SELLERBRIDGE_* environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg as YAML. The file holds bot tokens, hence 0600.
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the configuration can run a bridge.
func (c *Config) Validate() error {
	var errs []error
	if c.Bridge.PollIntervalMs <= 0 {
		errs = append(errs, errors.New("bridge.poll_interval_ms must be positive"))
	}
	if c.Bridge.BaseURL == "" {
		errs = append(errs, errors.New("bridge.base_url is required"))
	}
	if c.Bridge.Selectors.MessageItem == "" || c.Bridge.Selectors.ChatInput == "" {
		errs = append(errs, errors.New("bridge.selectors.message_item and chat_input are required"))
	}

	tg := c.Channels.Telegram
	if tg.Enabled && (tg.Token == "" || tg.AdminID == 0) {
		errs = append(errs, errors.New("channels.telegram requires token and admin_id"))
	}
	dc := c.Channels.Discord
	if dc.Enabled && (dc.Token == "" || dc.NotifyChannelID == "") {
		errs = append(errs, errors.New("channels.discord requires token and notify_channel_id"))
	}
	if dc.Enabled && len(dc.AllowFrom) == 0 {
		errs = append(errs, errors.New("channels.discord requires allow_from with the operator's user id"))
	}

	switch c.Bridge.NotifyChannel {
	case "telegram":
		if !tg.Enabled {
			errs = append(errs, errors.New("bridge.notify_channel is telegram but telegram is disabled"))
		}
	case "discord":
		if !dc.Enabled {
			errs = append(errs, errors.New("bridge.notify_channel is discord but discord is disabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown bridge.notify_channel %q", c.Bridge.NotifyChannel))
	}

	return errors.Join(errs...)
}

// NotifyChatID returns the chat that receives forwarded customer messages.
func (c *Config) NotifyChatID() string {
	if c.Bridge.NotifyChannel == "discord" {
		return c.Channels.Discord.NotifyChannelID
	}
	return strconv.FormatInt(c.Channels.Telegram.AdminID, 10)
}

// LogDir returns the log directory with ~ expanded.
func (c *Config) LogDir() string {
	return ExpandHome(c.Log.Dir)
}

// Masked returns a copy safe to print: tokens are redacted.
func (c *Config) Masked() *Config {
	out := *c
	out.Channels.Telegram.Token = mask(c.Channels.Telegram.Token)
	out.Channels.Discord.Token = mask(c.Channels.Discord.Token)
	return &out
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
		return filepath.Join(home, path[2:])
	}
	return home
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 6 {
		return "******"
	}
	return secret[:3] + "******"
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
