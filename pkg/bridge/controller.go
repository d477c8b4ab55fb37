// Package bridge forwards seller-center customer messages to an operator
// channel and relays the operator's replies back.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sellerbridge/sellerbridge/pkg/bridgeerr"
	"github.com/sellerbridge/sellerbridge/pkg/bus"
	"github.com/sellerbridge/sellerbridge/pkg/correlation"
	"github.com/sellerbridge/sellerbridge/pkg/poller"
	"github.com/sellerbridge/sellerbridge/pkg/schedule"
	"github.com/sellerbridge/sellerbridge/pkg/session"
	"github.com/sellerbridge/sellerbridge/pkg/utils"
)

// State is the controller lifecycle.
type State int

const (
	Idle State = iota
	LoggingIn
	LoggedIn
	Monitoring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoggingIn:
		return "logging_in"
	case LoggedIn:
		return "logged_in"
	case Monitoring:
		return "monitoring"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrLoginInProgress = errors.New("login already in progress")
	ErrMonitoring      = errors.New("monitoring is active")
)

// Publisher queues operator-facing responses.
type Publisher interface {
	PublishOutbound(ctx context.Context, msg bus.OutboundMessage) error
}

// Deleter removes operator messages, reporting false when the channel
// cannot delete.
type Deleter interface {
	Delete(ctx context.Context, channel, chatID, messageID string) (bool, error)
}

// Deps are the collaborators of a Controller. Deleter may be nil.
type Deps struct {
	Session   *session.Manager
	Store     *correlation.Store
	Scheduler schedule.Scheduler
	Sender    Sender
	Replies   Publisher
	Deleter   Deleter
}

// Options configure a Controller.
type Options struct {
	NotifyChannel string
	NotifyChatID  string
	StoreName     string
	StoreURL      string
	PollInterval  time.Duration
	Headless      bool
	Poll          poller.Selectors
	Relay         RelayOptions
}

// Status is a read-only snapshot for reporting.
type Status struct {
	LoggedIn                bool    `json:"logged_in"`
	Monitoring              bool    `json:"monitoring"`
	ActiveConversationCount int     `json:"active_conversation_count"`
	HistoryCount            int     `json:"history_count"`
	UptimeSeconds           float64 `json:"uptime_seconds"`
	State                   string  `json:"state"`
	PendingReplies          int     `json:"pending_replies"`
	BrowserRunning          bool    `json:"browser_running"`
	StoreName               string  `json:"store_name"`
	StoreURL                string  `json:"store_url,omitempty"`
	PollIntervalMs          int64   `json:"poll_interval_ms"`
	Headless                bool    `json:"headless"`
}

// Controller owns the monitoring state machine and dispatches operator
// commands and replies.
type Controller struct {
	deps      Deps
	opts      Options
	forwarder *Forwarder
	router    *Router
	poller    *poller.Poller
	started   time.Time
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	handle       schedule.Handle
	pendingLogin map[string]bool

	inflight sync.WaitGroup
}

func NewController(deps Deps, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		deps:         deps,
		opts:         opts,
		forwarder:    NewForwarder(deps.Store, deps.Sender, opts.NotifyChannel, opts.NotifyChatID, opts.StoreName),
		router:       NewRouter(deps.Store, deps.Session, opts.Relay),
		started:      time.Now(),
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
		pendingLogin: make(map[string]bool),
	}
	c.poller = poller.New(deps.Session, opts.Poll, c.forwarder.Handle, c.onSessionFailed)
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Login establishes the seller session. It is rejected while another login
// runs or while monitoring is active.
func (c *Controller) Login(ctx context.Context, creds session.Credentials) (session.Outcome, error) {
	c.mu.Lock()
	switch c.state {
	case LoggingIn:
		c.mu.Unlock()
		return session.UnknownFailure, ErrLoginInProgress
	case Monitoring:
		c.mu.Unlock()
		return session.UnknownFailure, ErrMonitoring
	}
	c.state = LoggingIn
	c.mu.Unlock()

	outcome, err := c.deps.Session.Establish(ctx, creds)

	c.mu.Lock()
	if err != nil {
		c.state = Idle
	} else {
		c.state = LoggedIn
	}
	c.mu.Unlock()
	return outcome, err
}

// StartMonitoring registers the poll task. It reports false without error
// when monitoring is already active.
func (c *Controller) StartMonitoring() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Monitoring {
		log.Println("Warning: monitoring already active")
		return false, nil
	}
	if c.state != LoggedIn || !c.deps.Session.LoggedIn() {
		return false, bridgeerr.ErrNotLoggedIn
	}

	h, err := c.deps.Scheduler.Every(c.opts.PollInterval, c.tick)
	if err != nil {
		return false, fmt.Errorf("schedule polling: %w", err)
	}
	c.handle = h
	c.state = Monitoring
	log.Printf("Monitoring started, polling every %s", c.opts.PollInterval)
	return true, nil
}

// StopMonitoring cancels the poll task. A tick already running completes.
func (c *Controller) StopMonitoring() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() bool {
	if c.state != Monitoring {
		return false
	}
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.state = LoggedIn
	log.Println("Monitoring stopped")
	return true
}

func (c *Controller) tick() {
	_ = c.poller.Tick(c.ctx)
}

// onSessionFailed runs when the poller could not rebuild a lost session.
func (c *Controller) onSessionFailed(err error) {
	c.mu.Lock()
	stopped := c.stopLocked()
	c.mu.Unlock()

	if stopped {
		log.Printf("Monitoring stopped after reconnect failure: %v", err)
		c.notifyOperator(monitoringLostText(err))
	}
}

// Status returns the current snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	entries, pending, history := c.deps.Store.Counts()
	snap := c.deps.Session.Snapshot()
	return Status{
		LoggedIn:                c.deps.Session.LoggedIn(),
		Monitoring:              state == Monitoring,
		ActiveConversationCount: entries,
		HistoryCount:            history,
		UptimeSeconds:           c.now().Sub(c.started).Seconds(),
		State:                   state.String(),
		PendingReplies:          pending,
		BrowserRunning:          snap.BrowserRunning,
		StoreName:               c.opts.StoreName,
		StoreURL:                c.opts.StoreURL,
		PollIntervalMs:          c.opts.PollInterval.Milliseconds(),
		Headless:                c.opts.Headless,
	}
}

// SendTestMessage forwards a synthetic customer message.
func (c *Controller) SendTestMessage(ctx context.Context) (string, error) {
	return c.forwarder.Forward(ctx, correlation.ExternalMessage{
		ID:         "test",
		Sender:     "Ahmad Test",
		Text:       "Hello, when will my order arrive? Order ID: SP123456789",
		ObservedAt: c.now(),
	})
}

// Run consumes inbound operator messages until ctx is done or the bus
// closes. Each message is handled on its own goroutine so a slow login or
// relay does not block status queries.
func (c *Controller) Run(ctx context.Context, b *bus.MessageBus) {
	for {
		msg, ok := b.ConsumeInbound(ctx)
		if !ok {
			return
		}
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Error handling message from %s: %v", msg.SenderID, r)
				}
			}()
			c.Handle(ctx, msg)
		}()
	}
}

// Handle processes one inbound operator message.
func (c *Controller) Handle(ctx context.Context, in bus.InboundMessage) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return
	}

	if cmd, args, ok := parseCommand(content); ok {
		utils.Debugf("Command /%s from %s", cmd, in.SenderID)
		c.handleCommand(ctx, in, cmd, args)
		return
	}

	// A reply to a forwarded notification is always routed to the customer,
	// even while a login prompt is open. The prompt stays open.
	if in.IsReply() {
		if token, err := c.router.Resolve(in); err == nil {
			c.handleReply(ctx, in, token, content)
			return
		}
	}

	switch {
	case c.takePendingLogin(in.ConversationKey()):
		c.handleCredentials(ctx, in, content)
	case in.IsReply():
		c.reply(ctx, in, customerNotFoundText)
	default:
		c.reply(ctx, in, freeTextHint)
	}
}

func (c *Controller) takePendingLogin(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.pendingLogin[key]
	delete(c.pendingLogin, key)
	return pending
}

func (c *Controller) handleCommand(ctx context.Context, in bus.InboundMessage, cmd, args string) {
	switch cmd {
	case "start":
		c.reply(ctx, in, welcomeText)
	case "help":
		c.reply(ctx, in, helpText)
	case "login":
		if state := c.State(); state == Monitoring || state == LoggingIn {
			if args != "" {
				c.forgetCredentialsMessage(ctx, in)
			}
			if state == Monitoring {
				c.reply(ctx, in, loginWhileMonitoring)
			} else {
				c.reply(ctx, in, loginBusyText)
			}
			return
		}
		if args != "" {
			c.handleCredentials(ctx, in, args)
			return
		}
		c.mu.Lock()
		c.pendingLogin[in.ConversationKey()] = true
		c.mu.Unlock()
		c.reply(ctx, in, loginPromptText)
	case "monitor", "start_monitor":
		started, err := c.StartMonitoring()
		switch {
		case errors.Is(err, bridgeerr.ErrNotLoggedIn):
			c.reply(ctx, in, notLoggedInText)
		case err != nil:
			c.reply(ctx, in, fmt.Sprintf("❌ Failed to start monitoring: %v", err))
		case !started:
			c.reply(ctx, in, alreadyMonitoring)
		default:
			c.reply(ctx, in, monitoringStartedText(c.opts.StoreName, c.opts.PollInterval, c.now()))
		}
	case "stop", "stop_monitor":
		if !c.StopMonitoring() {
			c.reply(ctx, in, notMonitoringText)
			return
		}
		c.reply(ctx, in, monitoringStoppedText(c.now()))
	case "status":
		status := c.Status()
		if args == "json" {
			data, _ := json.MarshalIndent(status, "", "  ")
			c.reply(ctx, in, string(data))
			return
		}
		c.reply(ctx, in, statusText(status))
	case "test", "test_message":
		if _, err := c.SendTestMessage(ctx); err != nil {
			c.reply(ctx, in, fmt.Sprintf("❌ Failed to send test message: %v", err))
			return
		}
		c.reply(ctx, in, testSentText)
	default:
		c.reply(ctx, in, unknownCommandText)
	}
}

func (c *Controller) handleCredentials(ctx context.Context, in bus.InboundMessage, text string) {
	c.forgetCredentialsMessage(ctx, in)

	creds, ok := parseCredentials(text)
	if !ok {
		c.reply(ctx, in, loginFormatText)
		return
	}

	c.reply(ctx, in, loggingInText)
	_, err := c.Login(ctx, creds)
	switch {
	case errors.Is(err, ErrLoginInProgress):
		c.reply(ctx, in, loginBusyText)
	case errors.Is(err, ErrMonitoring):
		c.reply(ctx, in, loginWhileMonitoring)
	case err != nil:
		c.reply(ctx, in, fmt.Sprintf("❌ Login failed: %v", err))
	default:
		c.reply(ctx, in, loginSuccessText(creds.Email, c.opts.StoreName, c.now()))
	}
}

// forgetCredentialsMessage deletes the operator message carrying a password.
func (c *Controller) forgetCredentialsMessage(ctx context.Context, in bus.InboundMessage) {
	if c.deps.Deleter == nil || in.MessageID == "" {
		return
	}
	if _, err := c.deps.Deleter.Delete(ctx, in.Channel, in.ChatID, in.MessageID); err != nil {
		log.Printf("Failed to delete credentials message: %v", err)
	}
}

func (c *Controller) handleReply(ctx context.Context, in bus.InboundMessage, token, text string) {
	msg, _ := c.deps.Store.GetMessage(token)
	rec, err := c.router.Relay(ctx, token, text)
	if err != nil {
		var notFound *bridgeerr.CorrelationNotFoundError
		if errors.As(err, &notFound) {
			c.reply(ctx, in, "❌ Customer chat not found")
			return
		}
		log.Printf("Reply error: %v", err)
		c.reply(ctx, in, fmt.Sprintf("❌ Failed to send reply: %v", errors.Unwrap(err)))
		return
	}

	at := rec.RepliedAt
	if at.IsZero() {
		at = c.now()
	}
	c.reply(ctx, in, replySentText(msg.Sender, text, at))
}

func (c *Controller) reply(ctx context.Context, in bus.InboundMessage, content string) {
	err := c.deps.Replies.PublishOutbound(ctx, bus.OutboundMessage{
		Channel: in.Channel,
		ChatID:  in.ChatID,
		Content: content,
		ReplyTo: in.MessageID,
	})
	if err != nil {
		log.Printf("Failed to queue reply to %s: %v", in.ChatID, err)
	}
}

func (c *Controller) notifyOperator(content string) {
	err := c.deps.Replies.PublishOutbound(c.ctx, bus.OutboundMessage{
		Channel: c.opts.NotifyChannel,
		ChatID:  c.opts.NotifyChatID,
		Content: content,
	})
	if err != nil {
		log.Printf("Failed to notify operator: %v", err)
	}
}

// Shutdown stops polling, waits for in-flight handlers and releases the
// browser. It is the cleanup path for signals and panics.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.StopMonitoring()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("waiting for handlers: %w", ctx.Err())
	}

	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()

	return errors.Join(waitErr, c.deps.Session.Teardown())
}

// parseCommand splits "/cmd@Bot args" into a lower-case command and args.
func parseCommand(content string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(content, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(content[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// parseCredentials accepts "email:password"; the password may contain ':'.
func parseCredentials(text string) (session.Credentials, bool) {
	email, password, ok := strings.Cut(strings.TrimSpace(text), ":")
	email = strings.TrimSpace(email)
	if !ok || email == "" || password == "" || strings.ContainsAny(email, " \n") {
		return session.Credentials{}, false
	}
	return session.Credentials{Email: email, Password: password}, true
}
