// Package poller samples the seller chat and reports the newest customer
// message whenever the tail of the conversation changes.
package poller

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sellerbridge/sellerbridge/pkg/bridgeerr"
	"github.com/sellerbridge/sellerbridge/pkg/browser"
	"github.com/sellerbridge/sellerbridge/pkg/correlation"
	"github.com/sellerbridge/sellerbridge/pkg/session"
	"github.com/sellerbridge/sellerbridge/pkg/utils"
)

const defaultSender = "Customer"

// Session is the part of session.Manager the poller drives.
type Session interface {
	Status() session.Status
	Do(ctx context.Context, op string, fn func(ctx context.Context, d browser.PageDriver) error) error
	Reconnect(ctx context.Context) error
	OnChat(location string) bool
	ChatURL() string
}

// Handler receives each new tail message. Errors are logged and not retried.
type Handler func(ctx context.Context, msg correlation.ExternalMessage) error

// Selectors locate the message list.
type Selectors struct {
	MessageItem string
	SenderName  string
	// IDAttr names an attribute with a stable message id, if the UI has one.
	IDAttr string
}

// Poller compares the identity of the last visible message against the last
// one it reported. Only the tail is checked, so several messages arriving
// between two ticks are reported as one.
type Poller struct {
	session  Session
	query    browser.Query
	handler  Handler
	onFailed func(error)
	now      func() time.Time

	// ticking serializes Tick. An overlapping tick is skipped.
	ticking sync.Mutex

	mu       sync.Mutex
	lastSeen string
}

// New creates a poller. onFailed is called when the session was lost and
// could not be rebuilt; it may be nil.
func New(s Session, sel Selectors, handler Handler, onFailed func(error)) *Poller {
	q := browser.Query{Selector: sel.MessageItem, IDAttr: sel.IDAttr}
	if sel.SenderName != "" {
		q.Fields = map[string]string{"sender": sel.SenderName}
	}
	return &Poller{
		session:  s,
		query:    q,
		handler:  handler,
		onFailed: onFailed,
		now:      time.Now,
	}
}

// Tick runs one poll. It returns the classified poll error, if any, after
// handling it; callers driven by a scheduler may ignore it.
func (p *Poller) Tick(ctx context.Context) error {
	if !p.ticking.TryLock() {
		log.Println("Poll still running, skipping tick")
		return nil
	}
	defer p.ticking.Unlock()

	if p.session.Status() != session.LoggedIn {
		return nil
	}

	var snapshot []browser.Element
	err := p.session.Do(ctx, "poll messages", func(ctx context.Context, d browser.PageDriver) error {
		if err := p.ensureOnChat(ctx, d); err != nil {
			return err
		}
		els, err := d.QueryAll(ctx, p.query)
		snapshot = els
		return err
	})
	if err != nil {
		p.handleFailure(ctx, err)
		return err
	}

	if len(snapshot) == 0 {
		return nil
	}
	tail := snapshot[len(snapshot)-1]
	id := Identity(tail)

	p.mu.Lock()
	if id == p.lastSeen {
		p.mu.Unlock()
		utils.Debugf("No new message (%d visible)", len(snapshot))
		return nil
	}
	p.lastSeen = id
	p.mu.Unlock()

	msg := correlation.ExternalMessage{
		ID:         id,
		Sender:     sender(tail),
		Text:       tail.Text,
		ObservedAt: p.now(),
	}
	log.Printf("New message from %s", msg.Sender)
	if p.handler != nil {
		if err := p.handler(ctx, msg); err != nil {
			log.Printf("Error forwarding message %s: %v", id, err)
		}
	}
	return nil
}

func (p *Poller) ensureOnChat(ctx context.Context, d browser.PageDriver) error {
	url, err := d.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if p.session.OnChat(url) {
		return nil
	}
	log.Printf("Navigating back to chat from %s", url)
	return d.Navigate(ctx, p.session.ChatURL())
}

func (p *Poller) handleFailure(ctx context.Context, err error) {
	switch {
	case errors.Is(err, bridgeerr.ErrNotLoggedIn):
		return
	case bridgeerr.IsSessionLost(err):
		log.Printf("Session lost while polling: %v", err)
		if rerr := p.session.Reconnect(ctx); rerr != nil {
			log.Printf("Reconnect failed: %v", rerr)
			if p.onFailed != nil {
				p.onFailed(rerr)
			}
			return
		}
		log.Println("Reconnected to seller center")
	default:
		log.Printf("Error polling messages: %v", err)
	}
}

// LastSeen returns the identity of the last reported message.
func (p *Poller) LastSeen() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// Reset forgets the last reported message, so the next tick reports the
// current tail again.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = ""
}

// Identity returns a stable id for a message element: the UI-provided id if
// present, else a hash of sender and text. Two identical consecutive
// messages from the same sender therefore share an identity.
func Identity(el browser.Element) string {
	if el.ID != "" {
		return "id:" + el.ID
	}
	sum := sha256.Sum256([]byte(sender(el) + "\x00" + el.Text))
	return "sha:" + hex.EncodeToString(sum[:12])
}

func sender(el browser.Element) string {
	if name := el.Fields["sender"]; name != "" {
		return name
	}
	return defaultSender
}
