package bridge

import (
	"context"
	"log"
	"time"

	"github.com/sellerbridge/sellerbridge/pkg/bridgeerr"
	"github.com/sellerbridge/sellerbridge/pkg/browser"
	"github.com/sellerbridge/sellerbridge/pkg/bus"
	"github.com/sellerbridge/sellerbridge/pkg/correlation"
)

// Relayer runs page interactions on the live seller session.
type Relayer interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context, d browser.PageDriver) error) error
}

// RelayOptions locate the chat composer.
type RelayOptions struct {
	ChatInput   string
	SendButton  string
	WaitTimeout time.Duration
	// Settle is how long to wait after clicking send.
	Settle time.Duration
}

// Router resolves operator replies to conversation tokens and relays them
// into the seller chat. The reply is typed into the chat that is currently
// open in the seller center.
type Router struct {
	store   *correlation.Store
	session Relayer
	opts    RelayOptions
}

func NewRouter(store *correlation.Store, session Relayer, opts RelayOptions) *Router {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 5 * time.Second
	}
	return &Router{store: store, session: session, opts: opts}
}

// Resolve maps a reply to its token: first by the replied-to notification
// id, then by the token quoted in the replied-to text.
func (r *Router) Resolve(in bus.InboundMessage) (string, error) {
	if token, ok := r.store.ResolveByOutboundID(in.ReplyToID); ok {
		return token, nil
	}
	if token, ok := ParseToken(in.ReplyToText); ok {
		if _, ok := r.store.GetMessage(token); ok {
			return token, nil
		}
	}
	return "", &bridgeerr.CorrelationNotFoundError{OutboundID: in.ReplyToID}
}

// Relay submits text for token. On failure the entry is kept so the
// operator can retry.
func (r *Router) Relay(ctx context.Context, token, text string) (correlation.HistoryRecord, error) {
	if _, ok := r.store.GetMessage(token); !ok {
		return correlation.HistoryRecord{}, &bridgeerr.CorrelationNotFoundError{OutboundID: token}
	}

	err := r.session.Do(ctx, "send reply", func(ctx context.Context, d browser.PageDriver) error {
		if err := d.WaitFor(ctx, r.opts.ChatInput, r.opts.WaitTimeout); err != nil {
			return err
		}
		if err := d.Click(ctx, r.opts.ChatInput); err != nil {
			return err
		}
		if err := d.Type(ctx, r.opts.ChatInput, text); err != nil {
			return err
		}
		if err := d.Click(ctx, r.opts.SendButton); err != nil {
			return err
		}
		return settle(ctx, r.opts.Settle)
	})
	if err != nil {
		return correlation.HistoryRecord{}, &bridgeerr.RelayFailureError{Token: token, Err: err}
	}

	rec, err := r.store.AppendHistory(token, text)
	if err != nil {
		// The reply went out; only the journal mirror failed.
		log.Printf("Warning: %v", err)
	}
	log.Printf("Relayed reply for %s", token)
	return rec, nil
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
