// Package browser defines the page-driver capabilities the bridge consumes
// from a remote web UI, and a Chrome DevTools implementation of them.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDisconnected means the browser or page is gone and the session must be rebuilt.
	ErrDisconnected = errors.New("browser disconnected")

	// ErrTimeout means a bounded wait elapsed before the condition held.
	ErrTimeout = errors.New("browser operation timed out")
)

// Query selects a list of elements. Fields maps a result field name to a
// sub-selector evaluated inside each matched element. IDAttr, when set, names
// an attribute carrying a stable element identity.
type Query struct {
	Selector string            `json:"selector"`
	Fields   map[string]string `json:"fields,omitempty"`
	IDAttr   string            `json:"idAttr,omitempty"`
}

// Element is the text snapshot of one matched element.
type Element struct {
	ID     string            `json:"id"`
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields"`
}

// PageDriver drives a single remote page. Implementations bound every call
// by a wait budget and report ErrDisconnected / ErrTimeout through wrapping.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// QueryAll returns matches in document order, which the chat UI renders oldest first.
	QueryAll(ctx context.Context, q Query) ([]Element, error)
	// Type replaces the value of the field matched by selector with text.
	Type(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	CurrentURL(ctx context.Context) (string, error)
	IsConnected() bool
	Close() error
}

// Factory opens fresh page drivers.
type Factory interface {
	New(ctx context.Context) (PageDriver, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context) (PageDriver, error)

func (f FactoryFunc) New(ctx context.Context) (PageDriver, error) {
	return f(ctx)
}
