// Package browsertest provides a scriptable in-memory PageDriver.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sellerbridge/sellerbridge/pkg/browser"
)

// Typed records one Type call.
type Typed struct {
	Selector string
	Text     string
}

// Driver is a fake page. Selectors listed in Present (or having Elements)
// satisfy WaitFor immediately; anything else times out at once.
type Driver struct {
	mu sync.Mutex

	URL       string
	Present   map[string]bool
	Elements  map[string][]browser.Element
	Fail      map[string]error // keyed by op: navigate, waitFor, queryAll, type, click, currentURL
	Connected bool
	Closed    bool

	// OnClick runs after a successful click on the selector.
	OnClick map[string]func(d *Driver)

	Navigated []string
	Waited    []string
	Clicked   []string
	Typed     []Typed
	Queries   int
}

// NewDriver returns a connected driver with empty page state.
func NewDriver() *Driver {
	return &Driver{
		Present:   make(map[string]bool),
		Elements:  make(map[string][]browser.Element),
		Fail:      make(map[string]error),
		OnClick:   make(map[string]func(d *Driver)),
		Connected: true,
	}
}

// SetElements replaces the elements matched by selector.
func (d *Driver) SetElements(selector string, elements ...browser.Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Elements[selector] = elements
}

// SetPresent marks selectors as visible on the page.
func (d *Driver) SetPresent(selectors ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range selectors {
		d.Present[s] = true
	}
}

// FailWith makes op return err until cleared with a nil err.
func (d *Driver) FailWith(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.Fail, op)
		return
	}
	d.Fail[op] = err
}

// Disconnect simulates the browser going away.
func (d *Driver) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Connected = false
}

// TypedTexts returns a copy of the recorded Type calls.
func (d *Driver) TypedTexts() []Typed {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Typed(nil), d.Typed...)
}

func (d *Driver) check(op string) error {
	if !d.Connected || d.Closed {
		return fmt.Errorf("%s: %w", op, browser.ErrDisconnected)
	}
	if err, ok := d.Fail[op]; ok {
		return err
	}
	return nil
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("navigate"); err != nil {
		return err
	}
	d.URL = url
	d.Navigated = append(d.Navigated, url)
	return nil
}

func (d *Driver) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("waitFor"); err != nil {
		return err
	}
	d.Waited = append(d.Waited, selector)
	if d.Present[selector] || len(d.Elements[selector]) > 0 {
		return nil
	}
	return fmt.Errorf("wait %q: %w", selector, browser.ErrTimeout)
}

func (d *Driver) QueryAll(_ context.Context, q browser.Query) ([]browser.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("queryAll"); err != nil {
		return nil, err
	}
	d.Queries++
	if els, ok := d.Elements[q.Selector]; ok {
		return append([]browser.Element(nil), els...), nil
	}
	if d.Present[q.Selector] {
		return []browser.Element{{Text: q.Selector}}, nil
	}
	return nil, nil
}

func (d *Driver) Type(_ context.Context, selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("type"); err != nil {
		return err
	}
	d.Typed = append(d.Typed, Typed{Selector: selector, Text: text})
	return nil
}

func (d *Driver) Click(_ context.Context, selector string) error {
	d.mu.Lock()
	if err := d.check("click"); err != nil {
		d.mu.Unlock()
		return err
	}
	d.Clicked = append(d.Clicked, selector)
	hook := d.OnClick[selector]
	d.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return nil
}

func (d *Driver) CurrentURL(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("currentURL"); err != nil {
		return "", err
	}
	return d.URL, nil
}

func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Connected && !d.Closed
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// Factory hands out drivers from a setup function, recording each one.
type Factory struct {
	mu      sync.Mutex
	Setup   func(d *Driver)
	Err     error
	Drivers []*Driver
}

// ErrLaunch is a convenient launch failure for tests.
var ErrLaunch = errors.New("browser launch failed")

func (f *Factory) New(_ context.Context) (browser.PageDriver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	d := NewDriver()
	if f.Setup != nil {
		f.Setup(d)
	}
	f.Drivers = append(f.Drivers, d)
	return d, nil
}

// Last returns the most recently created driver, or nil.
func (f *Factory) Last() *Driver {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Drivers) == 0 {
		return nil
	}
	return f.Drivers[len(f.Drivers)-1]
}

// Count reports how many drivers were created.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Drivers)
}
