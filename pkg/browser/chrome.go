package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultOpTimeout = 10 * time.Second
	launchTimeout    = 30 * time.Second
)

// ChromeFactory launches a local Chrome/Chromium per driver.
type ChromeFactory struct {
	Headless  bool
	UserAgent string
	// OpTimeout bounds operations that have no explicit wait budget.
	OpTimeout time.Duration
	// ExecPath overrides the browser binary lookup.
	ExecPath string
}

// New launches the browser and opens one tab.
func (f *ChromeFactory) New(ctx context.Context) (PageDriver, error) {
	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	opTimeout := f.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1366, 768),
		chromedp.UserAgent(ua),
	)
	if f.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.ExecPath))
	}

	// The browser outlives the request that opened it, so it hangs off Background.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		ctx:       browserCtx,
		opTimeout: opTimeout,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}

	launched := make(chan error, 1)
	go func() {
		launched <- chromedp.Run(browserCtx)
	}()

	select {
	case err := <-launched:
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	case <-time.After(launchTimeout):
		d.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", ErrTimeout)
	case <-ctx.Done():
		d.Close()
		return nil, ctx.Err()
	}

	return d, nil
}

// ChromeDriver implements PageDriver over the Chrome DevTools protocol.
type ChromeDriver struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opTimeout time.Duration
	closeOnce sync.Once
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, 0, chromedp.Navigate(url))
}

func (d *ChromeDriver) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (d *ChromeDriver) QueryAll(ctx context.Context, q Query) ([]Element, error) {
	script, err := queryScript(q)
	if err != nil {
		return nil, err
	}
	var elements []Element
	if err := d.run(ctx, 0, chromedp.Evaluate(script, &elements)); err != nil {
		return nil, err
	}
	return elements, nil
}

func (d *ChromeDriver) Type(ctx context.Context, selector, text string) error {
	return d.run(ctx, 0,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	return d.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery))
}

func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, 0, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (d *ChromeDriver) IsConnected() bool {
	return d.ctx.Err() == nil
}

func (d *ChromeDriver) Close() error {
	d.closeOnce.Do(func() {
		_ = chromedp.Cancel(d.ctx)
		d.cancel()
	})
	return nil
}

func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if !d.IsConnected() {
		return ErrDisconnected
	}
	if timeout <= 0 {
		timeout = d.opTimeout
	}

	opCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return classify(d.ctx, opCtx, err)
}

func classify(browserCtx, opCtx context.Context, err error) error {
	if browserCtx.Err() != nil || looksDisconnected(err) {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func looksDisconnected(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "disconnected") ||
		strings.Contains(msg, "websocket") ||
		strings.Contains(msg, "target closed")
}

// queryScript builds the page-side snapshot expression for q. The query is
// JSON-encoded so selectors never need escaping.
func queryScript(q Query) (string, error) {
	encoded, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const q = %s;
  const out = [];
  document.querySelectorAll(q.selector).forEach((el) => {
    const text = (el.innerText || el.textContent || '').trim();
    if (!text) return;
    const fields = {};
    for (const [name, sel] of Object.entries(q.fields || {})) {
      const sub = el.querySelector(sel);
      if (sub) fields[name] = (sub.textContent || '').trim();
    }
    out.push({id: q.idAttr ? (el.getAttribute(q.idAttr) || '') : '', text: text, fields: fields});
  });
  return out;
})()`, encoded), nil
}
