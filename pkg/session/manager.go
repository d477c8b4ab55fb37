// Package session owns the authenticated seller-center browser session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sellerbridge/sellerbridge/pkg/bridgeerr"
	"github.com/sellerbridge/sellerbridge/pkg/browser"
)

// Status is the lifecycle state of the remote session.
type Status int

const (
	LoggedOut Status = iota
	LoggingIn
	LoggedIn
	Failed
)

func (s Status) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case LoggingIn:
		return "logging_in"
	case LoggedIn:
		return "logged_in"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of one login attempt.
type Outcome int

const (
	Success Outcome = iota
	InvalidCredentials
	TwoFactorRequired
	Timeout
	UnknownFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case InvalidCredentials:
		return "invalid_credentials"
	case TwoFactorRequired:
		return "two_factor_required"
	case Timeout:
		return "timeout"
	default:
		return "unknown_failure"
	}
}

// Credentials are held in memory only.
type Credentials struct {
	Email    string
	Password string
}

// String never prints the password.
func (c Credentials) String() string {
	return fmt.Sprintf("%s:******", c.Email)
}

// Session is a point-in-time view of the manager.
type Session struct {
	Status         Status
	Email          string
	Location       string
	BrowserRunning bool
	LoggedInAt     time.Time
}

// Selectors used during login.
type Selectors struct {
	EmailInput    string
	PasswordInput string
	SubmitButton  string
	Dashboard     string
	TwoFactor     string
	LoginError    string
}

// Options configure a Manager.
type Options struct {
	SignInURL    string
	ChatURL      string
	Selectors    Selectors
	WaitTimeout  time.Duration
	LoginTimeout time.Duration
}

// Manager owns at most one live page driver. Do serializes every use of it,
// so at most one remote interaction is in flight.
type Manager struct {
	factory browser.Factory
	opts    Options

	// opMu is the single interaction slot. It is held across Establish and Do.
	opMu sync.Mutex

	mu         sync.RWMutex
	driver     browser.PageDriver
	status     Status
	creds      *Credentials
	location   string
	loggedInAt time.Time
}

// NewManager creates a manager that opens drivers from factory.
func NewManager(factory browser.Factory, opts Options) *Manager {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 30 * time.Second
	}
	return &Manager{factory: factory, opts: opts}
}

// Establish logs in with creds, replacing any existing session. The
// returned error is an *bridgeerr.AuthError for rejected credentials or 2FA,
// a *bridgeerr.TimeoutError when the dashboard never appeared, or the
// underlying failure otherwise.
func (m *Manager) Establish(ctx context.Context, creds Credentials) (Outcome, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.establish(ctx, creds)
}

func (m *Manager) establish(ctx context.Context, creds Credentials) (Outcome, error) {
	m.closeDriver()
	m.setStatus(LoggingIn)
	log.Printf("Logging in to seller center as %s", creds.Email)

	driver, err := m.factory.New(ctx)
	if err != nil {
		m.setStatus(Failed)
		return UnknownFailure, fmt.Errorf("start browser: %w", err)
	}

	outcome, err := m.login(ctx, driver, creds)
	if err != nil {
		_ = driver.Close()
		m.setStatus(Failed)
		log.Printf("Login failed (%s): %v", outcome, err)
		return outcome, err
	}

	m.mu.Lock()
	m.driver = driver
	m.status = LoggedIn
	m.creds = &creds
	m.location = m.opts.ChatURL
	m.loggedInAt = time.Now()
	m.mu.Unlock()

	log.Printf("Logged in to seller center as %s", creds.Email)
	return Success, nil
}

func (m *Manager) login(ctx context.Context, d browser.PageDriver, creds Credentials) (Outcome, error) {
	sel := m.opts.Selectors

	if err := d.Navigate(ctx, m.opts.SignInURL); err != nil {
		return failure(err, "open sign-in page")
	}
	if err := d.WaitFor(ctx, sel.EmailInput, m.opts.WaitTimeout); err != nil {
		return failure(err, "wait for sign-in form")
	}
	if err := d.Type(ctx, sel.EmailInput, creds.Email); err != nil {
		return failure(err, "type email")
	}
	if err := d.Type(ctx, sel.PasswordInput, creds.Password); err != nil {
		return failure(err, "type password")
	}
	if err := d.Click(ctx, sel.SubmitButton); err != nil {
		return failure(err, "submit sign-in form")
	}

	if err := d.WaitFor(ctx, sel.Dashboard, m.opts.LoginTimeout); err != nil {
		if errors.Is(err, browser.ErrDisconnected) {
			return failure(err, "wait for dashboard")
		}
		switch {
		case present(ctx, d, sel.TwoFactor):
			return TwoFactorRequired, &bridgeerr.AuthError{Reason: bridgeerr.AuthTwoFactorRequired}
		case present(ctx, d, sel.LoginError), present(ctx, d, sel.EmailInput):
			return InvalidCredentials, &bridgeerr.AuthError{Reason: bridgeerr.AuthInvalidCredentials}
		default:
			return Timeout, &bridgeerr.TimeoutError{Op: "login", Err: err}
		}
	}

	if m.opts.ChatURL != "" {
		if err := d.Navigate(ctx, m.opts.ChatURL); err != nil {
			return failure(err, "open chat")
		}
	}
	return Success, nil
}

func failure(err error, op string) (Outcome, error) {
	err = classify(op, err)
	if bridgeerr.IsTimeout(err) {
		return Timeout, err
	}
	return UnknownFailure, err
}

func present(ctx context.Context, d browser.PageDriver, selector string) bool {
	if selector == "" {
		return false
	}
	els, err := d.QueryAll(ctx, browser.Query{Selector: selector})
	return err == nil && len(els) > 0
}

// Teardown closes the driver and forgets the session. It waits for an
// interaction in flight to finish first. Cached credentials survive so a
// later Reconnect can reuse them. Safe to call repeatedly.
func (m *Manager) Teardown() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	driver := m.driver
	m.driver = nil
	m.status = LoggedOut
	m.location = ""
	m.mu.Unlock()

	if driver == nil {
		return nil
	}
	log.Println("Closing browser session")
	return driver.Close()
}

// Reconnect rebuilds the session from cached credentials.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	creds := m.creds
	m.mu.RUnlock()

	if creds == nil {
		m.closeDriver()
		m.setStatus(Failed)
		return bridgeerr.ErrNoCredentials
	}

	log.Println("Reconnecting to seller center")
	_, err := m.establish(ctx, *creds)
	return err
}

// Do runs fn against the live page while holding the interaction slot.
// Disconnects become *bridgeerr.SessionLostError and expired waits become
// *bridgeerr.TimeoutError.
func (m *Manager) Do(ctx context.Context, op string, fn func(ctx context.Context, d browser.PageDriver) error) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	driver, status := m.driver, m.status
	m.mu.RUnlock()

	if status != LoggedIn || driver == nil {
		return bridgeerr.ErrNotLoggedIn
	}
	if !driver.IsConnected() {
		return &bridgeerr.SessionLostError{Op: op, Err: browser.ErrDisconnected}
	}

	err := classify(op, fn(ctx, driver))

	if !bridgeerr.IsSessionLost(err) {
		if url, uerr := driver.CurrentURL(ctx); uerr == nil {
			m.mu.Lock()
			m.location = url
			m.mu.Unlock()
		}
	}
	return err
}

// OnChat reports whether location is the chat surface.
func (m *Manager) OnChat(location string) bool {
	if m.opts.ChatURL == "" {
		return true
	}
	return strings.HasPrefix(location, m.opts.ChatURL)
}

// ChatURL is the address of the chat surface.
func (m *Manager) ChatURL() string {
	return m.opts.ChatURL
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Session{
		Status:     m.status,
		Location:   m.location,
		LoggedInAt: m.loggedInAt,
	}
	if m.creds != nil {
		s.Email = m.creds.Email
	}
	s.BrowserRunning = m.driver != nil && m.driver.IsConnected()
	return s
}

// LoggedIn reports whether the session is authenticated and its browser alive.
func (m *Manager) LoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status == LoggedIn && m.driver != nil && m.driver.IsConnected()
}

// Status returns the lifecycle state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// HasCredentials reports whether a successful login cached credentials.
func (m *Manager) HasCredentials() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds != nil
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) closeDriver() {
	m.mu.Lock()
	driver := m.driver
	m.driver = nil
	m.location = ""
	m.mu.Unlock()
	if driver != nil {
		_ = driver.Close()
	}
}

func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bridgeerr.ErrNotLoggedIn), bridgeerr.IsSessionLost(err), bridgeerr.IsTimeout(err):
		return err
	case errors.Is(err, browser.ErrDisconnected):
		return &bridgeerr.SessionLostError{Op: op, Err: err}
	case errors.Is(err, browser.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &bridgeerr.TimeoutError{Op: op, Err: err}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
