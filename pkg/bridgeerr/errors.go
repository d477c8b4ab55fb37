// Package bridgeerr defines the error taxonomy shared by the session, poller
// and bridge packages. Remote-interaction failures are classified into these
// types at the session boundary so callers never see raw transport errors.
package bridgeerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoggedIn is returned when an operation needs a live, authenticated session.
	ErrNotLoggedIn = errors.New("not logged in to the seller center")

	// ErrNoCredentials is returned by reconnect when no credentials were ever accepted.
	ErrNoCredentials = errors.New("no cached credentials; use /login to sign in again")
)

// AuthReason describes why a login attempt was rejected.
type AuthReason string

const (
	AuthInvalidCredentials AuthReason = "invalid_credentials"
	AuthTwoFactorRequired  AuthReason = "two_factor_required"
)

// AuthError is fatal to the current login attempt and needs operator action.
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case AuthTwoFactorRequired:
		return "auth error: 2FA required. Please login manually first to disable 2FA"
	case AuthInvalidCredentials:
		return "auth error: login verification failed. Please check credentials"
	default:
		return fmt.Sprintf("auth error: %s", e.Reason)
	}
}

// SessionLostError means the remote session went away; it is recovered by reconnecting.
type SessionLostError struct {
	Op  string
	Err error
}

func (e *SessionLostError) Error() string {
	return fmt.Sprintf("session lost during %s: %v", e.Op, e.Err)
}

func (e *SessionLostError) Unwrap() error {
	return e.Err
}

// TimeoutError is local to one operation. It is retried only on the next scheduled tick.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout during %s: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// CorrelationNotFoundError is reported to the operator when a reply cannot be
// matched to a forwarded customer message.
type CorrelationNotFoundError struct {
	OutboundID string
}

func (e *CorrelationNotFoundError) Error() string {
	return fmt.Sprintf("customer not found for this reply (notification %s)", e.OutboundID)
}

// RelayFailureError means a reply could not be submitted to the remote chat.
// The correlation entry is kept so the operator can retry.
type RelayFailureError struct {
	Token string
	Err   error
}

func (e *RelayFailureError) Error() string {
	return fmt.Sprintf("failed to send reply for %s: %v", e.Token, e.Err)
}

func (e *RelayFailureError) Unwrap() error {
	return e.Err
}

// IsSessionLost reports whether err is, or wraps, a SessionLostError.
func IsSessionLost(err error) bool {
	var lost *SessionLostError
	return errors.As(err, &lost)
}

// IsTimeout reports whether err is, or wraps, a TimeoutError.
func IsTimeout(err error) bool {
	var timeout *TimeoutError
	return errors.As(err, &timeout)
}
