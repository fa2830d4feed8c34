package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityExists is returned when registration targets an email,
	// username, or provider subject that is already taken.
	ErrIdentityExists = errors.New("identity already exists")
	// ErrIdentityNotFound is returned when a lookup by email or UID matches nothing.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrInvalidCredentials is returned for both an unknown email and a wrong
	// password. Callers get no signal about which half failed.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrTokenInvalid is returned for a token that fails signature, shape, or
	// single-use checks.
	ErrTokenInvalid = errors.New("token invalid or already used")
	// ErrTokenExpired is returned for a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMissing is returned when no token was presented at all.
	ErrTokenMissing = errors.New("token missing")
	// ErrAccessTokenInvalid is returned when the access verification gate
	// rejects a token, including a refresh token presented as access.
	ErrAccessTokenInvalid = errors.New("access token invalid")
	// ErrRefreshTokenInvalid is returned when the refresh verification gate
	// rejects a token, including a revoked or unknown refresh token.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	// ErrAccessTokenRequired is returned when an operation needs an access
	// token and got a refresh token instead.
	ErrAccessTokenRequired = errors.New("access token required")
	// ErrInvalidInput is returned when request fields fail validation before
	// any credential or token work happens.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEngineNotReady is returned when an Engine method is called on a nil
	// or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// PersistenceError wraps a storage failure so callers can distinguish a
// backend outage from a domain rejection.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotificationError wraps a mail delivery failure. Operations that send mail
// after a committed side effect return it without rolling the side effect
// back, so callers can retry delivery.
type NotificationError struct {
	Op  string
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failure during %s: %v", e.Op, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// FederationError wraps a failure while talking to an external identity
// provider during code exchange.
type FederationError struct {
	Provider string
	Err      error
}

func (e *FederationError) Error() string {
	return fmt.Sprintf("federation failure with provider %s: %v", e.Provider, e.Err)
}

func (e *FederationError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
