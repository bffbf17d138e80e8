// Package autherr defines the error taxonomy shared by the token store, rate limiter,
// session manager and password lifecycle. Services return these; transports map them.
package autherr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials is returned for an unknown identifier or wrong secret. The two cases are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLockedOut is returned while an identity is inside its lockout window.
	ErrLockedOut = errors.New("too many failed attempts")
	// ErrNotFound is returned for an unknown token, session or user.
	ErrNotFound = errors.New("not found")
	// ErrExpired is returned for a token or session past its expiry.
	ErrExpired = errors.New("expired")
	// ErrAlreadyUsed is returned for a one-time token that was already consumed.
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidArgument is returned for malformed input, including password policy failures.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthorized is returned when the caller lacks the required capability or session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInternal wraps storage, hashing and other infrastructure failures.
	ErrInternal = errors.New("internal error")
)

// LockedOutError carries the instant the lockout ends. It matches ErrLockedOut.
type LockedOutError struct {
	Until time.Time
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("%s: locked until %s", ErrLockedOut, e.Until.Format(time.RFC3339))
}

func (e *LockedOutError) Is(target error) bool { return target == ErrLockedOut }

// RetryAfter returns the remaining lockout relative to now, never negative.
func (e *LockedOutError) RetryAfter(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// MinutesRemaining rounds the remaining lockout up to whole minutes (minimum 1).
func (e *LockedOutError) MinutesRemaining(now time.Time) int {
	d := e.RetryAfter(now)
	m := int((d + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

// PolicyError lists every password policy rule the candidate failed. It matches ErrInvalidArgument.
type PolicyError struct {
	Problems []string
}

func (e *PolicyError) Error() string {
	return "password does not meet requirements: " + strings.Join(e.Problems, "; ")
}

func (e *PolicyError) Is(target error) bool { return target == ErrInvalidArgument }

type internalError struct {
	cause error
}

func (e *internalError) Error() string { return "internal error: " + e.cause.Error() }
func (e *internalError) Unwrap() error { return e.cause }
func (e *internalError) Is(target error) bool {
	return target == ErrInternal
}

// Internal wraps err so it matches ErrInternal while keeping the cause for logs.
// Errors already in the taxonomy are returned unchanged.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return &internalError{cause: err}
}

// Invalid returns an error matching ErrInvalidArgument with a caller-facing message.
func Invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

// IsDomain reports whether err already belongs to the taxonomy.
func IsDomain(err error) bool {
	for _, target := range []error{
		ErrInvalidCredentials, ErrLockedOut, ErrNotFound, ErrExpired,
		ErrAlreadyUsed, ErrInvalidArgument, ErrUnauthorized, ErrInternal,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
