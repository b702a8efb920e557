package collector

import (
	"errors"
	"fmt"
	"time"
)

// UnavailableError reports a collector that could not reach its backing
// system within the cycle: a timeout, connection failure, or transport
// error. It is degrading, not fatal: the cycle proceeds with the source's
// fields unknown.
type UnavailableError struct {
	// Source is the id of the unavailable collector.
	Source string

	// Timeout is the per-collector timeout that elapsed, zero when the
	// failure was not a timeout.
	Timeout time.Duration

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("source %q unavailable: timed out after %s", e.Source, e.Timeout)
	}
	return fmt.Sprintf("source %q unavailable: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// AuthError reports credentials rejected by the backing system. It is
// degrading for the cycle but logged at higher severity: the runner falls
// back to the source's last good snapshot if one is fresh enough.
type AuthError struct {
	// Source is the id of the collector whose credentials were rejected.
	Source string

	// Message describes the rejection.
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("source %q authentication failed: %s", e.Source, e.Message)
}

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsAuthFailure reports whether err is (or wraps) an AuthError.
func IsAuthFailure(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
