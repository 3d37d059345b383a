package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Configuration errors returned by KVBuilder.Build.
var (
	ErrTransportNotSet = errors.New("ratelimit: transport not set")
	ErrClockNotSet     = errors.New("ratelimit: clock not set")
)

// ErrNegativeWindow is returned by GetLimit for a window below zero. No store call is made.
var ErrNegativeWindow = errors.New("ratelimit: window must not be negative")

// WindowTooLargeError is returned when a requested window exceeds the
// repository's maximum. No store call is made.
type WindowTooLargeError struct {
	Window time.Duration
	Max    time.Duration
}

func (e *WindowTooLargeError) Error() string {
	return fmt.Sprintf("ratelimit: window %dms is longer than max %dms",
		e.Window.Milliseconds(), e.Max.Milliseconds())
}

// CountOverflowError is returned when the store reports a count that does not fit a uint32.
type CountOverflowError struct {
	Count int64
}

func (e *CountOverflowError) Error() string {
	return fmt.Sprintf("ratelimit: could not convert store count %d to uint32", e.Count)
}

// StoreError wraps a transport failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ratelimit: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsPolicyViolation reports whether err rejects the request itself rather
// than signalling a server-side failure.
func IsPolicyViolation(err error) bool {
	var tooLarge *WindowTooLargeError

	return errors.As(err, &tooLarge) || errors.Is(err, ErrNegativeWindow)
}

// IsRetryable reports whether the caller may try again later.
func IsRetryable(err error) bool {
	var storeErr *StoreError

	return errors.As(err, &storeErr)
}
