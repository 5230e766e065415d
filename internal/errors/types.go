// Package errors classifies provider failures so that retry loops can tell
// transient problems from permanent ones.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory determines how an error is handled by retry logic.
type ErrorCategory int

const (
	// Recoverable errors are retried with exponential backoff
	// (5xx responses, timeouts, connection failures).
	Recoverable ErrorCategory = iota

	// Irrecoverable errors fail immediately (400, 401, 403, malformed payloads).
	Irrecoverable
)

func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ClassifiedError wraps an error with its retry category.
type ClassifiedError struct {
	Category   ErrorCategory
	StatusCode int    // 0 for non-HTTP errors
	Body       string // response body, truncated
	Underlying error
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Category, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Category, e.Underlying)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Underlying
}

// IsIrrecoverable reports whether err must not be retried. Context
// cancellation and deadline errors are never retried.
func IsIrrecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category == Irrecoverable
	}
	return false
}

// NewIrrecoverable marks err as permanent.
func NewIrrecoverable(err error) *ClassifiedError {
	return &ClassifiedError{Category: Irrecoverable, Underlying: err}
}
