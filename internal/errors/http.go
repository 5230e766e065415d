package errors

import (
	"fmt"
	"unicode/utf8"
)

const maxBodyLen = 512

// ClassifyHTTPError maps a failed HTTP response to a category:
// 4xx are irrecoverable except 408 and 429, everything else is retried.
func ClassifyHTTPError(statusCode int, body string, underlyingErr error) *ClassifiedError {
	body = truncate(body, maxBodyLen)
	return &ClassifiedError{
		Category:   httpCategory(statusCode),
		StatusCode: statusCode,
		Body:       body,
		Underlying: underlyingErr,
	}
}

func httpCategory(statusCode int) ErrorCategory {
	switch {
	case statusCode == 408, statusCode == 429:
		return Recoverable
	case statusCode >= 400 && statusCode < 500:
		return Irrecoverable
	default:
		return Recoverable
	}
}

// NewHTTPError builds a classified error for an unsuccessful response of operation.
func NewHTTPError(statusCode int, body string, operation string) *ClassifiedError {
	if body != "" {
		trimmed := truncate(body, 200)
		return ClassifyHTTPError(statusCode, body, fmt.Errorf("%s failed: HTTP %d: %s", operation, statusCode, trimmed))
	}
	return ClassifyHTTPError(statusCode, body, fmt.Errorf("%s failed: HTTP %d", operation, statusCode))
}

// NewNetworkError builds a recoverable error for a transport-level failure.
func NewNetworkError(operation string, err error) *ClassifiedError {
	return &ClassifiedError{
		Category:   Recoverable,
		Underlying: fmt.Errorf("%s network error: %w", operation, err),
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
