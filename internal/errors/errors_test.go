package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHTTPError(t *testing.T) {
	cases := map[int]ErrorCategory{
		400: Irrecoverable,
		401: Irrecoverable,
		404: Irrecoverable,
		408: Recoverable,
		429: Recoverable,
		500: Recoverable,
		503: Recoverable,
		302: Recoverable,
	}
	for code, want := range cases {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			got := NewHTTPError(code, "", "chat")
			assert.Equal(t, want, got.Category)
			assert.Contains(t, got.Error(), fmt.Sprintf("HTTP %d", code))
		})
	}
}

func TestIsIrrecoverable_Wrapped(t *testing.T) {
	base := NewHTTPError(401, `{"error":"bad key"}`, "embed")
	wrapped := fmt.Errorf("embed text: %w", base)

	assert.True(t, IsIrrecoverable(wrapped))
	assert.False(t, IsIrrecoverable(fmt.Errorf("x: %w", NewNetworkError("embed", errors.New("reset")))))
	assert.False(t, IsIrrecoverable(errors.New("plain")))
	assert.False(t, IsIrrecoverable(nil))
}

func TestIsIrrecoverable_Context(t *testing.T) {
	assert.True(t, IsIrrecoverable(context.Canceled))
	assert.True(t, IsIrrecoverable(fmt.Errorf("call: %w", context.DeadlineExceeded)))
}

func TestClassifyHTTPError_TruncatesBody(t *testing.T) {
	long := make([]byte, 2*maxBodyLen)
	for i := range long {
		long[i] = 'a'
	}
	e := ClassifyHTTPError(500, string(long), errors.New("boom"))
	assert.Len(t, e.Body, maxBodyLen)
	assert.Equal(t, "[Recoverable] HTTP 500: boom", e.Error())
}

func TestHTTPError_TruncatesOnRuneBoundary(t *testing.T) {
	// 3-byte runes; neither 512 nor 200 is a multiple of 3.
	body := strings.Repeat("服务繁忙", 100)
	e := NewHTTPError(503, body, "chat")

	assert.True(t, utf8.ValidString(e.Body))
	assert.LessOrEqual(t, len(e.Body), maxBodyLen)
	assert.Equal(t, 510, len(e.Body))
	assert.True(t, utf8.ValidString(e.Error()))
	assert.Contains(t, e.Error(), "HTTP 503: "+strings.Repeat("服务繁忙", 16)+"服务")
}

func TestRetry(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return NewHTTPError(503, "", "chat")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on irrecoverable", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			return NewHTTPError(400, "", "chat")
		})
		assert.True(t, IsIrrecoverable(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("bounded", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 2, time.Millisecond, func() error {
			calls++
			return NewHTTPError(500, "", "chat")
		})
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("spent budget is final", func(t *testing.T) {
		err := Retry(context.Background(), 1, time.Millisecond, func() error {
			return NewHTTPError(503, "", "chat")
		})
		assert.True(t, IsIrrecoverable(err))
		assert.Contains(t, err.Error(), "HTTP 503")
	})

	t.Run("zero budget leaves error recoverable", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 0, time.Millisecond, func() error {
			calls++
			return NewNetworkError("embed", errors.New("reset"))
		})
		assert.False(t, IsIrrecoverable(err))
		assert.Equal(t, 1, calls)
	})
}
