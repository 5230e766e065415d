package errors

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Retry runs op until it succeeds, returns an irrecoverable error, or
// maxRetries re-runs have been spent. Waits grow exponentially from
// initial. Once a positive retry budget is spent the last error is marked
// irrecoverable so outer layers do not retry it again.
func Retry(ctx context.Context, maxRetries int, initial time.Duration, op func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.MaxInterval = 10 * time.Second
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxRetries)), ctx)
	err := backoff.Retry(func() error {
		err := op()
		if err != nil && IsIrrecoverable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	if err != nil && maxRetries > 0 && !IsIrrecoverable(err) {
		return NewIrrecoverable(err)
	}
	return err
}
