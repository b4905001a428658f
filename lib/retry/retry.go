package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxDelay caps the gap between two attempts.
const maxDelay = time.Minute

// Policy bounds a retried operation. Delays double from BaseDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// NotifyFunc is called after a failed attempt that will be retried.
type NotifyFunc func(err error, attempt int, next time.Duration)

// Permanent marks err as not worth retrying. Do returns it unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, the context ends
// or MaxAttempts is used up. The error of the last attempt is returned.
func Do(ctx context.Context, p Policy, op func(attempt int) error, notify NotifyFunc) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = maxInterval(p.BaseDelay, attempts)
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return op(attempt)
	}, b, func(err error, next time.Duration) {
		if notify != nil {
			notify(err, attempt, next)
		}
	})
}

// maxInterval is the delay before the last attempt, capped at maxDelay
// unless the base delay alone is already longer.
func maxInterval(base time.Duration, attempts int) time.Duration {
	if base >= maxDelay {
		return base
	}
	interval := base
	for i := 1; i < attempts && interval > 0 && interval < maxDelay; i++ {
		interval *= 2
	}
	return min(interval, maxDelay)
}
