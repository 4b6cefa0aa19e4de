// Package retry holds the retry policy shared by every remote call of the
// client core: availability fetches, hold requests and checkout submission.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Classifier decides whether a failed attempt may be repeated.
type Classifier func(err error) bool

// Policy describes how many times and how far apart an operation is tried.
type Policy struct {
	// MaxAttempts counts the first try; values below 1 mean a single try.
	MaxAttempts int
	Delay       time.Duration
	// Multiplier > 1 turns the fixed delay into exponential backoff capped at MaxDelay.
	Multiplier float64
	MaxDelay   time.Duration
	Retryable  Classifier
	// OnRetry is called before each sleep; nil to ignore.
	OnRetry func(err error, wait time.Duration)
}

// Never is a policy that tries exactly once.
func Never() Policy {
	return Policy{MaxAttempts: 1}
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx is done. The last error is returned unchanged.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(attempts-1)), ctx)

	operation := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = backoff.Notify(p.OnRetry)
	}
	return backoff.RetryNotify(operation, b, notify)
}

func (p Policy) backOff() backoff.BackOff {
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(p.Delay)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Delay
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		eb.MaxInterval = p.MaxDelay
	}
	return eb
}
