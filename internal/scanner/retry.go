package scanner

import (
	"context"
	"time"
)

const defaultRetryBackoff = 100 * time.Millisecond

// retryPolicy bounds the attempts of a single window query. Zero MaxRetries
// means one attempt with no waiting, the scanner's default.
type retryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// do runs fn up to MaxRetries+1 times, doubling the delay between attempts.
// notify is invoked before each wait with the attempt that just failed, the
// upcoming delay, and the error. The wait is abandoned as soon as ctx ends.
func (p retryPolicy) do(ctx context.Context, notify func(attempt int, delay time.Duration, err error), fn func(context.Context) error) error {
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	delay := p.Backoff
	if delay <= 0 {
		delay = defaultRetryBackoff
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt > retries {
			return err
		}
		if notify != nil {
			notify(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
