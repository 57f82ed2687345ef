// Package retry runs remote calls under a bounded exponential backoff policy.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy configures Do
type Policy struct {
	// MaxRetries is the number of additional attempts after the first one
	MaxRetries int
	BaseDelay  time.Duration
	JitterMax  time.Duration
	// Retryable reports whether an error may be retried; nil means never retry
	Retryable func(error) bool
	// Sleep waits between attempts; nil uses a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each backoff sleep
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy is two additional attempts starting at 500ms with up to 250ms jitter
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		JitterMax:  250 * time.Millisecond,
		Retryable:  retryable,
	}
}

// Delay returns base * 2^attempt + random(0, jitter) for a zero-based attempt
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if p.JitterMax > 0 {
		d += time.Duration(rand.Int63n(int64(p.JitterMax) + 1))
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, or the retry budget
// is spent. The error of the last attempt is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt >= p.MaxRetries {
			return fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return fmt.Errorf("retry interrupted: %w", err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
