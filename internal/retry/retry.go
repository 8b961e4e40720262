// Package retry runs an operation a bounded number of times with
// exponential backoff between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	// Sleep waits between attempts. Nil means a context-aware timer; tests
	// inject a recorder so nothing actually sleeps.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default mirrors the deployment defaults: three attempts, 2s then 4s.
func Default() Policy {
	return Policy{Attempts: 3, BaseDelay: 2 * time.Second}
}

// Delay returns the wait after the given zero-based failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<attempt)
}

// Wait sleeps for d using the policy's sleeper.
func (p Policy) Wait(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

// Do calls fn until it succeeds, attempts run out, or ctx is done.
// fn receives the zero-based attempt number. The last error is returned
// wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := max(p.Attempts, 1)
	var err error
	for attempt := range attempts {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if werr := p.Wait(ctx, p.Delay(attempt)); werr != nil {
			return fmt.Errorf("retry aborted after %d/%d attempts: %w", attempt+1, attempts, err)
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
