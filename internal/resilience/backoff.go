// Package resilience provides the retry primitives used by the task queue
// and the recalculation worker.
package resilience

import (
	"context"
	"math/rand"
	"time"
)

// Backoff returns an exponential delay for the given attempt with optional
// symmetric jitter. Attempt numbering starts at 1.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	jitter := float64(d) * jitterPct
	delta := (rand.Float64()*2 - 1) * jitter
	return d + time.Duration(delta)
}

// Retry runs fn up to attempts times, sleeping with Backoff between
// failures. The last error is returned when every attempt fails.
func Retry(ctx context.Context, attempts int, base time.Duration, jitterPct float64, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(Backoff(base, attempt, jitterPct))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
