// Package retry provides exponential backoff for flaky external calls.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy controls the backoff schedule.
type Policy struct {
	MaxAttempts int           // total attempts, including the first (default 5)
	BaseDelay   time.Duration // delay before the second attempt (default 1s)
	Factor      float64       // multiplier per attempt (default 2)
	Jitter      float64       // relative jitter, 0.2 means ±20% (default 0.2)
	MaxDelay    time.Duration // delay ceiling (default 30s)
}

// DefaultPolicy returns the schedule used for mail, drive and DB calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Factor:      2,
		Jitter:      0.2,
		MaxDelay:    30 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Factor <= 1 {
		p.Factor = 2
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// Delay returns the backoff before attempt n (n starts at 1; attempt 1 has no
// delay). The result is capped at MaxDelay before jitter is applied.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt <= 1 {
		return 0
	}
	d := float64(p.BaseDelay)
	for i := 2; i < attempt; i++ {
		d *= p.Factor
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		// spread in [1-jitter, 1+jitter)
		d *= 1 + p.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, the attempts are exhausted, or the context is
// done. The last error is returned on exhaustion.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
