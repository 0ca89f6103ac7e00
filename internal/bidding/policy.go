package bidding

import (
	"context"
	"time"

	"github.com/abrezinsky/autobid/internal/errors"
)

// RetryPolicy bounds the retry loops of a run. Zero caps mean unbounded.
type RetryPolicy struct {
	// MaxPasses caps the outer passes over the catalog
	MaxPasses int
	// MaxAttempts caps consecutive attempts at one course within a pass
	MaxAttempts int
	// MaxLogins caps consecutive login attempts while recovering a session
	MaxLogins int
	// SettleDelay is waited before every fetch
	SettleDelay time.Duration
	// Backoff is the first retry delay, doubled per retry up to MaxBackoff
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxPasses:   3,
		SettleDelay: 500 * time.Millisecond,
		Backoff:     time.Second,
		MaxBackoff:  10 * time.Second,
	}
}

// Delay returns the wait before retry number n (starting at 1)
func (p RetryPolicy) Delay(n int) time.Duration {
	if n <= 0 || p.Backoff <= 0 {
		return 0
	}
	d := p.Backoff
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

func exceeded(limit, n int) bool {
	return limit > 0 && n > limit
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return errors.Cancelled(err)
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.Cancelled(ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, errors.ErrCancelled)
}
