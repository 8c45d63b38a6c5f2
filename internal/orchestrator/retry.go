package orchestrator

import (
	"context"
	"math/rand"
	"time"

	"splunkctl/internal/errs"
)

// Strategy selects the backoff formula a Policy uses between attempts.
type Strategy string

const (
	StrategyExponential Strategy = "exp"
	StrategyFullJitter   Strategy = "full_jitter"
)

// Policy holds the knobs spec.md §4.7 names for the retry combinator.
// Grounded on warmWeeklyBackoffDuration's doubling-with-cap shape
// (codex_warm_weekly_reconciler.go), generalized from a single hardcoded
// doubling series into the two named strategies the spec requires plus
// bounded jitter.
type Policy struct {
	Retries  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	JitterMS  int
	Strategy  Strategy
	// RetryOn decides whether err should be retried. Defaults to
	// errs.Retryable (TransientOperation only) when nil.
	RetryOn func(error) bool
}

// minSleep is the floor spec.md §4.7 mandates: jitter must never produce a
// negative or zero sleep.
const minSleep = 100 * time.Millisecond

// randFloat is a seam so tests can pin jitter to a deterministic value.
var randFloat = rand.Float64

func (p Policy) retryOn(err error) bool {
	if p.RetryOn != nil {
		return p.RetryOn(err)
	}
	return errs.Retryable(err)
}

// nextDelay computes the delay before the next attempt given the previous
// delay and the zero-based attempt number, per spec.md §4.7's formulas:
//
//	exp:         delay' = min(max_delay, delay*2) ± U(0, jitter_ms)/1000
//	full_jitter: delay' = U(0, min(max_delay, base*2^attempt))
func (p Policy) nextDelay(prev time.Duration, attempt int) time.Duration {
	var d time.Duration
	switch p.Strategy {
	case StrategyFullJitter:
		ceiling := p.BaseDelay << attempt
		if ceiling <= 0 || ceiling > p.MaxDelay {
			ceiling = p.MaxDelay
		}
		d = time.Duration(randFloat() * float64(ceiling))
	default: // StrategyExponential
		doubled := prev * 2
		if doubled <= 0 || doubled > p.MaxDelay {
			doubled = p.MaxDelay
		}
		jitter := time.Duration((randFloat()*2 - 1) * float64(p.JitterMS) * float64(time.Millisecond))
		d = doubled + jitter
	}
	if d < minSleep {
		d = minSleep
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs fn up to p.Retries+1 times, sleeping per the configured strategy
// between attempts, until fn succeeds, a non-retryable error is returned,
// retries are exhausted, or ctx is cancelled. The last error is returned
// unwrapped if it is not retryable, or wrapped as errs.DeadlineExceeded if
// ctx expired mid-backoff.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	delay := p.BaseDelay
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.Cancelled, "retry", err)
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.retryOn(lastErr) {
			return lastErr
		}
		if attempt == p.Retries {
			break
		}
		delay = p.nextDelay(delay, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errs.Wrap(errs.DeadlineExceeded, "retry", ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}
