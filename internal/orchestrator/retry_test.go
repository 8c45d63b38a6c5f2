package orchestrator

import (
	"context"
	"testing"
	"time"

	"splunkctl/internal/errs"
)

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Retries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	restore := randFloat
	randFloat = func() float64 { return 0 }
	defer func() { randFloat = restore }()

	calls := 0
	err := Do(context.Background(), Policy{Retries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, JitterMS: 1, Strategy: StrategyExponential}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errs.New(errs.TransientOperation, "test", "flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Retries: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errs.New(errs.PermanentOperation, "test", "nope")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call for a permanent error, got %d", calls)
	}
}

func TestDoStopsAfterRetriesExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Retries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errs.New(errs.TransientOperation, "test", "always flaky")
	})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", calls)
	}
}

func TestNextDelayNeverGoesBelowFloor(t *testing.T) {
	restore := randFloat
	randFloat = func() float64 { return 0.5 }
	defer func() { randFloat = restore }()

	p := Policy{BaseDelay: 0, MaxDelay: time.Second, JitterMS: 0, Strategy: StrategyExponential}
	d := p.nextDelay(0, 0)
	if d < minSleep {
		t.Fatalf("expected delay >= floor, got %v", d)
	}
}

func TestNextDelayFullJitterNeverExceedsMaxDelay(t *testing.T) {
	restore := randFloat
	randFloat = func() float64 { return 1.0 }
	defer func() { randFloat = restore }()

	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Strategy: StrategyFullJitter}
	for attempt := 0; attempt < 10; attempt++ {
		d := p.nextDelay(0, attempt)
		if d > p.MaxDelay {
			t.Fatalf("attempt %d: delay %v exceeds max %v", attempt, d, p.MaxDelay)
		}
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Policy{Retries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, func(ctx context.Context) error {
		t.Fatalf("fn should not be called once context is already cancelled")
		return nil
	})
	if err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
