package license

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock records sleeps and advances a manual current time.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryRunExhaustsRecoverable(t *testing.T) {
	clock := newFakeClock()
	transient := errors.New("transient")
	calls := 0

	err := DefaultRetryPolicy().Run(context.Background(), clock, func(error) bool { return true }, func() error {
		calls++
		return transient
	})

	if !errors.Is(err, transient) {
		t.Fatalf("Run() error = %v, want last attempt error", err)
	}
	if calls != 3 {
		t.Errorf("attempts = %d, want 3", calls)
	}
	wantSleeps := []time.Duration{time.Second, 2 * time.Second}
	if len(clock.sleeps) != len(wantSleeps) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, wantSleeps)
	}
	for i, d := range wantSleeps {
		if clock.sleeps[i] != d {
			t.Errorf("sleep %d = %v, want %v", i, clock.sleeps[i], d)
		}
	}
}

func TestRetryRunStopsOnNonRecoverable(t *testing.T) {
	clock := newFakeClock()
	fatal := errors.New("fatal")
	calls := 0

	err := DefaultRetryPolicy().Run(context.Background(), clock, func(error) bool { return false }, func() error {
		calls++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Fatalf("Run() error = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1: non-recoverable errors must not retry", calls)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", clock.sleeps)
	}
}

func TestRetryRunSucceedsMidway(t *testing.T) {
	clock := newFakeClock()
	calls := 0

	err := DefaultRetryPolicy().Run(context.Background(), clock, func(error) bool { return true }, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("attempts = %d, want 2", calls)
	}
}

func TestRetryRunContextCancelled(t *testing.T) {
	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := DefaultRetryPolicy().Run(ctx, clock, func(error) bool { return true }, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})

	if err == nil {
		t.Fatal("Run() error = nil, want the attempt error after cancellation")
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1: cancellation must stop the loop", calls)
	}
}
