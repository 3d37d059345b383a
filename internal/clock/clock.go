package clock

import (
	"context"
	"sync"
	"time"
)

// Clock supplies the current time as an offset since the Unix epoch.
type Clock interface {
	Now() time.Duration
}

// Sleeper suspends the caller for a duration, returning early when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// System reads the wall clock and sleeps on real timers.
type System struct{}

// Now returns the time elapsed since the Unix epoch.
// A wall clock set before the epoch is treated as unrecoverable.
func (System) Now() time.Duration {
	since := time.Since(time.Unix(0, 0))
	if since < 0 {
		panic("clock: system time is before the unix epoch")
	}

	return since
}

func (System) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fake is a deterministic Clock and Sleeper for tests.
type Fake struct {
	mu      sync.Mutex
	now     time.Duration
	sleeps  []time.Duration
	advance bool
}

// NewFake creates a fake clock frozen at now.
func NewFake(now time.Duration) *Fake {
	return &Fake{now: now}
}

// AdvanceOnSleep makes Sleep move the clock forward by the slept duration.
func (f *Fake) AdvanceOnSleep() *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.advance = true

	return f
}

func (f *Fake) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// Set moves the clock to now.
func (f *Fake) Set(now time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now += d
}

// Sleep records d without blocking.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sleeps = append(f.sleeps, d)
	if f.advance {
		f.now += d
	}

	return nil
}

// Sleeps returns every duration passed to Sleep, in call order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]time.Duration(nil), f.sleeps...)
}

var (
	_ Clock   = System{}
	_ Sleeper = System{}
	_ Clock   = (*Fake)(nil)
	_ Sleeper = (*Fake)(nil)
)
