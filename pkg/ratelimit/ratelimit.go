// Package ratelimit enforces a process-wide minimum interval between calls
// to a rate-limited model backend. The last-call timestamp lives behind one
// mutex that is held across the wait computation, so concurrent listings can
// never observe a stale value and shorten the enforced gap.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Interval serializes callers so that successive calls are at least one
// interval apart.
type Interval struct {
	mu       sync.Mutex
	interval time.Duration
	lastCall time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// PerMinute creates an Interval allowing at most n calls per minute.
func PerMinute(n int) *Interval {
	if n <= 0 {
		n = 1
	}
	return NewInterval(time.Minute / time.Duration(n))
}

// NewInterval creates an Interval with the given minimum gap between calls.
func NewInterval(interval time.Duration) *Interval {
	return &Interval{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until the caller is allowed to proceed, then stamps the
// last-call time. The mutex is held for the full wait: the gap is enforced
// between call starts across all goroutines, not per caller.
func (i *Interval) Wait(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.lastCall.IsZero() {
		if wait := i.interval - i.now().Sub(i.lastCall); wait > 0 {
			if err := i.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	i.lastCall = i.now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
