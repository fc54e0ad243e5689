// Package ratelimit provides the shared throughput gate bounding outbound
// network operations across all workers.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindow grants at most limit permits within each fixed window. All
// workers share one instance; Acquire blocks until a permit is granted and
// never fails except on context cancellation.
//
// Fixed-window counting deliberately permits a burst of up to 2x the limit
// straddling a window boundary. The overall design is throughput-bounded,
// not latency-bounded, and there is no per-caller fairness beyond eventual
// admission.
type FixedWindow struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// PerMinute creates a limiter granting at most n permits per minute.
func PerMinute(n int) *FixedWindow {
	return newFixedWindow(n, time.Minute)
}

func newFixedWindow(limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Acquire blocks until a permit is available or ctx is cancelled. It is the
// only suspension point attributable to the limiter.
func (fw *FixedWindow) Acquire(ctx context.Context) error {
	for {
		fw.mu.Lock()
		now := fw.now()
		if now.Sub(fw.windowStart) >= fw.window {
			fw.windowStart = now
			fw.count = 0
		}
		if fw.count < fw.limit {
			fw.count++
			fw.mu.Unlock()
			return nil
		}
		wait := fw.window - now.Sub(fw.windowStart)
		fw.mu.Unlock()

		if err := fw.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
