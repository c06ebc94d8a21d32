package sender

import (
	"context"
	"time"
)

// Scheduler owns every point at which the sender waits, so that tests can
// run a send without real delays.
type Scheduler interface {
	// Sleep pauses for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
	// WaitUntil polls ready every interval until it returns true or ctx is done.
	WaitUntil(ctx context.Context, ready func() bool, interval time.Duration) error
}

// TimerScheduler waits on real timers.
type TimerScheduler struct{}

func (TimerScheduler) Sleep(ctx context.Context, d time.Duration) error {
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

func (TimerScheduler) WaitUntil(ctx context.Context, ready func() bool, interval time.Duration) error {
	if ready() {
		return nil
	}
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ready() {
				return nil
			}
		}
	}
}
