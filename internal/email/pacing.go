package email

import (
	"context"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// shouldPause reports whether the submission loop waits before item index.
func (b BatchingConfig) shouldPause(index int) bool {
	return index > 0 && b.BatchSize > 0 && b.BatchIntervalMs > 0 && index%b.BatchSize == 0
}

// Interval is the pause between batches.
func (b BatchingConfig) Interval() time.Duration {
	return time.Duration(b.BatchIntervalMs) * time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
