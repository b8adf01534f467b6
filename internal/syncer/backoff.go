package syncer

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// backoff doubles from base per attempt (attempt=0 => base), capped at 20x base.
func backoff(base time.Duration, attempt int) time.Duration {
	capDelay := 20 * base

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > capDelay {
		delay = capDelay
	}

	// small jitter (up to base/4) to avoid thundering herd
	delay += time.Duration(rand.Int63n(int64(base)/4 + 1))
	return delay
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
