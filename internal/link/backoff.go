package link

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Delay returns the wait before retry number attempt (0-based): base doubled
// per attempt, capped at maxDelay, then scaled by a random factor in
// [1-jitter, 1+jitter].
func Delay(base, maxDelay time.Duration, jitter float64, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(base) * math.Pow(2, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	if jitter > 0 {
		delay *= 1 - jitter + rand.Float64()*2*jitter
	}
	return time.Duration(delay)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
