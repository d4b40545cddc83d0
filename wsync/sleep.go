package wsync

import (
	"context"
	"time"
)

// Sleep blocks for d, the controller's test-interval timer. It returns nil on
// ordinary timeout, or ctx.Err() if ctx is cancelled first.
//
// Built on time.Timer rather than the barrier's own condition variable: the
// controller is the only party sleeping, so there is nothing else to
// rendezvous with, and time.Timer is driven by the runtime's monotonic clock,
// so it isn't affected by wall-clock jumps.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
