// Package wsync implements the worker-sync primitive: a phase barrier used
// by both the client and server worker pools to rendezvous goroutines
// through the INIT -> CONNECT -> RUN -> FINISHED lifecycle, plus an
// interruptible sleep used by the controller as its test-interval timer.
//
// The barrier is a single condition variable giving "rendezvous" semantics.
// Sleep, the "sleep exactly N seconds" half, does not use that condition
// variable: it is built on a time.Timer driven by the Go runtime's monotonic
// clock reading, so it stays immune to wall-clock jumps without needing a
// clock-bound condition variable.
package wsync

import (
	"context"
	"sync"
)

// Phase is one of the four lifecycle states a worker pool passes through.
type Phase int

const (
	Init Phase = iota
	Connect
	Run
	Finished
)

func (p Phase) String() string {
	switch p {
	case Init:
		return "init"
	case Connect:
		return "connect"
	case Run:
		return "run"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Barrier is one per pool. Only the controlling goroutine calls SetState (and
// the package-level Sleep); only worker goroutines call IncCounter. Every
// broadcast happens with the mutex held.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	state   Phase
	counter uint32
}

// NewBarrier returns a Barrier in the Init phase with a zero counter.
func NewBarrier() *Barrier {
	b := &Barrier{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// SetState transitions the barrier to state and wakes every waiter.
func (b *Barrier) SetState(state Phase) {
	b.mu.Lock()
	b.state = state
	b.cond.Broadcast()
	b.mu.Unlock()
}

// WaitForState blocks until the barrier reaches state, or ctx is done.
func (b *Barrier) WaitForState(ctx context.Context, state Phase) error {
	return b.waitUntil(ctx, func() bool { return b.state == state })
}

// ResetCounter zeroes the rendezvous counter, at the start of a new phase.
func (b *Barrier) ResetCounter() {
	b.mu.Lock()
	b.counter = 0
	b.mu.Unlock()
}

// IncCounter increments the rendezvous counter and wakes every waiter.
// Called once by each worker as it reaches a rendezvous point.
func (b *Barrier) IncCounter() {
	b.mu.Lock()
	b.counter++
	b.cond.Broadcast()
	b.mu.Unlock()
}

// WaitForCounter blocks until the counter reaches at least count, or ctx is
// done.
func (b *Barrier) WaitForCounter(ctx context.Context, count uint32) error {
	return b.waitUntil(ctx, func() bool { return b.counter >= count })
}

// waitUntil blocks on the condition variable until done() is true or ctx is
// cancelled. Cancellation is delivered by a goroutine that wakes the CV via
// Broadcast when ctx.Done() fires; this is the same pattern used to make a
// sync.Cond context-aware, since sync.Cond itself has no Done channel.
func (b *Barrier) waitUntil(ctx context.Context, done func() bool) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.cond.Broadcast()
			b.mu.Unlock()
		case <-stop:
		}
	}()

	b.mu.Lock()
	defer b.mu.Unlock()
	for !done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.cond.Wait()
	}
	return ctx.Err()
}
