package wsync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-lab/nperf/wsync"
)

func TestBarrierPhaseOrder(t *testing.T) {
	b := wsync.NewBarrier()
	ctx := context.Background()

	const n = 4
	var wg sync.WaitGroup
	var order []string
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.IncCounter()
			if err := b.WaitForState(ctx, wsync.Connect); err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			order = append(order, "connect")
			mu.Unlock()
			b.IncCounter()
			if err := b.WaitForState(ctx, wsync.Run); err != nil {
				t.Error(err)
			}
		}()
	}

	if err := b.WaitForCounter(ctx, n); err != nil {
		t.Fatalf("WaitForCounter(init): %v", err)
	}
	b.ResetCounter()
	b.SetState(wsync.Connect)
	if err := b.WaitForCounter(ctx, n); err != nil {
		t.Fatalf("WaitForCounter(connect): %v", err)
	}
	b.SetState(wsync.Run)
	wg.Wait()

	if len(order) != n {
		t.Errorf("got %d connect observations, want %d", len(order), n)
	}
}

func TestBarrierWaitForStateCancelled(t *testing.T) {
	b := wsync.NewBarrier()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.WaitForState(ctx, wsync.Run); err == nil {
		t.Error("WaitForState did not return an error for a cancelled context")
	}
}

func TestSleepReturnsOnTimeout(t *testing.T) {
	err := wsync.Sleep(context.Background(), 5*time.Millisecond)
	if err != nil {
		t.Errorf("Sleep: got %v, want nil", err)
	}
}

func TestSleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(2 * time.Millisecond)
		cancel()
	}()
	if err := wsync.Sleep(ctx, time.Hour); err == nil {
		t.Error("Sleep did not return an error when cancelled")
	}
}
