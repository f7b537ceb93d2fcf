package model

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitersLen(g *Gate) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}

func TestGate_SingleFlight(t *testing.T) {
	g := NewGate()
	var current, max, total int64
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), func() error {
				c := atomic.AddInt64(&current, 1)
				if c > atomic.LoadInt64(&max) {
					atomic.StoreInt64(&max, c)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt64(&current, -1)
				atomic.AddInt64(&total, 1)
				return nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&max); got != 1 {
		t.Errorf("max in-flight = %d, want 1", got)
	}
	if got := atomic.LoadInt64(&total); got != 16 {
		t.Errorf("completed = %d, want 16 (no starvation)", got)
	}
}

func TestGate_FIFO(t *testing.T) {
	g := NewGate()
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	const n = 5
	order := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			if err := g.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			order <- i
			g.Release()
		}()
		// Wait until this waiter is queued so arrival order is fixed.
		for waitersLen(g) != i+1 {
			time.Sleep(time.Millisecond)
		}
	}

	g.Release()
	for want := 0; want < n; want++ {
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("waiter %d released before %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for waiter %d", want)
		}
	}
}

func TestGate_CancelledWaiterDoesNotPoison(t *testing.T) {
	g := NewGate()
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Acquire(ctx) }()
	for waitersLen(g) != 1 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-errCh; err == nil {
		t.Fatal("cancelled Acquire returned nil")
	}

	g.Release()

	// The gate must still be usable.
	done := make(chan struct{})
	go func() {
		if err := g.Do(context.Background(), func() error { return nil }); err != nil {
			t.Errorf("Do after cancel: %v", err)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("gate deadlocked after waiter cancellation")
	}
}
