package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// sleepTask waits d (or until cancelled) and returns the context error
func sleepTask(d time.Duration) Task[error] {
	return func(ctx context.Context) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func TestNewPool_WorkerCount(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{5, 5},
		{0, 1},
		{-1, 1},
	}
	for _, tt := range tests {
		if got := NewPool[int](context.Background(), tt.in).workers; got != tt.want {
			t.Errorf("NewPool(%d): expected %d workers, got %d", tt.in, tt.want, got)
		}
	}
}

func TestPool_ResultsKeepSubmissionOrder(t *testing.T) {
	pool := NewPool[int](context.Background(), 4)
	pool.Start()

	const count = 20
	for i := 0; i < count; i++ {
		n := i
		idx, ok := pool.Submit(func(ctx context.Context) int {
			// later tasks finish first
			time.Sleep(time.Duration(count-n) * time.Millisecond)
			return n * n
		})
		if !ok || idx != i {
			t.Fatalf("Submit %d: got slot %d, ok=%v", i, idx, ok)
		}
	}

	results := pool.Wait()
	if len(results) != count {
		t.Fatalf("expected %d results, got %d", count, len(results))
	}
	for i, r := range results {
		if r != i*i {
			t.Errorf("slot %d: expected %d, got %d", i, i*i, r)
		}
	}
}

func TestPool_Concurrency(t *testing.T) {
	const workers = 10
	pool := NewPool[struct{}](context.Background(), workers)
	pool.Start()

	var current, completed int32
	var maxConcurrent int32
	var mu sync.Mutex

	const totalTasks = 50
	for i := 0; i < totalTasks; i++ {
		pool.Submit(func(ctx context.Context) struct{} {
			n := atomic.AddInt32(&current, 1)
			mu.Lock()
			if n > maxConcurrent {
				maxConcurrent = n
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			atomic.AddInt32(&current, -1)
			atomic.AddInt32(&completed, 1)
			return struct{}{}
		})
	}

	pool.Wait()

	if got := atomic.LoadInt32(&completed); got != totalTasks {
		t.Errorf("expected %d completed tasks, got %d", totalTasks, got)
	}

	mu.Lock()
	peak := maxConcurrent
	mu.Unlock()

	if peak > workers {
		t.Errorf("max concurrency %d exceeded workers %d", peak, workers)
	}
	if peak <= 1 {
		t.Logf("Warning: max concurrency was %d, expected > 1", peak)
	}
}

func TestPool_Errors(t *testing.T) {
	pool := NewPool[error](context.Background(), 2)
	pool.Start()

	boom := errors.New("boom")
	pool.Submit(func(ctx context.Context) error { return boom })
	pool.Submit(sleepTask(0))

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !errors.Is(results[0], boom) {
		t.Errorf("slot 0: expected boom, got %v", results[0])
	}
	if results[1] != nil {
		t.Errorf("slot 1: expected nil, got %v", results[1])
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool[error](context.Background(), 2)
	pool.Start()
	pool.Shutdown()

	done := make(chan bool)
	go func() {
		_, ok := pool.Submit(sleepTask(0))
		done <- ok
	}()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Submit to report the task as dropped")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit after shutdown blocked")
	}
}

func TestPool_ShutdownInterruptsRunningTask(t *testing.T) {
	pool := NewPool[error](context.Background(), 2)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(func(ctx context.Context) error {
		close(started)
		return sleepTask(5 * time.Second)(ctx)
	})
	<-started

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown timed out")
	}
}

func TestPool_ParentContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool[error](ctx, 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	cancel()

	results := pool.Wait()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !errors.Is(results[0], context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", results[0])
	}
}

func TestPool_UnrunTasksKeepZeroValue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool[*int](ctx, 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(func(ctx context.Context) *int {
		close(started)
		<-ctx.Done()
		n := 1
		return &n
	})
	<-started
	cancel()

	if _, ok := pool.Submit(func(ctx context.Context) *int { n := 2; return &n }); ok {
		t.Error("expected Submit after cancel to fail")
	}

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(results))
	}
	if results[0] == nil || *results[0] != 1 {
		t.Errorf("slot 0: expected 1, got %v", results[0])
	}
	if results[1] != nil {
		t.Errorf("slot 1: expected nil, got %v", *results[1])
	}
}
