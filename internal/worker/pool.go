package worker

import (
	"context"
	"sync"
)

// Task is one unit of pool work
type Task[R any] func(ctx context.Context) R

type queued[R any] struct {
	index int
	task  Task[R]
}

// Pool runs tasks on a fixed number of goroutines and keeps each result
// in the slot of the task that produced it
type Pool[R any] struct {
	workers   int
	queue     chan queued[R]
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu      sync.Mutex
	results []R
}

// NewPool creates a pool with the given number of workers (at least one).
// Tasks run under ctx; cancelling it stops workers after their current task.
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool[R]{
		workers: workers,
		queue:   make(chan queued[R], workers*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool[R]) Start() {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.run()
	}
}

func (p *Pool[R]) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case q, ok := <-p.queue:
			if !ok {
				return
			}
			r := q.task(p.ctx)
			p.mu.Lock()
			p.results[q.index] = r
			p.mu.Unlock()
		}
	}
}

// Submit queues task and returns its result slot. It reports false when
// the pool was cancelled first; the slot then keeps the zero value.
func (p *Pool[R]) Submit(task Task[R]) (int, bool) {
	p.mu.Lock()
	index := len(p.results)
	var zero R
	p.results = append(p.results, zero)
	p.mu.Unlock()

	if p.ctx.Err() != nil {
		return index, false
	}
	select {
	case <-p.ctx.Done():
		return index, false
	case p.queue <- queued[R]{index: index, task: task}:
		return index, true
	}
}

// Wait closes the queue, waits for the workers and returns one result per
// submitted task in submission order. Tasks that never ran leave the zero
// value in their slot.
func (p *Pool[R]) Wait() []R {
	p.closeOnce.Do(func() { close(p.queue) })
	p.wg.Wait()
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]R, len(p.results))
	copy(out, p.results)
	return out
}

// Shutdown cancels outstanding tasks and waits for workers to exit.
// The queue stays open so a racing Submit cannot panic.
func (p *Pool[R]) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
