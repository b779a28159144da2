// Package taskq runs blocking work off the UI loop. Tasks go to a bounded
// worker pool and hand results back as futures; UI updates are posted to a
// Loop owned by the caller's goroutine.
package taskq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrBusy is returned when a task with the same name is still running.
	ErrBusy = errors.New("operation already in progress")
	// ErrCancelled is returned for tasks that never started because the pool was cancelled.
	ErrCancelled = errors.New("cancelled")
)

// Pool runs named tasks on a bounded set of goroutines. At most one task per
// name runs at a time.
type Pool struct {
	ctx     context.Context
	cancel  context.CancelFunc
	group   errgroup.Group
	workers *semaphore.Weighted

	mu      sync.Mutex
	running map[string]*semaphore.Weighted

	cancelled atomic.Bool
}

// NewPool creates a pool running at most workers tasks concurrently. Tasks
// receive a context derived from ctx that is cancelled by Cancel.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		ctx:     ctx,
		cancel:  cancel,
		workers: semaphore.NewWeighted(int64(workers)),
		running: make(map[string]*semaphore.Weighted),
	}
}

// Future is the pending result of a submitted task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the task has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finishes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit schedules fn under name and returns immediately. The task waits for
// a free worker before it starts. Submit returns ErrBusy without scheduling
// when a task of the same name has not finished yet.
func Submit[T any](p *Pool, name string, fn func(ctx context.Context) (T, error)) (*Future[T], error) {
	if p.cancelled.Load() {
		return nil, ErrCancelled
	}

	sem := p.guard(name)
	if !sem.TryAcquire(1) {
		return nil, fmt.Errorf("%s: %w", name, ErrBusy)
	}

	f := &Future[T]{done: make(chan struct{})}
	p.group.Go(func() error {
		defer close(f.done)
		defer sem.Release(1)

		if err := p.workers.Acquire(p.ctx, 1); err != nil {
			f.err = ErrCancelled
			return nil
		}
		defer p.workers.Release(1)

		if p.cancelled.Load() {
			f.err = ErrCancelled
			return nil
		}

		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("%s: panic: %v", name, r)
			}
		}()
		f.value, f.err = fn(p.ctx)
		return nil
	})
	return f, nil
}

func (p *Pool) guard(name string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, ok := p.running[name]
	if !ok {
		sem = semaphore.NewWeighted(1)
		p.running[name] = sem
	}
	return sem
}

// Busy reports whether a task named name is running.
func (p *Pool) Busy(name string) bool {
	sem := p.guard(name)
	if sem.TryAcquire(1) {
		sem.Release(1)
		return false
	}
	return true
}

// Cancel sets the cancellation flag and cancels the context handed to tasks.
// Tasks that have not started yet finish with ErrCancelled.
func (p *Pool) Cancel() {
	p.cancelled.Store(true)
	p.cancel()
}

// Cancelled reports whether Cancel was called.
func (p *Pool) Cancelled() bool {
	return p.cancelled.Load()
}

// Wait blocks until every submitted task has returned.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}
