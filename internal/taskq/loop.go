package taskq

import "sync"

// Loop is a callback queue drained by a single goroutine, the one that owns
// the console or other UI state. Workers Post; the owner runs RunUntil.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
}

// NewLoop creates an empty loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn to run on the loop goroutine. It never blocks and returns
// false when the loop was closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// RunUntil runs posted callbacks until done is closed, then drains whatever
// was posted before returning. Callbacks run in posting order.
func (l *Loop) RunUntil(done <-chan struct{}) {
	for {
		l.drain()
		select {
		case <-l.wake:
		case <-done:
			l.drain()
			return
		}
	}
}

// Close drops pending callbacks and rejects new ones.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.queue = nil
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

// Call posts fn and blocks the calling worker until the loop has run it.
// It returns false without waiting when the loop is closed or stop is closed.
func (l *Loop) Call(stop <-chan struct{}, fn func()) bool {
	ran := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(ran)
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-stop:
		return false
	}
}
