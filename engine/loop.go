package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/dop251/goja"
)

var errStalled = errors.New("result never settled and no host ops are pending")

// loop is the completion side of the host op protocol. Async ops run on
// their own goroutines and post a closure when done; the goroutine driving
// the runtime drains those closures, which settle the ops' promises and run
// the resulting microtasks.
//
// pending and dispatched are only touched from the runtime goroutine.
type loop struct {
	mu    sync.Mutex
	queue []func() error
	wake  chan struct{}

	pending    int
	dispatched int

	rejected map[*goja.Promise]struct{}
	order    []*goja.Promise
}

func newLoop() *loop {
	return &loop{
		wake:     make(chan struct{}, 1),
		rejected: make(map[*goja.Promise]struct{}),
	}
}

// begin records an async op about to start.
func (l *loop) begin() {
	l.pending++
	l.dispatched++
}

// post queues a completion. Safe to call from any goroutine; never blocks.
func (l *loop) post(fn func() error) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// drain runs the queued completions. An error is uncatchable (the runtime
// was interrupted) and stops the drain.
func (l *loop) drain() error {
	l.mu.Lock()
	queue := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range queue {
		l.pending--
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// run drives completions until settled reports true and no ops are in
// flight. If nothing is in flight and settled is still false, nothing can
// ever settle it and run fails with errStalled.
func (l *loop) run(ctx context.Context, settled func() bool) error {
	for {
		if err := l.drain(); err != nil {
			return err
		}
		if l.pending == 0 {
			if settled() {
				return nil
			}
			return errStalled
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// track is the runtime's promise rejection tracker.
func (l *loop) track(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		if _, ok := l.rejected[p]; !ok {
			l.order = append(l.order, p)
		}
		l.rejected[p] = struct{}{}
	case goja.PromiseRejectionHandle:
		delete(l.rejected, p)
	}
}

// unhandled returns the earliest rejected promise nobody handled, ignoring
// except.
func (l *loop) unhandled(except *goja.Promise) *goja.Promise {
	for _, p := range l.order {
		if p == except {
			continue
		}
		if _, ok := l.rejected[p]; ok {
			return p
		}
	}
	return nil
}
