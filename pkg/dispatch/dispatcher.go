package dispatch

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Dispatcher runs queued callbacks in FIFO order on a single goroutine.
//
// The queue is unbounded, so Post never blocks the engine's work queue on a
// slow listener.
type Dispatcher struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool

	running atomic.Bool
	done    chan struct{}

	logger *slog.Logger
}

// New creates and starts a Dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	d.running.Store(true)
	go d.loop()
	return d
}

// Post queues fn. It returns false when the dispatcher has been stopped.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Drain blocks until every callback queued before the call has run.
// It returns immediately on a stopped dispatcher. Must not be called from
// a callback.
func (d *Dispatcher) Drain() {
	marker := make(chan struct{})
	if !d.Post(func() { close(marker) }) {
		return
	}
	select {
	case <-marker:
	case <-d.done:
	}
}

// Stop runs the callbacks already queued, then ends the goroutine.
// Later Posts are rejected. Stop waits for the dispatcher goroutine, so a
// callback calling it never returns; call it from another goroutine.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.stopped = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
}

// Running reports whether the dispatcher goroutine is alive.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

func (d *Dispatcher) loop() {
	defer func() {
		d.running.Store(false)
		close(d.done)
	}()

	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		stopped := d.stopped
		d.mu.Unlock()

		for _, fn := range batch {
			d.run(fn)
		}

		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-d.wake
	}
}

// run invokes fn, containing panics from application callbacks.
func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil && d.logger != nil {
			d.logger.Error("callback panicked", "panic", r)
		}
	}()
	fn()
}
