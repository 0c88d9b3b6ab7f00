package service

import (
	"log/slog"
	"sync"
)

// workQueue runs tasks one at a time, in submission order, on a single
// goroutine. Every mutation that touches the network or the store goes
// through it.
type workQueue struct {
	logger *slog.Logger

	mu     sync.Mutex
	tasks  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newWorkQueue(logger *slog.Logger) *workQueue {
	q := &workQueue{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.loop()
	return q
}

// post appends fn. It returns false once the queue is closed.
func (q *workQueue) post(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// close stops the loop after the running task. Queued tasks are dropped.
// Safe to call from a task.
func (q *workQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.tasks = nil
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// finished returns a channel closed when the loop has exited.
func (q *workQueue) finished() <-chan struct{} {
	return q.done
}

func (q *workQueue) loop() {
	defer close(q.done)

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			<-q.wake
			continue
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.run(fn)
	}
}

func (q *workQueue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil && q.logger != nil {
			q.logger.Error("work task panicked", "panic", r)
		}
	}()
	fn()
}
