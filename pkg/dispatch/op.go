package dispatch

import (
	"context"
	"sync"
)

// Op is the one-shot result of an asynchronous engine operation.
//
// An Op is resolved exactly once. Completion callbacks run on the
// dispatcher, in resolution order relative to other notifications.
type Op struct {
	d    *Dispatcher
	once sync.Once
	done chan struct{}

	mu        sync.Mutex
	err       error
	callbacks []func(error)
}

// NewOp creates an unresolved Op delivering through d.
func NewOp(d *Dispatcher) *Op {
	return &Op{d: d, done: make(chan struct{})}
}

// Completed returns an Op already resolved with err.
func Completed(d *Dispatcher, err error) *Op {
	op := NewOp(d)
	op.Resolve(err)
	return op
}

// Resolve completes the Op. Only the first call has an effect; it reports
// whether this call resolved the Op.
func (o *Op) Resolve(err error) bool {
	resolved := false
	o.once.Do(func() {
		resolved = true

		o.mu.Lock()
		o.err = err
		cbs := o.callbacks
		o.callbacks = nil
		close(o.done)
		o.mu.Unlock()

		for _, cb := range cbs {
			o.post(cb, err)
		}
	})
	return resolved
}

// Done returns a channel closed when the Op resolves.
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Err returns the result. It is nil until the Op resolves.
func (o *Op) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Wait blocks until the Op resolves or ctx ends.
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnComplete registers fn to run on the dispatcher with the result.
// Registering after resolution queues fn immediately.
func (o *Op) OnComplete(fn func(err error)) {
	o.mu.Lock()
	select {
	case <-o.done:
		err := o.err
		o.mu.Unlock()
		o.post(fn, err)
		return
	default:
	}
	o.callbacks = append(o.callbacks, fn)
	o.mu.Unlock()
}

func (o *Op) post(fn func(error), err error) {
	if o.d == nil || !o.d.Post(func() { fn(err) }) {
		// Dispatcher gone. Still keep application code off the resolver.
		go fn(err)
	}
}
