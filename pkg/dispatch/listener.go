package dispatch

import "sync/atomic"

// Listener receives engine notifications.
type Listener interface {
	// OnSubscriptionsChanged is called with the sorted confirmed interests
	// after a reconciliation changed them.
	OnSubscriptionsChanged(interests []string)

	// OnError reports a terminal failure the caller did not otherwise
	// observe, such as exhausted retries or a rejected registration.
	OnError(err error)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	SubscriptionsChanged func(interests []string)
	Error                func(err error)
}

// OnSubscriptionsChanged implements Listener.
func (f ListenerFuncs) OnSubscriptionsChanged(interests []string) {
	if f.SubscriptionsChanged != nil {
		f.SubscriptionsChanged(interests)
	}
}

// OnError implements Listener.
func (f ListenerFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// ListenerSlot holds at most one Listener. Set replaces the previous one.
type ListenerSlot struct {
	p atomic.Pointer[listenerBox]
}

type listenerBox struct {
	l Listener
}

// Set installs l. A nil l clears the slot.
func (s *ListenerSlot) Set(l Listener) {
	if l == nil {
		s.p.Store(nil)
		return
	}
	s.p.Store(&listenerBox{l: l})
}

// Get returns the current listener or nil.
func (s *ListenerSlot) Get() Listener {
	b := s.p.Load()
	if b == nil {
		return nil
	}
	return b.l
}

// NotifySubscriptions queues a subscription change for the listener installed
// at delivery time.
func (s *ListenerSlot) NotifySubscriptions(d *Dispatcher, interests []string) {
	d.Post(func() {
		if l := s.Get(); l != nil {
			l.OnSubscriptionsChanged(interests)
		}
	})
}

// NotifyError queues an error report for the listener installed at delivery
// time.
func (s *ListenerSlot) NotifyError(d *Dispatcher, err error) {
	d.Post(func() {
		if l := s.Get(); l != nil {
			l.OnError(err)
		}
	})
}
