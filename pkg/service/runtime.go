package service

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pushsync/pushsync-go/pkg/auth"
	"github.com/pushsync/pushsync-go/pkg/dispatch"
	"github.com/pushsync/pushsync-go/pkg/persistence"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// Runtime owns the device's synchronization state. It runs at most one
// Instance at a time; the application creates one Runtime and passes it
// where it is needed.
type Runtime struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	mu     sync.Mutex
	inst   *Instance
	closed bool
}

// NewRuntime creates a Runtime. The config's Store, ClientFactory and
// PushTokenSource are required.
func NewRuntime(cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	return &Runtime{
		cfg:        cfg,
		dispatcher: dispatch.New(cfg.Logger),
		logger:     cfg.Logger,
	}, nil
}

// Start starts the instance identified by instanceID and returns
// immediately; use AwaitRegistered to wait for the registration.
//
// Starting the running instance again returns it. Starting a different
// instance while one runs, or while the store holds another instance's
// registration, is a configuration error. tp may be nil when SetUserID is
// not used.
func (r *Runtime) Start(instanceID string, tp auth.TokenProvider) (*Instance, error) {
	const op = "start"

	if instanceID == "" {
		return nil, syncerr.New(syncerr.KindConfiguration, op, "instance id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRuntimeClosed
	}

	if cur := r.inst; cur != nil {
		if cur.instanceID != instanceID {
			return nil, syncerr.Newf(syncerr.KindConfiguration, op,
				"instance %q is already running", cur.instanceID)
		}
		if cur.State() == StateStopping {
			return nil, syncerr.New(syncerr.KindPrecondition, op, "instance is stopping")
		}
		return cur, nil
	}

	st, err := persistence.LoadDeviceState(r.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("load device state: %w", err)
	}
	if st != nil && st.InstanceID != instanceID {
		return nil, syncerr.Newf(syncerr.KindConfiguration, op,
			"store holds a registration for instance %q; clear all state first", st.InstanceID)
	}

	inst := newInstance(r, instanceID, tp, st)
	r.inst = inst
	inst.begin()

	return inst, nil
}

// Instance returns the running instance, or nil.
func (r *Runtime) Instance() *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inst
}

// State returns the running instance's state, or StateNotStarted.
func (r *Runtime) State() State {
	r.mu.Lock()
	inst := r.inst
	r.mu.Unlock()

	if inst == nil {
		return StateNotStarted
	}
	return inst.State()
}

// ClearAllState stops the running instance, if any, and wipes the store.
func (r *Runtime) ClearAllState() *dispatch.Op {
	if inst := r.Instance(); inst != nil {
		return inst.ClearAllState()
	}

	err := r.cfg.Store.DeleteAll()
	if err != nil && r.logger != nil {
		r.logger.Warn("clearing local state failed", "error", err)
	}
	return dispatch.Completed(r.dispatcher, err)
}

// Dispatcher returns the dispatcher delivering listener callbacks and Op
// completions.
func (r *Runtime) Dispatcher() *dispatch.Dispatcher {
	return r.dispatcher
}

// Close ends the running instance without deleting it, so the next Runtime
// resumes the persisted registration, and stops callback delivery after
// the queued callbacks ran. The store is left open.
//
// Close blocks until the callback goroutine has finished. It must not be
// called from a listener callback or an Op completion: doing so deadlocks.
// Such code should close from a new goroutine instead.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	inst := r.inst
	r.mu.Unlock()

	if inst != nil {
		inst.detach()
	}
	r.dispatcher.Stop()
	return nil
}

// release frees the slot held by inst.
func (r *Runtime) release(inst *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inst == inst {
		r.inst = nil
	}
}
