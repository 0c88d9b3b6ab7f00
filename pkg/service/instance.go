package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pushsync/pushsync-go/pkg/auth"
	"github.com/pushsync/pushsync-go/pkg/dispatch"
	"github.com/pushsync/pushsync-go/pkg/interest"
	"github.com/pushsync/pushsync-go/pkg/log"
	"github.com/pushsync/pushsync-go/pkg/metrics"
	"github.com/pushsync/pushsync-go/pkg/persistence"
	"github.com/pushsync/pushsync-go/pkg/registration"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// Instance keeps one device registration and its interests in sync with the
// device API.
//
// Reads take only the state mutex. Subscription changes update the desired
// set synchronously and leave the network to the instance's work queue.
type Instance struct {
	runtime    *Runtime
	instanceID string
	sessionID  string

	cfg        Config
	client     registration.Client
	fetcher    *auth.Fetcher
	retrier    *registration.Retrier
	registrar  *registration.Retrier
	store      persistence.Store
	dispatcher *dispatch.Dispatcher
	listeners  dispatch.ListenerSlot
	queue      *workQueue

	logger  *slog.Logger
	events  log.Logger
	metrics *metrics.Metrics

	// runCtx ends when the instance stops, detaches or is rejected.
	runCtx context.Context
	cancel context.CancelFunc

	tokenCh chan string

	mu sync.Mutex

	state State

	// gen changes when in-flight work must be discarded.
	gen uint64

	deviceID  string
	pushToken string
	metadata  *persistence.DeviceMetadata
	desired   interest.Set
	confirmed interest.Set

	// acked is what the server holds after a pass whose result was not
	// applied because desired moved on. nil when the server holds confirmed.
	acked interest.Set

	// orphanID is a device registered by a request that finished after
	// stop; finishStop deletes it.
	orphanID string

	userID      string
	tokenEpoch  uint64
	pendingUser *userRequest

	reconcileQueued bool

	stopOp      *dispatch.Op
	registered  chan struct{}
	done        chan struct{}
	terminalErr error
}

func newInstance(r *Runtime, instanceID string, tp auth.TokenProvider, st *persistence.DeviceState) *Instance {
	cfg := r.cfg
	ctx, cancel := context.WithCancel(context.Background())

	i := &Instance{
		runtime:    r,
		instanceID: instanceID,
		sessionID:  uuid.New().String(),
		cfg:        cfg,
		client:     cfg.ClientFactory(instanceID),
		store:      cfg.Store,
		dispatcher: r.dispatcher,
		logger:     cfg.Logger,
		events:     cfg.EventLogger,
		metrics:    cfg.Metrics,
		runCtx:     ctx,
		cancel:     cancel,
		tokenCh:    make(chan string, 1),
		state:      StateStarting,
		desired:    interest.Set{},
		confirmed:  interest.Set{},
		registered: make(chan struct{}),
		done:       make(chan struct{}),
	}

	if tp != nil {
		var opts []auth.FetcherOption
		if cfg.Logger != nil {
			opts = append(opts, auth.WithLogger(cfg.Logger))
		}
		i.fetcher = auth.NewFetcher(tp, opts...)
	}

	onRetry := func(op string, _ int, _ time.Duration, _ error) { i.metrics.Retry(op) }
	i.retrier = registration.NewRetrier(cfg.RetryPolicy).WithLogger(cfg.Logger).OnRetry(onRetry)
	i.registrar = registration.NewRetrier(cfg.RegisterPolicy).WithLogger(cfg.Logger).OnRetry(onRetry)

	if st != nil {
		i.deviceID = st.DeviceID
		i.pushToken = st.PushToken
		i.userID = st.UserID
		i.desired = interest.FromSlice(st.Desired)
		i.confirmed = interest.FromSlice(st.Confirmed)
		if st.Metadata != nil {
			md := *st.Metadata
			i.metadata = &md
		}
	}

	i.queue = newWorkQueue(cfg.Logger)
	return i
}

// InstanceID returns the service instance this device belongs to.
func (i *Instance) InstanceID() string {
	return i.instanceID
}

// SessionID identifies this start in the sync event log.
func (i *Instance) SessionID() string {
	return i.sessionID
}

// State returns the lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// DeviceID returns the server-assigned device ID, or "" before the first
// successful registration.
func (i *Instance) DeviceID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.deviceID
}

// UserID returns the confirmed user association, or "".
func (i *Instance) UserID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.userID
}

// Subscriptions returns the desired interests, sorted.
func (i *Instance) Subscriptions() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.desired.Sorted()
}

// ConfirmedSubscriptions returns the interests last acknowledged by the
// server, sorted.
func (i *Instance) ConfirmedSubscriptions() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.confirmed.Sorted()
}

// Done returns a channel closed when the instance has ended.
func (i *Instance) Done() <-chan struct{} {
	return i.done
}

// Err returns the error that ended the instance, if it was rejected.
func (i *Instance) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.terminalErr
}

// AwaitRegistered blocks until the device is registered, the instance ends,
// or ctx is done.
func (i *Instance) AwaitRegistered(ctx context.Context) error {
	select {
	case <-i.registered:
		return nil
	default:
	}

	select {
	case <-i.registered:
		return nil
	case <-i.done:
		if err := i.Err(); err != nil {
			return err
		}
		return syncerr.New(syncerr.KindPrecondition, "awaitRegistered", "instance stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetOnSubscriptionsChangedListener installs l, replacing any previous
// listener. A nil l removes it.
func (i *Instance) SetOnSubscriptionsChangedListener(l dispatch.Listener) {
	i.listeners.Set(l)
}

// Subscribe adds name to the desired interests.
func (i *Instance) Subscribe(name string) error {
	const op = "subscribe"

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.requireRegisteredLocked(op); err != nil {
		return err
	}
	if err := interest.ValidateName(name); err != nil {
		return withOp(op, err)
	}
	if i.desired.Contains(name) {
		return nil
	}
	if i.desired.Len() >= interest.MaxInterests {
		return syncerr.Newf(syncerr.KindValidation, op,
			"interest set would exceed %d names", interest.MaxInterests)
	}

	i.desired = i.desired.With(name)
	i.desiredChangedLocked()
	return nil
}

// Unsubscribe removes name from the desired interests.
func (i *Instance) Unsubscribe(name string) error {
	const op = "unsubscribe"

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.requireRegisteredLocked(op); err != nil {
		return err
	}
	if err := interest.ValidateName(name); err != nil {
		return withOp(op, err)
	}
	if !i.desired.Contains(name) {
		return nil
	}

	i.desired = i.desired.Without(name)
	i.desiredChangedLocked()
	return nil
}

// SetSubscriptions replaces the desired interests with names. Setting the
// current set again schedules nothing.
func (i *Instance) SetSubscriptions(names []string) error {
	const op = "setSubscriptions"

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.requireRegisteredLocked(op); err != nil {
		return err
	}
	if err := interest.ValidateNames(names); err != nil {
		return withOp(op, err)
	}

	next := interest.FromSlice(names)
	if next.Equal(i.desired) {
		return nil
	}

	i.desired = next
	i.desiredChangedLocked()
	return nil
}

// UnsubscribeAll clears the desired interests.
func (i *Instance) UnsubscribeAll() error {
	return i.SetSubscriptions(nil)
}

// Resync schedules a reconciliation, e.g. after retries were exhausted.
func (i *Instance) Resync() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.requireRegisteredLocked("resync"); err != nil {
		return err
	}
	i.scheduleReconcileLocked()
	return nil
}

func (i *Instance) desiredChangedLocked() {
	i.metrics.SetInterests(i.desired.Len(), i.confirmed.Len())
	i.scheduleReconcileLocked()
}

func (i *Instance) requireRegisteredLocked(op string) error {
	if i.state != StateRegistered {
		return syncerr.Newf(syncerr.KindPrecondition, op, "instance is %s, not %s", i.state, StateRegistered)
	}
	return nil
}

// withOp stamps op on a classified error that has none.
func withOp(op string, err error) error {
	if e, ok := err.(*syncerr.Error); ok && e.Op == "" {
		c := *e
		c.Op = op
		return &c
	}
	return err
}

// serverSetLocked returns the interests the server is known to hold.
func (i *Instance) serverSetLocked() interest.Set {
	if i.acked != nil {
		return i.acked
	}
	return i.confirmed
}

// snapshotLocked returns the persisted view of the instance.
func (i *Instance) snapshotLocked() *persistence.DeviceState {
	st := &persistence.DeviceState{
		InstanceID: i.instanceID,
		DeviceID:   i.deviceID,
		PushToken:  i.pushToken,
		Desired:    i.desired.Sorted(),
		Confirmed:  i.serverSetLocked().Sorted(),
		UserID:     i.userID,
	}
	if i.metadata != nil {
		md := *i.metadata
		st.Metadata = &md
	}
	return st
}

// persist writes the current state. Called only from the work queue so
// writes land in order. Skipped once gen has moved past want.
func (i *Instance) persist(want uint64) {
	i.mu.Lock()
	if i.gen != want {
		i.mu.Unlock()
		return
	}
	st := i.snapshotLocked()
	i.mu.Unlock()

	if err := persistence.SaveDeviceState(i.store, st); err != nil {
		i.warn("persist state failed", "error", err)
		i.logError("persist", err)
	}
}

// debugLog logs a debug message if logging is enabled.
func (i *Instance) debugLog(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Debug(msg, append([]any{"instance", i.instanceID}, args...)...)
	}
}

// infoLog logs an info message if logging is enabled.
func (i *Instance) infoLog(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Info(msg, append([]any{"instance", i.instanceID}, args...)...)
	}
}

func (i *Instance) warn(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Warn(msg, append([]any{"instance", i.instanceID}, args...)...)
	}
}
