package service

import (
	"context"
	"errors"

	"github.com/pushsync/pushsync-go/pkg/backoff"
	"github.com/pushsync/pushsync-go/pkg/dispatch"
	"github.com/pushsync/pushsync-go/pkg/interest"
	"github.com/pushsync/pushsync-go/pkg/log"
	"github.com/pushsync/pushsync-go/pkg/persistence"
	"github.com/pushsync/pushsync-go/pkg/registration"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// begin queues the start sequence. Called once by the Runtime.
func (i *Instance) begin() {
	i.mu.Lock()
	gen := i.gen
	i.mu.Unlock()

	i.metrics.SetState(StateStarting.String(), allStates)
	i.logState(log.StateEntityInstance, StateNotStarted.String(), StateStarting.String(), "start")
	i.infoLog("starting", "session", i.sessionID)

	i.queue.post(func() { i.startup(gen) })
}

// startup obtains the platform token, registers the device or reconciles
// a persisted registration, and moves the instance to REGISTERED.
func (i *Instance) startup(gen uint64) {
	token, err := i.awaitPushToken()
	if err != nil {
		return
	}

	i.mu.Lock()
	deviceID := i.deviceID
	persisted := i.pushToken
	i.mu.Unlock()

	switch {
	case deviceID == "":
		err = i.registerDevice(gen, token)
	case persisted != token:
		err = i.updateToken(gen, token)
		if syncerr.KindOf(err) == syncerr.KindPermanentRejection {
			i.infoLog("device unknown to server, registering again", "device", deviceID)
			i.dropDevice(gen)
			err = i.registerDevice(gen, token)
		}
	default:
		i.debugLog("registration restored", "device", deviceID)
	}
	if err == nil && deviceID != "" {
		err = i.syncMetadata(gen)
	}
	if err != nil {
		i.startFailed(gen, err)
		return
	}

	i.mu.Lock()
	if i.gen != gen {
		i.mu.Unlock()
		return
	}
	i.state = StateRegistered
	close(i.registered)
	if i.needsReconcileLocked() {
		i.scheduleReconcileLocked()
	}
	// A token offered after awaitPushToken returned is applied as a rotation.
	select {
	case tok := <-i.tokenCh:
		if tok != i.pushToken {
			i.queue.post(func() { i.rotateToken(gen, tok) })
		}
	default:
	}
	device := i.deviceID
	i.mu.Unlock()

	i.persist(gen)
	i.metrics.SetState(StateRegistered.String(), allStates)
	i.logState(log.StateEntityInstance, StateStarting.String(), StateRegistered.String(), "")
	i.infoLog("registered", "device", device)
}

func (i *Instance) startFailed(gen uint64, err error) {
	if errors.Is(err, errInvalidated) || errors.Is(err, context.Canceled) {
		i.debugLog("start abandoned", "error", err)
		return
	}
	i.reject(gen, err)
}

// awaitPushToken asks the PushTokenSource for a token, retrying source
// failures with backoff until the instance stops.
func (i *Instance) awaitPushToken() (string, error) {
	b := backoff.New(i.cfg.RegisterPolicy)

	for {
		failed := make(chan error, 1)
		i.cfg.PushTokenSource.RequestToken(
			func(token string) {
				if token == "" {
					select {
					case failed <- syncerr.New(syncerr.KindProvider, "requestToken", "empty push token"):
					default:
					}
					return
				}
				_ = i.PushTokenChanged(token)
			},
			func(err error) {
				select {
				case failed <- err:
				default:
				}
			},
		)

		select {
		case token := <-i.tokenCh:
			return token, nil

		case err := <-failed:
			delay, _ := b.Next()
			i.warn("push token request failed", "error", err, "retry_in", delay)
			i.logError("requestToken", err)
			if err := backoff.Sleep(i.runCtx, delay); err != nil {
				return "", err
			}

		case <-i.runCtx.Done():
			return "", i.runCtx.Err()
		}
	}
}

// offerTokenLocked replaces any token waiting for the start sequence.
func (i *Instance) offerTokenLocked(token string) {
	select {
	case <-i.tokenCh:
	default:
	}
	select {
	case i.tokenCh <- token:
	default:
	}
}

// PushTokenChanged reports a new platform token. While starting it feeds
// the registration; once registered the device's token is updated.
func (i *Instance) PushTokenChanged(token string) error {
	const op = "pushTokenChanged"
	if token == "" {
		return syncerr.New(syncerr.KindValidation, op, "push token must not be empty")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	switch i.state {
	case StateStarting:
		i.offerTokenLocked(token)
		return nil
	case StateRegistered:
		if token == i.pushToken {
			return nil
		}
		gen := i.gen
		i.queue.post(func() { i.rotateToken(gen, token) })
		return nil
	default:
		return syncerr.Newf(syncerr.KindPrecondition, op, "instance is %s", i.state)
	}
}

func (i *Instance) rotateToken(gen uint64, token string) {
	i.mu.Lock()
	if i.gen != gen || token == i.pushToken {
		i.mu.Unlock()
		return
	}
	i.mu.Unlock()

	err := i.updateToken(gen, token)
	if syncerr.KindOf(err) == syncerr.KindPermanentRejection {
		i.dropDevice(gen)
		if err = i.registerDevice(gen, token); err == nil {
			i.mu.Lock()
			if i.gen == gen && i.needsReconcileLocked() {
				i.scheduleReconcileLocked()
			}
			i.mu.Unlock()
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, errInvalidated), errors.Is(err, context.Canceled):
	case syncerr.KindOf(err) == syncerr.KindPermanentRejection:
		i.reject(gen, err)
	default:
		i.notifyError(err)
	}
}

// registerDevice creates the device on the server, retrying indefinitely.
// The server's initial interests become confirmed and join desired.
func (i *Instance) registerDevice(gen uint64, token string) error {
	const op = "register"

	var (
		reg     registration.Registration
		attempt int
	)
	err := i.registrar.Do(i.runCtx, op, func(ctx context.Context) error {
		attempt++
		return i.call(ctx, op, attempt, log.RequestEvent{}, func(ctx context.Context) error {
			var err error
			reg, err = i.client.Register(ctx, token, i.cfg.Metadata)
			return err
		})
	})
	if err != nil {
		return err
	}

	i.mu.Lock()
	if i.gen != gen {
		if i.state == StateStopping {
			i.orphanID = reg.DeviceID
		}
		i.mu.Unlock()
		i.logDiscarded(op)
		return errInvalidated
	}
	i.deviceID = reg.DeviceID
	i.pushToken = token
	i.metadata = toPersisted(i.cfg.Metadata)
	i.userID = ""

	initial := reg.InitialInterests.Clone()
	changed := !initial.Equal(i.confirmed)
	i.confirmed = initial
	i.acked = nil
	var dropped int
	i.desired, dropped = mergeInterests(initial, i.desired)
	confirmed := initial.Sorted()
	i.metrics.SetInterests(i.desired.Len(), i.confirmed.Len())
	i.mu.Unlock()

	i.persist(gen)
	i.infoLog("device registered", "device", reg.DeviceID, "initial_interests", len(confirmed))
	if dropped > 0 {
		i.warn("desired interests over the limit after registration", "dropped", dropped)
		i.notifyError(syncerr.Newf(syncerr.KindValidation, op,
			"%d desired interests dropped to stay within %d", dropped, interest.MaxInterests))
	}
	if changed {
		i.notifySubscriptions(confirmed)
	}
	return nil
}

// mergeInterests adds desired to the server's initial interests, keeping
// the union within interest.MaxInterests. Initial interests are always
// kept; desired names are taken in sorted order until the limit is hit.
// It returns the merged set and the number of desired names left out.
func mergeInterests(initial, desired interest.Set) (interest.Set, int) {
	merged := initial.Clone()
	dropped := 0
	for _, name := range desired.Sorted() {
		if merged.Contains(name) {
			continue
		}
		if merged.Len() >= interest.MaxInterests {
			dropped++
			continue
		}
		merged[name] = struct{}{}
	}
	return merged, dropped
}

// updateToken sends a new platform token for the current device.
func (i *Instance) updateToken(gen uint64, token string) error {
	const op = "updateToken"

	i.mu.Lock()
	deviceID := i.deviceID
	i.mu.Unlock()

	attempt := 0
	err := i.registrar.Do(i.runCtx, op, func(ctx context.Context) error {
		attempt++
		return i.call(ctx, op, attempt, log.RequestEvent{}, func(ctx context.Context) error {
			return i.client.UpdateToken(ctx, deviceID, token)
		})
	})
	if err != nil {
		return err
	}

	i.mu.Lock()
	if i.gen != gen {
		i.mu.Unlock()
		i.logDiscarded(op)
		return errInvalidated
	}
	i.pushToken = token
	i.mu.Unlock()

	i.persist(gen)
	i.infoLog("push token updated", "device", deviceID)
	return nil
}

// syncMetadata re-sends the device metadata when it differs from what the
// server last acknowledged. Only a permanent rejection is fatal.
func (i *Instance) syncMetadata(gen uint64) error {
	const op = "updateMetadata"

	i.mu.Lock()
	if sameMetadata(i.metadata, i.cfg.Metadata) {
		i.mu.Unlock()
		return nil
	}
	deviceID := i.deviceID
	i.mu.Unlock()

	attempt := 0
	err := i.retrier.Do(i.runCtx, op, func(ctx context.Context) error {
		attempt++
		return i.call(ctx, op, attempt, log.RequestEvent{}, func(ctx context.Context) error {
			return i.client.UpdateMetadata(ctx, deviceID, i.cfg.Metadata)
		})
	})
	switch {
	case err == nil:
	case syncerr.KindOf(err) == syncerr.KindPermanentRejection,
		errors.Is(err, context.Canceled):
		return err
	default:
		i.warn("metadata update failed", "error", err)
		i.logError(op, err)
		return nil
	}

	i.mu.Lock()
	if i.gen == gen {
		i.metadata = toPersisted(i.cfg.Metadata)
	}
	i.mu.Unlock()
	return nil
}

// dropDevice forgets a device the server no longer knows.
func (i *Instance) dropDevice(gen uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.gen != gen {
		return
	}
	i.deviceID = ""
	i.confirmed = interest.Set{}
	i.acked = nil
	i.userID = ""
}

// Stop deletes the device on the server, best effort, and removes all
// local state. The Op always resolves with nil. Stopping an instance that
// has already ended is a no-op.
func (i *Instance) Stop() *dispatch.Op {
	return i.stop("stop")
}

// ClearAllState stops the instance and removes everything it persisted.
// No new registration is made.
func (i *Instance) ClearAllState() *dispatch.Op {
	return i.stop("clearAllState")
}

func (i *Instance) stop(reason string) *dispatch.Op {
	i.mu.Lock()
	switch {
	case i.state.terminal():
		i.mu.Unlock()
		return i.completed(reason, nil)
	case i.state == StateStopping:
		op := i.stopOp
		i.mu.Unlock()
		return op
	}

	from := i.state
	i.state = StateStopping
	i.gen++
	i.cancel()
	i.reconcileQueued = false
	op := dispatch.NewOp(i.dispatcher)
	i.stopOp = op
	pending := i.takePendingUserLocked()
	i.mu.Unlock()

	i.metrics.SetState(StateStopping.String(), allStates)
	i.logState(log.StateEntityInstance, from.String(), StateStopping.String(), reason)
	i.infoLog("stopping", "reason", reason)

	if pending != nil {
		i.resolve(pending.op, pending.name, syncerr.New(syncerr.KindSuperseded, pending.name, "instance stopped"))
	}

	if !i.queue.post(func() { i.finishStop(op, reason) }) {
		go i.finishStop(op, reason)
	}
	return op
}

// finishStop runs after any in-flight task has returned.
func (i *Instance) finishStop(op *dispatch.Op, reason string) {
	i.mu.Lock()
	deviceID := i.deviceID
	if deviceID == "" {
		deviceID = i.orphanID
	}
	i.mu.Unlock()

	if deviceID != "" {
		err := i.call(context.Background(), "delete", 1, log.RequestEvent{}, func(ctx context.Context) error {
			return i.client.Delete(ctx, deviceID)
		})
		if err != nil {
			i.warn("remote device delete failed", "device", deviceID, "error", err)
			i.logError("delete", err)
		}
	}

	if err := i.store.DeleteAll(); err != nil {
		i.warn("clearing local state failed", "error", err)
		i.logError("clearAllState", err)
	}

	i.mu.Lock()
	i.state = StateStopped
	i.deviceID = ""
	i.orphanID = ""
	i.acked = nil
	i.pushToken = ""
	i.userID = ""
	i.metadata = nil
	i.desired = interest.Set{}
	i.confirmed = interest.Set{}
	close(i.done)
	i.mu.Unlock()

	i.queue.close()
	i.runtime.release(i)

	i.metrics.SetState(StateNotStarted.String(), allStates)
	i.metrics.SetInterests(0, 0)
	i.logState(log.StateEntityInstance, StateStopping.String(), StateStopped.String(), reason)
	i.infoLog("stopped", "reason", reason)
	i.resolve(op, reason, nil)
}

// reject ends the instance after the server permanently refused it. The
// device ID is dropped from the store; desired interests are kept for the
// next start.
func (i *Instance) reject(gen uint64, err error) {
	i.mu.Lock()
	if i.gen != gen || i.state.terminal() || i.state == StateStopping {
		i.mu.Unlock()
		return
	}
	from := i.state
	i.gen++
	i.state = StateNotStarted
	i.terminalErr = err
	i.cancel()
	i.deviceID = ""
	i.pushToken = ""
	i.userID = ""
	i.metadata = nil
	i.confirmed = interest.Set{}
	i.acked = nil
	pending := i.takePendingUserLocked()
	st := i.snapshotLocked()
	close(i.done)
	i.mu.Unlock()

	if perr := persistence.SaveDeviceState(i.store, st); perr != nil {
		i.warn("persist state failed", "error", perr)
	}

	i.queue.close()
	i.runtime.release(i)

	i.metrics.SetState(StateNotStarted.String(), allStates)
	i.logState(log.StateEntityInstance, from.String(), StateNotStarted.String(), "rejected")
	if pending != nil {
		i.resolve(pending.op, pending.name, err)
	}
	i.notifyError(err)
}

// detach ends the instance without touching the server or the store, so
// the next Start resumes the persisted registration.
func (i *Instance) detach() {
	i.mu.Lock()
	switch {
	case i.state.terminal():
		i.mu.Unlock()
		return
	case i.state == StateStopping:
		op := i.stopOp
		i.mu.Unlock()
		_ = op.Wait(context.Background())
		return
	}
	from := i.state
	i.gen++
	i.state = StateStopped
	i.cancel()
	pending := i.takePendingUserLocked()
	close(i.done)
	i.mu.Unlock()

	i.queue.close()
	<-i.queue.finished()
	i.runtime.release(i)

	i.metrics.SetState(StateNotStarted.String(), allStates)
	i.logState(log.StateEntityInstance, from.String(), StateStopped.String(), "detached")
	if pending != nil {
		i.resolve(pending.op, pending.name, syncerr.New(syncerr.KindSuperseded, pending.name, "runtime closed"))
	}
}

// completed returns an Op already resolved with err.
func (i *Instance) completed(name string, err error) *dispatch.Op {
	op := dispatch.NewOp(i.dispatcher)
	i.resolve(op, name, err)
	return op
}
