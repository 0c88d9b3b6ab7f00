package service

import (
	"context"
	"errors"
	"strings"

	"github.com/pushsync/pushsync-go/pkg/interest"
	"github.com/pushsync/pushsync-go/pkg/log"
	"github.com/pushsync/pushsync-go/pkg/metrics"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// errInvalidated ends work whose generation was superseded by a stop or a
// rejection.
var errInvalidated = errors.New("work invalidated")

// scheduleReconcileLocked queues one reconciliation. Requests made while one
// is already queued coalesce into it.
func (i *Instance) scheduleReconcileLocked() {
	if i.reconcileQueued {
		return
	}
	if i.queue.post(i.reconcile) {
		i.reconcileQueued = true
	}
}

// needsReconcileLocked reports whether the server may hold something other
// than desired.
func (i *Instance) needsReconcileLocked() bool {
	return i.acked != nil || !i.desired.Equal(i.confirmed)
}

// reconcile pushes the desired interests to the server.
//
// Each attempt snapshots desired and sends it as one batched update. The
// acknowledged set becomes confirmed only if desired still equals the
// snapshot when the response arrives; otherwise it is kept as the diff base
// and another pass is queued.
func (i *Instance) reconcile() {
	const op = "updateInterests"

	i.mu.Lock()
	i.reconcileQueued = false
	if i.state != StateRegistered {
		i.mu.Unlock()
		return
	}
	gen := i.gen
	i.mu.Unlock()

	// Desired interests are durable before the request goes out.
	i.persist(gen)

	var (
		attempt   int
		applied   bool
		stale     bool
		changed   bool
		confirmed []string
	)

	err := i.retrier.Do(i.runCtx, op, func(ctx context.Context) error {
		stale = false

		i.mu.Lock()
		if i.gen != gen {
			i.mu.Unlock()
			return errInvalidated
		}
		snapshot := i.desired
		base := i.serverSetLocked()
		deviceID := i.deviceID
		if snapshot.Equal(base) {
			// The server already holds desired; only confirmed may lag.
			if i.acked != nil {
				i.applyAckedLocked(snapshot, &changed, &confirmed)
				applied = true
			}
			i.mu.Unlock()
			return nil
		}
		i.mu.Unlock()

		attempt++
		diff := interest.Compute(base, snapshot)
		var acked interest.Set
		err := i.call(ctx, op, attempt, log.RequestEvent{Interests: diff.Target.Sorted()}, func(ctx context.Context) error {
			var err error
			acked, err = i.client.UpdateInterests(ctx, deviceID, diff)
			return err
		})
		if err != nil {
			return err
		}

		i.mu.Lock()
		defer i.mu.Unlock()

		if i.gen != gen {
			return errInvalidated
		}
		if acked == nil {
			acked = snapshot
		}
		if !snapshot.Equal(i.desired) {
			i.acked = acked.Clone()
			stale = true
			return nil
		}
		i.applyAckedLocked(acked, &changed, &confirmed)
		applied = true
		return nil
	})

	switch {
	case errors.Is(err, errInvalidated), errors.Is(err, context.Canceled):
		i.metrics.Reconciliation(metrics.ResultCancelled)
		i.logDiscarded(op)

	case err == nil && stale:
		i.debugLog("desired interests changed in flight, reconciling again")
		i.metrics.Reconciliation(metrics.ResultStale)
		i.logDiscarded(op)
		i.mu.Lock()
		if i.gen == gen {
			i.scheduleReconcileLocked()
		}
		i.mu.Unlock()

	case err == nil:
		if !applied {
			return
		}
		i.metrics.Reconciliation(metrics.ResultOK)
		i.persist(gen)
		if changed {
			i.infoLog("interests confirmed", "interests", confirmed)
			i.logState(log.StateEntityInterests, "", interestsLabel(confirmed), "reconciled")
			i.notifySubscriptions(confirmed)
		}

	case syncerr.KindOf(err) == syncerr.KindPermanentRejection:
		i.metrics.Reconciliation(metrics.ResultRejected)
		i.reject(gen, err)

	default:
		// Desired stays as it is. The next change or Resync tries again.
		i.metrics.Reconciliation(metrics.ResultExhausted)
		i.notifyError(err)
	}
}

// applyAckedLocked makes acked the confirmed set.
func (i *Instance) applyAckedLocked(acked interest.Set, changed *bool, confirmed *[]string) {
	*changed = !acked.Equal(i.confirmed)
	i.confirmed = acked.Clone()
	i.acked = nil
	*confirmed = i.confirmed.Sorted()
	i.metrics.SetInterests(i.desired.Len(), i.confirmed.Len())
}

func interestsLabel(names []string) string {
	return "[" + strings.Join(names, ",") + "]"
}
