package service

import (
	"context"
	"errors"
	"time"

	"github.com/pushsync/pushsync-go/pkg/dispatch"
	"github.com/pushsync/pushsync-go/pkg/log"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

const (
	resultOK        = "OK"
	resultCancelled = "CANCELLED"
	resultDiscarded = "DISCARDED"
)

// resultOf names the outcome of a call for events and metrics.
func resultOf(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, context.Canceled), errors.Is(err, errInvalidated):
		return resultCancelled
	default:
		return syncerr.KindOf(err).String()
	}
}

// call runs one device API request with the per-request timeout, recording
// the request and response.
func (i *Instance) call(ctx context.Context, op string, attempt int, req log.RequestEvent, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.RequestTimeout)
	defer cancel()

	req.Operation = op
	req.Attempt = attempt
	i.emit(log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Request:   &req,
	})

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	result := resultOf(err)
	i.metrics.ObserveRequest(op, result, elapsed)
	i.emit(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Response: &log.ResponseEvent{
			Operation: op,
			Attempt:   attempt,
			Result:    result,
			Duration:  elapsed,
		},
	})
	i.debugLog("device api call", "op", op, "attempt", attempt, "result", result, "duration", elapsed)
	return err
}

// logDiscarded records a response that arrived after it became stale.
func (i *Instance) logDiscarded(op string) {
	i.debugLog("discarding stale response", "op", op)
	i.emit(log.Event{
		Direction: log.DirectionLocal,
		Layer:     log.LayerEngine,
		Category:  log.CategoryMessage,
		Response: &log.ResponseEvent{
			Operation: op,
			Result:    resultDiscarded,
			Discarded: true,
		},
	})
}

func (i *Instance) logState(entity log.StateEntity, from, to, reason string) {
	i.emit(log.Event{
		Direction: log.DirectionLocal,
		Layer:     log.LayerEngine,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func (i *Instance) logError(where string, err error) {
	i.emit(log.Event{
		Direction: log.DirectionLocal,
		Layer:     log.LayerEngine,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerEngine,
			Message: err.Error(),
			Kind:    syncerr.KindOf(err).String(),
			Context: where,
		},
	})
}

// notifySubscriptions hands the confirmed set to the listener.
func (i *Instance) notifySubscriptions(interests []string) {
	i.emit(log.Event{
		Direction: log.DirectionLocal,
		Layer:     log.LayerApplication,
		Category:  log.CategoryNotification,
		Notification: &log.NotificationEvent{
			Type:      log.NotificationSubscriptionsChanged,
			Interests: interests,
		},
	})
	i.listeners.NotifySubscriptions(i.dispatcher, interests)
}

// notifyError reports a terminal failure to the listener.
func (i *Instance) notifyError(err error) {
	i.warn("sync failed", "error", err)
	i.logError("listener", err)
	i.emit(log.Event{
		Direction: log.DirectionLocal,
		Layer:     log.LayerApplication,
		Category:  log.CategoryNotification,
		Notification: &log.NotificationEvent{
			Type:   log.NotificationError,
			Result: syncerr.KindOf(err).String(),
		},
	})
	i.listeners.NotifyError(i.dispatcher, err)
}

// resolve completes op, recording the outcome. It reports whether this call
// resolved it.
func (i *Instance) resolve(op *dispatch.Op, name string, err error) bool {
	if !op.Resolve(err) {
		return false
	}
	i.emit(log.Event{
		Direction: log.DirectionLocal,
		Layer:     log.LayerApplication,
		Category:  log.CategoryNotification,
		Notification: &log.NotificationEvent{
			Type:      log.NotificationOpCompleted,
			Operation: name,
			Result:    resultOf(err),
		},
	})
	return true
}

// emit stamps and records ev. Must not be called with i.mu held.
func (i *Instance) emit(ev log.Event) {
	ev.Timestamp = time.Now()
	ev.SessionID = i.sessionID
	ev.InstanceID = i.instanceID
	if ev.DeviceID == "" {
		ev.DeviceID = i.DeviceID()
	}
	i.events.Log(ev)
}
