package service

import (
	"context"

	"github.com/pushsync/pushsync-go/pkg/auth"
	"github.com/pushsync/pushsync-go/pkg/dispatch"
	"github.com/pushsync/pushsync-go/pkg/log"
	"github.com/pushsync/pushsync-go/pkg/metrics"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// userRequest is the one user association change in progress.
type userRequest struct {
	epoch  uint64
	name   string
	userID string
	op     *dispatch.Op

	// refetched is set after the first Unauthorized answer.
	refetched bool
}

func (i *Instance) takePendingUserLocked() *userRequest {
	p := i.pendingUser
	i.pendingUser = nil
	return p
}

// currentLocked reports whether req is still the latest user request of
// generation gen.
func (i *Instance) currentLocked(req *userRequest, gen uint64) bool {
	return i.gen == gen && i.tokenEpoch == req.epoch && i.pendingUser == req
}

// beginUserLocked installs a new user request, superseding the previous one.
func (i *Instance) beginUserLocked(name, userID string) (req, prev *userRequest) {
	i.tokenEpoch++
	prev = i.takePendingUserLocked()
	req = &userRequest{
		epoch:  i.tokenEpoch,
		name:   name,
		userID: userID,
		op:     dispatch.NewOp(i.dispatcher),
	}
	i.pendingUser = req
	return req, prev
}

func (i *Instance) supersede(prev *userRequest) {
	if prev == nil {
		return
	}
	i.resolve(prev.op, prev.name, syncerr.New(syncerr.KindSuperseded, prev.name, "superseded by a newer user call"))
}

// SetUserID associates the device with userID. A token for the user is
// fetched from the token provider given to Start; only the latest call's
// token is applied, earlier calls resolve with a Superseded error.
//
// Setting the already associated user succeeds immediately. Setting a
// different user while one is associated is a configuration error; call
// ClearUserID first.
func (i *Instance) SetUserID(userID string) *dispatch.Op {
	const name = "setUserId"

	i.mu.Lock()
	if err := i.requireRegisteredLocked(name); err != nil {
		i.mu.Unlock()
		return i.completed(name, err)
	}
	if i.fetcher == nil {
		i.mu.Unlock()
		return i.completed(name, syncerr.New(syncerr.KindConfiguration, name,
			"no token provider was given to Start"))
	}
	if userID == "" {
		i.mu.Unlock()
		return i.completed(name, syncerr.New(syncerr.KindValidation, name, "user id must not be empty"))
	}
	if i.userID == userID && i.pendingUser == nil {
		i.mu.Unlock()
		return i.completed(name, nil)
	}
	if i.userID != "" && i.userID != userID {
		current := i.userID
		i.mu.Unlock()
		return i.completed(name, syncerr.Newf(syncerr.KindConfiguration, name,
			"device is already associated with user %q", current))
	}

	req, prev := i.beginUserLocked(name, userID)
	gen := i.gen
	i.mu.Unlock()

	i.supersede(prev)
	i.debugLog("fetching user token", "user", userID, "epoch", req.epoch)
	i.fetchUserToken(req, gen)
	return req.op
}

// fetchUserToken asks the token provider off the work queue and hands the
// answer back to it.
func (i *Instance) fetchUserToken(req *userRequest, gen uint64) {
	results := i.fetcher.FetchAsync(req.userID, i.cfg.TokenFetchTimeout)
	go func() {
		r := <-results
		if r.Err != nil {
			i.metrics.TokenFetch(resultOf(r.Err))
		} else {
			i.metrics.TokenFetch(metrics.ResultOK)
		}
		// A closed queue means the instance ended and resolved req.
		i.queue.post(func() { i.associate(req, gen, r) })
	}()
}

func (i *Instance) associate(req *userRequest, gen uint64, r auth.Result) {
	const op = "associateUser"

	i.mu.Lock()
	if !i.currentLocked(req, gen) {
		i.mu.Unlock()
		i.logDiscarded("fetchToken")
		return
	}
	deviceID := i.deviceID
	i.mu.Unlock()

	if r.Err != nil {
		i.finishUser(req, r.Err)
		return
	}

	attempt := 0
	err := i.retrier.Do(i.runCtx, op, func(ctx context.Context) error {
		attempt++
		return i.call(ctx, op, attempt, log.RequestEvent{UserID: req.userID}, func(ctx context.Context) error {
			return i.client.AssociateUser(ctx, deviceID, r.Token)
		})
	})

	switch syncerr.KindOf(err) {
	case syncerr.KindUnknown:
		if err != nil {
			i.finishUser(req, err)
			return
		}
		i.mu.Lock()
		if !i.currentLocked(req, gen) {
			i.mu.Unlock()
			i.logDiscarded(op)
			return
		}
		i.pendingUser = nil
		from := i.userID
		i.userID = req.userID
		i.mu.Unlock()

		i.persist(gen)
		i.logState(log.StateEntityUser, from, req.userID, "associated")
		i.infoLog("user associated", "user", req.userID)
		i.resolve(req.op, req.name, nil)

	case syncerr.KindUnauthorized:
		i.mu.Lock()
		retry := i.currentLocked(req, gen) && !req.refetched
		if retry {
			req.refetched = true
		}
		i.mu.Unlock()
		if !retry {
			i.finishUser(req, err)
			return
		}
		i.debugLog("user token rejected, fetching a new one", "user", req.userID)
		i.fetchUserToken(req, gen)

	case syncerr.KindPermanentRejection:
		i.reject(gen, err)

	default:
		i.finishUser(req, err)
	}
}

// ClearUserID removes the user association. Any SetUserID in progress is
// superseded.
func (i *Instance) ClearUserID() *dispatch.Op {
	const name = "clearUserId"

	i.mu.Lock()
	if err := i.requireRegisteredLocked(name); err != nil {
		i.mu.Unlock()
		return i.completed(name, err)
	}
	if i.userID == "" && i.pendingUser == nil {
		i.mu.Unlock()
		return i.completed(name, nil)
	}

	req, prev := i.beginUserLocked(name, "")
	gen := i.gen
	i.mu.Unlock()

	i.supersede(prev)
	if !i.queue.post(func() { i.disassociate(req, gen) }) {
		i.resolve(req.op, name, syncerr.New(syncerr.KindPrecondition, name, "instance stopped"))
	}
	return req.op
}

func (i *Instance) disassociate(req *userRequest, gen uint64) {
	const op = "disassociateUser"

	i.mu.Lock()
	if !i.currentLocked(req, gen) {
		i.mu.Unlock()
		return
	}
	deviceID := i.deviceID
	i.mu.Unlock()

	attempt := 0
	err := i.retrier.Do(i.runCtx, op, func(ctx context.Context) error {
		attempt++
		return i.call(ctx, op, attempt, log.RequestEvent{}, func(ctx context.Context) error {
			return i.client.DisassociateUser(ctx, deviceID)
		})
	})

	switch {
	case err == nil:
		i.mu.Lock()
		if !i.currentLocked(req, gen) {
			i.mu.Unlock()
			i.logDiscarded(op)
			return
		}
		i.pendingUser = nil
		from := i.userID
		i.userID = ""
		i.mu.Unlock()

		i.persist(gen)
		i.logState(log.StateEntityUser, from, "", "disassociated")
		i.infoLog("user disassociated", "user", from)
		i.resolve(req.op, req.name, nil)

	case syncerr.KindOf(err) == syncerr.KindPermanentRejection:
		i.reject(gen, err)

	default:
		i.finishUser(req, err)
	}
}

// finishUser fails req. A request that was already superseded or resolved
// by a stop is left alone.
func (i *Instance) finishUser(req *userRequest, err error) {
	i.mu.Lock()
	if i.pendingUser == req {
		i.pendingUser = nil
	}
	i.mu.Unlock()

	if i.resolve(req.op, req.name, err) {
		i.logError(req.name, err)
	}
}
