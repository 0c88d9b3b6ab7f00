package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushsync/pushsync-go/internal/fake"
	"github.com/pushsync/pushsync-go/pkg/interest"
	"github.com/pushsync/pushsync-go/pkg/persistence"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

func TestSubscribeTwiceNotifiesListener(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	rec := &recorder{}
	inst.SetOnSubscriptionsChangedListener(rec)

	require.NoError(t, inst.Subscribe("hello"))
	require.NoError(t, inst.Subscribe("donuts"))

	want := []string{"donuts", "hello"}
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, rec.Last())
	}, waitFor, tick)

	assert.Equal(t, want, inst.Subscriptions())
	assert.Equal(t, want, inst.ConfirmedSubscriptions())
	assert.Equal(t, want, serverInterests(env, inst))
	assert.LessOrEqual(t, env.server.CallCount(fake.OpUpdateInterests), 2)

	changes := rec.Changes()
	for n := 1; n < len(changes); n++ {
		assert.NotEqual(t, changes[n-1], changes[n], "listener fired without a change")
	}
	assert.Empty(t, rec.Errors())
}

func TestSubscribeBeforeReconcileFiresOnce(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	rec := &recorder{}
	inst.SetOnSubscriptionsChangedListener(rec)

	// Hold the queue so both changes are pending when reconciliation runs.
	release := make(chan struct{})
	require.True(t, inst.queue.post(func() { <-release }))
	require.NoError(t, inst.Subscribe("sports"))
	require.NoError(t, inst.Subscribe("news"))
	close(release)

	want := []string{"news", "sports"}
	require.Eventually(t, func() bool {
		return len(rec.Changes()) > 0
	}, waitFor, tick)
	flush(t, inst)

	assert.Equal(t, [][]string{want}, rec.Changes())
	assert.Equal(t, want, inst.Subscriptions())
	assert.Equal(t, 1, env.server.CallCount(fake.OpUpdateInterests))
}

func TestSubscriptionsReadYourWrites(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)
	gate := env.server.Hold(fake.OpUpdateInterests)
	t.Cleanup(gate.Release)

	require.NoError(t, inst.Subscribe("b"))
	<-gate.Entered()
	require.NoError(t, inst.Subscribe("a"))
	assert.Equal(t, []string{"a", "b"}, inst.Subscriptions())

	require.NoError(t, inst.Unsubscribe("b"))
	assert.Equal(t, []string{"a"}, inst.Subscriptions())

	require.NoError(t, inst.SetSubscriptions([]string{"x", "y", "x"}))
	assert.Equal(t, []string{"x", "y"}, inst.Subscriptions())

	require.NoError(t, inst.UnsubscribeAll())
	assert.Empty(t, inst.Subscriptions())

	gate.Release()
	require.Eventually(t, func() bool {
		return len(serverInterests(env, inst)) == 0
	}, waitFor, tick)
	flush(t, inst)
	assert.Empty(t, inst.ConfirmedSubscriptions())
	assert.Equal(t, 2, env.server.CallCount(fake.OpUpdateInterests))
}

func TestSubscribeValidation(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)
	require.NoError(t, inst.Subscribe("kept"))

	tests := []struct {
		name string
		call func() error
	}{
		{"empty name", func() error { return inst.Subscribe("") }},
		{"bad character", func() error { return inst.Subscribe("no spaces") }},
		{"too long", func() error { return inst.Subscribe(strings.Repeat("a", interest.MaxNameLength+1)) }},
		{"unsubscribe bad name", func() error { return inst.Unsubscribe("a/b") }},
		{"set with bad name", func() error { return inst.SetSubscriptions([]string{"ok", "not ok"}) }},
		{"set too many", func() error {
			names := make([]string, interest.MaxInterests+1)
			for n := range names {
				names[n] = fmt.Sprintf("i-%d", n)
			}
			return inst.SetSubscriptions(names)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.ErrorIs(t, err, syncerr.ErrValidation)
			assert.Equal(t, []string{"kept"}, inst.Subscriptions())
		})
	}
}

func TestSubscribeRejectsSetAtCapacity(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	names := make([]string, interest.MaxInterests)
	for n := range names {
		names[n] = fmt.Sprintf("i-%d", n)
	}
	require.NoError(t, inst.SetSubscriptions(names))

	err := inst.Subscribe("one-more")
	assert.ErrorIs(t, err, syncerr.ErrValidation)
	assert.Len(t, inst.Subscriptions(), interest.MaxInterests)

	// Re-subscribing an existing name is not growth.
	assert.NoError(t, inst.Subscribe("i-0"))
}

func TestSubscribeRequiresRegistered(t *testing.T) {
	env := newTestEnv(t, withPushTokens(fake.SilentPushTokens()))

	inst, err := env.rt.Start(testInstance, nil)
	require.NoError(t, err)
	assert.Equal(t, StateStarting, inst.State())

	assert.ErrorIs(t, inst.Subscribe("a"), syncerr.ErrPrecondition)
	assert.ErrorIs(t, inst.Unsubscribe("a"), syncerr.ErrPrecondition)
	assert.ErrorIs(t, inst.SetSubscriptions([]string{"a"}), syncerr.ErrPrecondition)
	assert.ErrorIs(t, inst.UnsubscribeAll(), syncerr.ErrPrecondition)
	assert.ErrorIs(t, inst.Resync(), syncerr.ErrPrecondition)
	assert.Empty(t, inst.Subscriptions())
}

func TestSetSubscriptionsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	require.NoError(t, inst.SetSubscriptions([]string{"a", "b"}))
	require.Eventually(t, func() bool {
		return len(inst.ConfirmedSubscriptions()) == 2
	}, waitFor, tick)
	flush(t, inst)
	calls := env.server.CallCount(fake.OpUpdateInterests)

	require.NoError(t, inst.SetSubscriptions([]string{"b", "a"}))
	require.NoError(t, inst.SetSubscriptions([]string{"a", "b", "a"}))
	require.NoError(t, inst.Subscribe("a"))
	require.NoError(t, inst.Unsubscribe("missing"))
	flush(t, inst)

	assert.Equal(t, calls, env.server.CallCount(fake.OpUpdateInterests))
}

func TestReconcileConvergesAfterRetryableErrors(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)
	env.server.FailNext(fake.OpUpdateInterests,
		fake.Unavailable(fake.OpUpdateInterests),
		fake.Unavailable(fake.OpUpdateInterests),
	)

	rec := &recorder{}
	inst.SetOnSubscriptionsChangedListener(rec)
	require.NoError(t, inst.Subscribe("a"))

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"a"}, rec.Last())
	}, waitFor, tick)
	assert.Equal(t, 3, env.server.CallCount(fake.OpUpdateInterests))
	assert.Equal(t, []string{"a"}, serverInterests(env, inst))
	assert.Empty(t, rec.Errors())
}

func TestReconcileExhaustionReportsOnce(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	// Policy allows three retries: four attempts in total.
	for range 4 {
		env.server.FailNext(fake.OpUpdateInterests, fake.Unavailable(fake.OpUpdateInterests))
	}

	rec := &recorder{}
	inst.SetOnSubscriptionsChangedListener(rec)
	require.NoError(t, inst.Subscribe("a"))

	require.Eventually(t, func() bool { return len(rec.Errors()) == 1 }, waitFor, tick)
	flush(t, inst)

	assert.ErrorIs(t, rec.Errors()[0], syncerr.ErrRetryable)
	assert.Equal(t, 4, env.server.CallCount(fake.OpUpdateInterests))
	assert.Equal(t, []string{"a"}, inst.Subscriptions())
	assert.Empty(t, inst.ConfirmedSubscriptions())
	assert.Equal(t, StateRegistered, inst.State())

	require.NoError(t, inst.Resync())
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"a"}, rec.Last())
	}, waitFor, tick)
	assert.Len(t, rec.Errors(), 1)
}

func TestReconcileNewerDesiredPreemptsInFlight(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	rec := &recorder{}
	inst.SetOnSubscriptionsChangedListener(rec)

	gate := env.server.Hold(fake.OpUpdateInterests)
	t.Cleanup(gate.Release)

	require.NoError(t, inst.Subscribe("a"))
	<-gate.Entered()
	require.NoError(t, inst.Subscribe("b"))
	gate.Release()

	want := []string{"a", "b"}
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, rec.Last())
	}, waitFor, tick)
	flush(t, inst)

	// The response for {a} arrived after desired moved on; it was not
	// reported as confirmed.
	assert.Equal(t, [][]string{want}, rec.Changes())
	assert.Equal(t, want, inst.ConfirmedSubscriptions())
	assert.Equal(t, want, serverInterests(env, inst))

	calls := env.server.Calls(fake.OpUpdateInterests)
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"a"}, calls[0].Interests)
	assert.Equal(t, want, calls[1].Interests)
}

func TestReconcileRevertDuringFlightConverges(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	rec := &recorder{}
	inst.SetOnSubscriptionsChangedListener(rec)

	gate := env.server.Hold(fake.OpUpdateInterests)
	t.Cleanup(gate.Release)

	require.NoError(t, inst.Subscribe("a"))
	<-gate.Entered()
	require.NoError(t, inst.Unsubscribe("a"))
	gate.Release()

	// The server took {a} after desired went back to {}; it must be told.
	require.Eventually(t, func() bool {
		return env.server.CallCount(fake.OpUpdateInterests) == 2
	}, waitFor, tick)
	flush(t, inst)

	assert.Empty(t, serverInterests(env, inst))
	assert.Empty(t, inst.ConfirmedSubscriptions())
	assert.Empty(t, rec.Changes())

	st, err := persistence.LoadDeviceState(env.store)
	require.NoError(t, err)
	assert.Empty(t, st.Confirmed)
}

func TestReconcileStaleAckIsPersistedAsServerSet(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	rec := &recorder{}
	inst.SetOnSubscriptionsChangedListener(rec)

	first := env.server.Hold(fake.OpUpdateInterests)
	t.Cleanup(first.Release)
	require.NoError(t, inst.Subscribe("a"))
	<-first.Entered()
	require.NoError(t, inst.Unsubscribe("a"))

	// The follow-up pass fails for good, so the server keeps {a}.
	second := env.server.Hold(fake.OpUpdateInterests)
	t.Cleanup(second.Release)
	first.Release()
	<-second.Entered()
	unavailable := fake.Unavailable(fake.OpUpdateInterests)
	env.server.FailNext(fake.OpUpdateInterests, unavailable, unavailable, unavailable, unavailable)
	second.Release()

	require.Eventually(t, func() bool { return len(rec.Errors()) == 1 }, waitFor, tick)
	flush(t, inst)

	st, err := persistence.LoadDeviceState(env.store)
	require.NoError(t, err)
	assert.Empty(t, st.Desired)
	assert.Equal(t, []string{"a"}, st.Confirmed)
	assert.Equal(t, []string{"a"}, serverInterests(env, inst))
}

func TestReconcileBurstCoalesces(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	gate := env.server.Hold(fake.OpUpdateInterests)
	t.Cleanup(gate.Release)
	require.NoError(t, inst.Subscribe("first"))
	<-gate.Entered()

	for n := range 20 {
		require.NoError(t, inst.Subscribe(fmt.Sprintf("burst-%d", n)))
	}
	gate.Release()

	require.Eventually(t, func() bool {
		return len(inst.ConfirmedSubscriptions()) == 21
	}, waitFor, tick)
	flush(t, inst)
	assert.Equal(t, 2, env.server.CallCount(fake.OpUpdateInterests))
}

func TestReconcilePersistsSets(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	require.NoError(t, inst.SetSubscriptions([]string{"b", "a"}))
	require.Eventually(t, func() bool {
		return len(inst.ConfirmedSubscriptions()) == 2
	}, waitFor, tick)
	flush(t, inst)

	st, err := persistence.LoadDeviceState(env.store)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, st.Desired)
	assert.Equal(t, []string{"a", "b"}, st.Confirmed)
}

func TestRegisterMergesInitialInterests(t *testing.T) {
	env := newTestEnv(t)
	env.server.SetInitialInterests("push-token", "from-before")

	inst, err := env.rt.Start(testInstance, nil)
	require.NoError(t, err)
	rec := &recorder{}
	inst.SetOnSubscriptionsChangedListener(rec)
	env.startWith(t, nil)

	assert.Equal(t, []string{"from-before"}, inst.Subscriptions())
	assert.Equal(t, []string{"from-before"}, inst.ConfirmedSubscriptions())
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"from-before"}, rec.Last())
	}, waitFor, tick)
	flush(t, inst)
	assert.Equal(t, 0, env.server.CallCount(fake.OpUpdateInterests))
}

func TestRegisterMergeStaysWithinLimit(t *testing.T) {
	names := make([]string, interest.MaxInterests)
	for n := range names {
		names[n] = fmt.Sprintf("d-%04d", n)
	}
	store := persistence.NewMemoryStore()
	require.NoError(t, persistence.SaveDeviceState(store, &persistence.DeviceState{
		InstanceID: testInstance,
		Desired:    names,
	}))

	env := newTestEnv(t, withStore(store))
	env.server.SetInitialInterests("push-token", "srv-a", "srv-b")
	gate := env.server.Hold(fake.OpRegister)
	t.Cleanup(gate.Release)

	inst, err := env.rt.Start(testInstance, nil)
	require.NoError(t, err)
	rec := &recorder{}
	inst.SetOnSubscriptionsChangedListener(rec)
	gate.Release()
	env.startWith(t, nil)

	require.Eventually(t, func() bool { return len(rec.Errors()) == 1 }, waitFor, tick)
	assert.ErrorIs(t, rec.Errors()[0], syncerr.ErrValidation)

	desired := inst.Subscriptions()
	assert.Len(t, desired, interest.MaxInterests)
	assert.Contains(t, desired, "srv-a")
	assert.Contains(t, desired, "srv-b")
	assert.Contains(t, desired, "d-4997")
	assert.NotContains(t, desired, "d-4998")
	assert.NotContains(t, desired, "d-4999")
}

func TestPermanentRejectionKeepsDesired(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)
	rec := &recorder{}
	inst.SetOnSubscriptionsChangedListener(rec)

	env.server.Forget(inst.DeviceID())
	require.NoError(t, inst.Subscribe("a"))

	require.Eventually(t, func() bool { return len(rec.Errors()) == 1 }, waitFor, tick)
	assert.ErrorIs(t, rec.Errors()[0], syncerr.ErrPermanentRejection)
	assert.ErrorIs(t, inst.Err(), syncerr.ErrPermanentRejection)
	assert.Equal(t, StateNotStarted, inst.State())
	assert.Equal(t, StateNotStarted, env.rt.State())
	assert.ErrorIs(t, inst.Subscribe("b"), syncerr.ErrPrecondition)

	st, err := persistence.LoadDeviceState(env.store)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, testInstance, st.InstanceID)
	assert.Empty(t, st.DeviceID)
	assert.Equal(t, []string{"a"}, st.Desired)

	// The next start registers a new device and flushes the kept interests.
	next := env.start(t)
	assert.NotSame(t, inst, next)
	require.Eventually(t, func() bool {
		return len(next.ConfirmedSubscriptions()) == 1
	}, waitFor, tick)
	assert.Equal(t, []string{"a"}, serverInterests(env, next))
}
