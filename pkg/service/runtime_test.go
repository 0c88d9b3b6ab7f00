package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushsync/pushsync-go/internal/fake"
	"github.com/pushsync/pushsync-go/pkg/dispatch"
	"github.com/pushsync/pushsync-go/pkg/log"
	"github.com/pushsync/pushsync-go/pkg/persistence"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
	"github.com/pushsync/pushsync-go/pkg/version"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateNotStarted, "NOT_STARTED"},
		{StateStarting, "STARTING"},
		{StateRegistered, "REGISTERED"},
		{StateStopping, "STOPPING"},
		{StateStopped, "STOPPED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	server := fake.NewServer()
	full := Config{
		Store:           persistence.NewMemoryStore(),
		ClientFactory:   server.ClientFactory(),
		PushTokenSource: fake.NewPushTokens(),
	}

	t.Run("complete", func(t *testing.T) {
		cfg := full
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing store", func(t *testing.T) {
		cfg := full
		cfg.Store = nil
		assert.ErrorIs(t, cfg.Validate(), ErrNoStore)
	})

	t.Run("missing client factory", func(t *testing.T) {
		cfg := full
		cfg.ClientFactory = nil
		assert.ErrorIs(t, cfg.Validate(), ErrNoClientFactory)
	})

	t.Run("missing token source", func(t *testing.T) {
		cfg := full
		cfg.PushTokenSource = nil
		_, err := NewRuntime(cfg)
		assert.ErrorIs(t, err, ErrNoTokenSource)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultReconcileAttempts, cfg.RetryPolicy.MaxAttempts)
	assert.Equal(t, 0, cfg.RegisterPolicy.MaxAttempts)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, version.SDK, cfg.Metadata.SDKVersion)
	assert.Equal(t, version.OS(), cfg.Metadata.OS)
}

func TestRuntimeStartRegisters(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, StateNotStarted, env.rt.State())

	inst := env.start(t)

	assert.Equal(t, StateRegistered, inst.State())
	assert.Equal(t, StateRegistered, env.rt.State())
	assert.Same(t, inst, env.rt.Instance())
	assert.Equal(t, "device-1", inst.DeviceID())
	flush(t, inst)

	calls := env.server.Calls(fake.OpRegister)
	require.Len(t, calls, 1)
	assert.Equal(t, "push-token", calls[0].Token)
	assert.Equal(t, version.SDK, calls[0].Metadata.SDKVersion)

	st, err := persistence.LoadDeviceState(env.store)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, testInstance, st.InstanceID)
	assert.Equal(t, "device-1", st.DeviceID)
	assert.Equal(t, "push-token", st.PushToken)
	require.NotNil(t, st.Metadata)
	assert.Equal(t, version.SDK, st.Metadata.SDKVersion)
}

func TestRuntimeStartConflicts(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.rt.Start("", nil)
	assert.ErrorIs(t, err, syncerr.ErrConfiguration)

	inst := env.start(t)

	again, err := env.rt.Start(testInstance, nil)
	require.NoError(t, err)
	assert.Same(t, inst, again)

	_, err = env.rt.Start("another-instance", nil)
	assert.ErrorIs(t, err, syncerr.ErrConfiguration)
	assert.Equal(t, 1, env.server.CallCount(fake.OpRegister))
}

func TestRuntimeStartRejectsStoredForeignInstance(t *testing.T) {
	store := persistence.NewMemoryStore()
	require.NoError(t, persistence.SaveDeviceState(store, &persistence.DeviceState{
		InstanceID: "another-instance",
		DeviceID:   "device-9",
	}))
	env := newTestEnv(t, withStore(store))

	_, err := env.rt.Start(testInstance, nil)
	assert.ErrorIs(t, err, syncerr.ErrConfiguration)
	assert.Equal(t, StateNotStarted, env.rt.State())

	require.NoError(t, waitOp(t, env.rt.ClearAllState()))
	assert.Equal(t, 0, store.Len())

	env.start(t)
}

func TestRuntimeClearAllStateWithoutInstance(t *testing.T) {
	store := persistence.NewMemoryStore()
	require.NoError(t, store.Put(persistence.KeyInstanceID, []byte(testInstance)))
	env := newTestEnv(t, withStore(store))

	require.NoError(t, waitOp(t, env.rt.ClearAllState()))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, env.server.CallCount(""))
}

func TestRuntimeClosedRejectsStart(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.rt.Close())
	require.NoError(t, env.rt.Close())

	_, err := env.rt.Start(testInstance, nil)
	assert.ErrorIs(t, err, ErrRuntimeClosed)
}

func TestRuntimeCloseFromListenerGoroutine(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	closed := make(chan error, 1)
	inst.SetOnSubscriptionsChangedListener(dispatch.ListenerFuncs{
		SubscriptionsChanged: func([]string) {
			go func() { closed <- env.rt.Close() }()
		},
	})
	require.NoError(t, inst.Subscribe("a"))

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Close did not return")
	}
	assert.False(t, env.rt.Dispatcher().Running())
	_, err := env.rt.Start(testInstance, nil)
	assert.ErrorIs(t, err, ErrRuntimeClosed)
}

func TestRuntimeRestartResumesRegistration(t *testing.T) {
	store := persistence.NewMemoryStore()
	server := fake.NewServer()

	first := newTestEnv(t, withStore(store), withServer(server))
	inst := first.start(t)
	require.NoError(t, inst.Subscribe("hello"))
	require.Eventually(t, func() bool {
		return len(inst.ConfirmedSubscriptions()) == 1
	}, waitFor, tick)
	flush(t, inst)
	deviceID := inst.DeviceID()
	require.NoError(t, first.rt.Close())

	second := newTestEnv(t, withStore(store), withServer(server))
	resumed := second.start(t)

	assert.Equal(t, deviceID, resumed.DeviceID())
	assert.Equal(t, []string{"hello"}, resumed.Subscriptions())
	assert.Equal(t, []string{"hello"}, resumed.ConfirmedSubscriptions())
	assert.Equal(t, 1, server.CallCount(fake.OpRegister))
	assert.Equal(t, 0, server.CallCount(fake.OpUpdateToken))
	assert.Equal(t, 0, server.CallCount(fake.OpUpdateMetadata))
}

func TestRuntimeRestartWithNewPushToken(t *testing.T) {
	store := persistence.NewMemoryStore()
	server := fake.NewServer()

	first := newTestEnv(t, withStore(store), withServer(server))
	firstInst := first.start(t)
	flush(t, firstInst)
	deviceID := firstInst.DeviceID()
	require.NoError(t, first.rt.Close())

	second := newTestEnv(t, withStore(store), withServer(server),
		withPushTokens(fake.NewPushTokens("rotated-token")))
	inst := second.start(t)

	assert.Equal(t, deviceID, inst.DeviceID())
	calls := server.Calls(fake.OpUpdateToken)
	require.Len(t, calls, 1)
	assert.Equal(t, "rotated-token", calls[0].Token)

	d, ok := server.Device(deviceID)
	require.True(t, ok)
	assert.Equal(t, "rotated-token", d.Token)
}

func TestRuntimeRestartReregistersForgottenDevice(t *testing.T) {
	store := persistence.NewMemoryStore()
	server := fake.NewServer()

	first := newTestEnv(t, withStore(store), withServer(server))
	firstInst := first.start(t)
	flush(t, firstInst)
	old := firstInst.DeviceID()
	require.NoError(t, first.rt.Close())
	server.Forget(old)

	second := newTestEnv(t, withStore(store), withServer(server),
		withPushTokens(fake.NewPushTokens("rotated-token")))
	inst := second.start(t)

	assert.NotEqual(t, old, inst.DeviceID())
	assert.Equal(t, 2, server.CallCount(fake.OpRegister))
}

func TestRuntimeRestartResendsChangedMetadata(t *testing.T) {
	store := persistence.NewMemoryStore()
	server := fake.NewServer()

	first := newTestEnv(t, withStore(store), withServer(server), func(c *Config) {
		c.Metadata.SDKVersion = "0.9.0"
	})
	flush(t, first.start(t))
	require.NoError(t, first.rt.Close())

	second := newTestEnv(t, withStore(store), withServer(server))
	flush(t, second.start(t))

	calls := server.Calls(fake.OpUpdateMetadata)
	require.Len(t, calls, 1)
	assert.Equal(t, version.SDK, calls[0].Metadata.SDKVersion)

	st, err := persistence.LoadDeviceState(store)
	require.NoError(t, err)
	require.NotNil(t, st.Metadata)
	assert.Equal(t, version.SDK, st.Metadata.SDKVersion)
}

func TestStartRetriesPushTokenSource(t *testing.T) {
	push := fake.NewPushTokens("push-token")
	push.FailNext(assert.AnError, assert.AnError)
	env := newTestEnv(t, withPushTokens(push))

	env.start(t)
	assert.Equal(t, 3, push.Requests())
}

func TestStartRetriesRegistration(t *testing.T) {
	env := newTestEnv(t)
	env.server.FailNext(fake.OpRegister,
		fake.Unavailable(fake.OpRegister),
		fake.Unavailable(fake.OpRegister),
		fake.Unavailable(fake.OpRegister),
		fake.Unavailable(fake.OpRegister),
		fake.Unavailable(fake.OpRegister),
	)

	env.start(t)
	assert.Equal(t, 6, env.server.CallCount(fake.OpRegister))
}

func TestStartRejectedRegistration(t *testing.T) {
	env := newTestEnv(t)
	env.server.FailNext(fake.OpRegister, syncerr.New(syncerr.KindPermanentRejection, "register", "http 400"))

	inst, err := env.rt.Start(testInstance, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	err = inst.AwaitRegistered(ctx)
	assert.ErrorIs(t, err, syncerr.ErrPermanentRejection)
	assert.Equal(t, StateNotStarted, inst.State())
	assert.Equal(t, StateNotStarted, env.rt.State())
	assert.Nil(t, env.rt.Instance())
}

func TestStartEmitsSessionEvents(t *testing.T) {
	env := newTestEnv(t)
	inst := env.start(t)

	state := log.CategoryState
	events := env.events.Events(log.Filter{SessionID: inst.SessionID(), Category: &state})
	require.NotEmpty(t, events)

	var states []string
	for _, e := range events {
		if e.StateChange != nil && e.StateChange.Entity == log.StateEntityInstance {
			states = append(states, e.StateChange.NewState)
		}
	}
	assert.Equal(t, []string{"STARTING", "REGISTERED"}, states)

	reqs := env.events.Events(log.Filter{Operation: "register"})
	require.Len(t, reqs, 2)
	require.NotNil(t, reqs[0].Request)
	require.NotNil(t, reqs[1].Response)
	assert.Equal(t, "OK", reqs[1].Response.Result)
	assert.Equal(t, testInstance, reqs[1].InstanceID)
	assert.WithinDuration(t, time.Now(), reqs[1].Timestamp, waitFor)
}
