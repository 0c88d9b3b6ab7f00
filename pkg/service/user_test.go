package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushsync/pushsync-go/internal/fake"
	"github.com/pushsync/pushsync-go/pkg/persistence"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

func TestSetUserIDAssociates(t *testing.T) {
	env := newTestEnv(t)
	tokens := fake.NewUserTokens()
	inst := env.startWith(t, tokens)

	require.NoError(t, waitOp(t, inst.SetUserID("alice")))
	assert.Equal(t, "alice", inst.UserID())
	assert.Equal(t, []string{"alice"}, tokens.Calls())

	d, ok := env.server.Device(inst.DeviceID())
	require.True(t, ok)
	assert.Equal(t, "token-alice-1", d.UserToken)

	flush(t, inst)
	st, err := persistence.LoadDeviceState(env.store)
	require.NoError(t, err)
	assert.Equal(t, "alice", st.UserID)

	t.Run("same user succeeds without a request", func(t *testing.T) {
		require.NoError(t, waitOp(t, inst.SetUserID("alice")))
		assert.Len(t, tokens.Calls(), 1)
		assert.Equal(t, 1, env.server.CallCount(fake.OpAssociateUser))
	})

	t.Run("different user is refused", func(t *testing.T) {
		err := waitOp(t, inst.SetUserID("bob"))
		assert.ErrorIs(t, err, syncerr.ErrConfiguration)
		assert.Equal(t, "alice", inst.UserID())
	})
}

func TestSetUserIDArguments(t *testing.T) {
	t.Run("no token provider", func(t *testing.T) {
		env := newTestEnv(t)
		inst := env.start(t)
		err := waitOp(t, inst.SetUserID("alice"))
		assert.ErrorIs(t, err, syncerr.ErrConfiguration)
	})

	t.Run("empty user", func(t *testing.T) {
		env := newTestEnv(t)
		inst := env.startWith(t, fake.NewUserTokens())
		err := waitOp(t, inst.SetUserID(""))
		assert.ErrorIs(t, err, syncerr.ErrValidation)
	})

	t.Run("not registered", func(t *testing.T) {
		env := newTestEnv(t, withPushTokens(fake.SilentPushTokens()))
		inst, err := env.rt.Start(testInstance, fake.NewUserTokens())
		require.NoError(t, err)
		assert.ErrorIs(t, waitOp(t, inst.SetUserID("alice")), syncerr.ErrPrecondition)
		assert.ErrorIs(t, waitOp(t, inst.ClearUserID()), syncerr.ErrPrecondition)
	})
}

func TestSetUserIDLatestCallWins(t *testing.T) {
	env := newTestEnv(t)
	tokens := fake.NewUserTokens()
	inst := env.startWith(t, tokens)

	gate := tokens.Hold()
	t.Cleanup(gate.Release)

	first := inst.SetUserID("alice")
	<-gate.Entered()
	second := inst.SetUserID("bob")

	assert.ErrorIs(t, waitOp(t, first), syncerr.ErrSuperseded)
	require.NoError(t, waitOp(t, second))

	// The late answer for alice is dropped.
	gate.Release()
	flush(t, inst)
	flush(t, inst)

	assert.Equal(t, "bob", inst.UserID())
	assert.Equal(t, []string{"alice", "bob"}, tokens.Calls())
	calls := env.server.Calls(fake.OpAssociateUser)
	require.Len(t, calls, 1)
	assert.Equal(t, "token-bob-2", calls[0].UserToken)
}

func TestSetUserIDRefetchesOnceAfterUnauthorized(t *testing.T) {
	t.Run("second token accepted", func(t *testing.T) {
		env := newTestEnv(t)
		env.server.CheckUserToken = func(token string) error {
			if token == "token-alice-1" {
				return errors.New("token expired")
			}
			return nil
		}
		tokens := fake.NewUserTokens()
		inst := env.startWith(t, tokens)

		require.NoError(t, waitOp(t, inst.SetUserID("alice")))
		assert.Equal(t, []string{"alice", "alice"}, tokens.Calls())
		assert.Equal(t, 2, env.server.CallCount(fake.OpAssociateUser))
		assert.Equal(t, "alice", inst.UserID())
	})

	t.Run("second token rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.server.CheckUserToken = func(string) error { return errors.New("token expired") }
		tokens := fake.NewUserTokens()
		inst := env.startWith(t, tokens)

		err := waitOp(t, inst.SetUserID("alice"))
		assert.ErrorIs(t, err, syncerr.ErrUnauthorized)
		assert.Len(t, tokens.Calls(), 2)
		assert.Equal(t, 2, env.server.CallCount(fake.OpAssociateUser))
		assert.Empty(t, inst.UserID())
		assert.Equal(t, StateRegistered, inst.State())
	})
}

func TestSetUserIDProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	tokens := fake.NewUserTokens()
	tokens.FailNext(errors.New("identity service down"))
	inst := env.startWith(t, tokens)

	err := waitOp(t, inst.SetUserID("alice"))
	assert.ErrorIs(t, err, syncerr.ErrProvider)
	assert.Empty(t, inst.UserID())
	assert.Equal(t, 0, env.server.CallCount(fake.OpAssociateUser))

	// The failure does not stick.
	require.NoError(t, waitOp(t, inst.SetUserID("alice")))
	assert.Equal(t, "alice", inst.UserID())
}

func TestSetUserIDRetriesUnavailableServer(t *testing.T) {
	env := newTestEnv(t)
	env.server.FailNext(fake.OpAssociateUser, fake.Unavailable(fake.OpAssociateUser))
	inst := env.startWith(t, fake.NewUserTokens())

	require.NoError(t, waitOp(t, inst.SetUserID("alice")))
	assert.Equal(t, 2, env.server.CallCount(fake.OpAssociateUser))
}

func TestClearUserID(t *testing.T) {
	env := newTestEnv(t)
	inst := env.startWith(t, fake.NewUserTokens())

	t.Run("nothing associated", func(t *testing.T) {
		require.NoError(t, waitOp(t, inst.ClearUserID()))
		assert.Equal(t, 0, env.server.CallCount(fake.OpDisassociateUser))
	})

	require.NoError(t, waitOp(t, inst.SetUserID("alice")))

	t.Run("removes association", func(t *testing.T) {
		require.NoError(t, waitOp(t, inst.ClearUserID()))
		assert.Empty(t, inst.UserID())
		assert.Equal(t, 1, env.server.CallCount(fake.OpDisassociateUser))

		d, ok := env.server.Device(inst.DeviceID())
		require.True(t, ok)
		assert.Empty(t, d.UserToken)

		flush(t, inst)
		st, err := persistence.LoadDeviceState(env.store)
		require.NoError(t, err)
		assert.Empty(t, st.UserID)
	})

	t.Run("another user can follow", func(t *testing.T) {
		require.NoError(t, waitOp(t, inst.SetUserID("bob")))
		assert.Equal(t, "bob", inst.UserID())
	})
}

func TestClearUserIDSupersedesPendingSet(t *testing.T) {
	env := newTestEnv(t)
	tokens := fake.NewUserTokens()
	inst := env.startWith(t, tokens)

	gate := tokens.Hold()
	t.Cleanup(gate.Release)

	set := inst.SetUserID("alice")
	<-gate.Entered()
	clear := inst.ClearUserID()

	assert.ErrorIs(t, waitOp(t, set), syncerr.ErrSuperseded)
	require.NoError(t, waitOp(t, clear))

	gate.Release()
	flush(t, inst)
	flush(t, inst)
	assert.Empty(t, inst.UserID())
	assert.Equal(t, 0, env.server.CallCount(fake.OpAssociateUser))
}
