package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDeviceStateEmpty(t *testing.T) {
	got, err := LoadDeviceState(NewMemoryStore())
	if err != nil {
		t.Fatalf("LoadDeviceState() error = %v", err)
	}
	if got != nil {
		t.Errorf("LoadDeviceState() = %v, want nil for empty store", got)
	}
}

func TestDeviceStateRoundTrip(t *testing.T) {
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "state.cbor"))
	require.NoError(t, err)

	in := &DeviceState{
		InstanceID: "inst-1",
		DeviceID:   "dev-1",
		PushToken:  "tok",
		Desired:    []string{"sports", "news", "news"},
		Confirmed:  []string{"news"},
		UserID:     "alice",
		Metadata:   &DeviceMetadata{SDKVersion: "1.2.3", OS: "linux"},
	}
	require.NoError(t, SaveDeviceState(store, in))

	reopened, err := OpenFileStore(store.Path())
	require.NoError(t, err)
	got, err := LoadDeviceState(reopened)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "inst-1", got.InstanceID)
	assert.Equal(t, "dev-1", got.DeviceID)
	assert.Equal(t, "tok", got.PushToken)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, []string{"news", "sports"}, got.Desired)
	assert.Equal(t, []string{"news"}, got.Confirmed)
	assert.Equal(t, &DeviceMetadata{SDKVersion: "1.2.3", OS: "linux"}, got.Metadata)
}

func TestSaveDeviceStateClearsEmptyFields(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, SaveDeviceState(store, &DeviceState{
		InstanceID: "inst-1",
		DeviceID:   "dev-1",
		UserID:     "alice",
		Metadata:   &DeviceMetadata{SDKVersion: "1"},
	}))

	// Dropping the device id keeps the instance and interests.
	require.NoError(t, SaveDeviceState(store, &DeviceState{
		InstanceID: "inst-1",
		Desired:    []string{"a"},
	}))

	got, err := LoadDeviceState(store)
	require.NoError(t, err)
	assert.Empty(t, got.DeviceID)
	assert.Empty(t, got.UserID)
	assert.Nil(t, got.Metadata)
	assert.Equal(t, []string{"a"}, got.Desired)
	assert.Empty(t, got.Confirmed)

	_, ok, _ := store.Get(KeyDeviceID)
	assert.False(t, ok)
}

func TestDeviceStateClone(t *testing.T) {
	st := &DeviceState{
		InstanceID: "i",
		Desired:    []string{"a"},
		Metadata:   &DeviceMetadata{OS: "linux"},
	}
	c := st.Clone()
	c.Desired[0] = "b"
	c.Metadata.OS = "darwin"

	assert.Equal(t, "a", st.Desired[0])
	assert.Equal(t, "linux", st.Metadata.OS)
	assert.Nil(t, (*DeviceState)(nil).Clone())
}
