package persistence

import (
	"fmt"
	"slices"
)

// DeviceMetadata is the device description last sent to the server.
type DeviceMetadata struct {
	SDKVersion string `cbor:"1,keyasint,omitempty"`
	OS         string `cbor:"2,keyasint,omitempty"`
	OSVersion  string `cbor:"3,keyasint,omitempty"`
}

// DeviceState is the typed view of the persisted keys.
type DeviceState struct {
	// InstanceID is the service instance the device belongs to.
	InstanceID string

	// DeviceID is assigned by the server on first registration.
	// Empty until then, and again after a permanent rejection.
	DeviceID string

	// PushToken is the platform token last registered.
	PushToken string

	// Desired is the interest set the application asked for.
	Desired []string

	// Confirmed is the interest set last acknowledged by the server.
	Confirmed []string

	// UserID is the confirmed user association. Empty when unassociated.
	UserID string

	// Metadata is the device metadata last acknowledged by the server.
	Metadata *DeviceMetadata
}

// LoadDeviceState reads the device state from store.
// Returns nil, nil when no instance has been persisted.
func LoadDeviceState(store Store) (*DeviceState, error) {
	instanceID, ok, err := getString(store, KeyInstanceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	st := &DeviceState{InstanceID: instanceID}
	if st.DeviceID, _, err = getString(store, KeyDeviceID); err != nil {
		return nil, err
	}
	if st.PushToken, _, err = getString(store, KeyPushToken); err != nil {
		return nil, err
	}
	if st.UserID, _, err = getString(store, KeyUserID); err != nil {
		return nil, err
	}
	if st.Desired, err = getNames(store, KeyDesiredInterests); err != nil {
		return nil, err
	}
	if st.Confirmed, err = getNames(store, KeyConfirmedInterests); err != nil {
		return nil, err
	}

	raw, ok, err := store.Get(KeyMetadata)
	if err != nil {
		return nil, err
	}
	if ok {
		var md DeviceMetadata
		if err := decMode.Unmarshal(raw, &md); err != nil {
			return nil, fmt.Errorf("persistence: decode %s: %w", KeyMetadata, err)
		}
		st.Metadata = &md
	}
	return st, nil
}

// SaveDeviceState writes every key of st in one atomic batch.
// Empty fields delete their keys.
func SaveDeviceState(store Store, st *DeviceState) error {
	entries, err := st.entries()
	if err != nil {
		return err
	}
	return store.PutAll(entries)
}

// Clone returns a deep copy of st.
func (st *DeviceState) Clone() *DeviceState {
	if st == nil {
		return nil
	}
	c := *st
	c.Desired = slices.Clone(st.Desired)
	c.Confirmed = slices.Clone(st.Confirmed)
	if st.Metadata != nil {
		md := *st.Metadata
		c.Metadata = &md
	}
	return &c
}

func (st *DeviceState) entries() (map[string][]byte, error) {
	desired, err := encodeNames(st.Desired)
	if err != nil {
		return nil, err
	}
	confirmed, err := encodeNames(st.Confirmed)
	if err != nil {
		return nil, err
	}

	var md []byte
	if st.Metadata != nil {
		if md, err = encMode.Marshal(st.Metadata); err != nil {
			return nil, err
		}
	}

	return map[string][]byte{
		KeyInstanceID:         stringValue(st.InstanceID),
		KeyDeviceID:           stringValue(st.DeviceID),
		KeyPushToken:          stringValue(st.PushToken),
		KeyUserID:             stringValue(st.UserID),
		KeyDesiredInterests:   desired,
		KeyConfirmedInterests: confirmed,
		KeyMetadata:           md,
	}, nil
}

func stringValue(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

func getString(store Store, key string) (string, bool, error) {
	v, ok, err := store.Get(key)
	if err != nil || !ok {
		return "", false, err
	}
	return string(v), true, nil
}

// Interest sets are stored as a sorted CBOR array so equal sets encode equally.
func encodeNames(names []string) ([]byte, error) {
	sorted := slices.Clone(names)
	if sorted == nil {
		sorted = []string{}
	}
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return encMode.Marshal(sorted)
}

func getNames(store Store, key string) ([]string, error) {
	raw, ok, err := store.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	var names []string
	if err := decMode.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("persistence: decode %s: %w", key, err)
	}
	return names, nil
}
