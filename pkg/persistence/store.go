package persistence

import (
	"errors"
	"sync"
)

// Keys used by the synchronization engine.
const (
	KeyInstanceID         = "instance_id"
	KeyDeviceID           = "device_id"
	KeyPushToken          = "push_token"
	KeyDesiredInterests   = "interests.desired"
	KeyConfirmedInterests = "interests.confirmed"
	KeyUserID             = "user_id"
	KeyMetadata           = "metadata"
)

// AllKeys lists every key written by SaveDeviceState.
var AllKeys = []string{
	KeyInstanceID,
	KeyDeviceID,
	KeyPushToken,
	KeyDesiredInterests,
	KeyConfirmedInterests,
	KeyUserID,
	KeyMetadata,
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("persistence: store closed")

// Store is a small key/value store for device state.
//
// A nil value passed to Put or PutAll deletes the key.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)

	// Put writes a single key.
	Put(key string, value []byte) error

	// PutAll writes all entries atomically.
	PutAll(entries map[string][]byte) error

	// DeleteAll removes every key owned by the store.
	DeleteAll() error

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

// Put implements Store.
func (s *MemoryStore) Put(key string, value []byte) error {
	return s.PutAll(map[string][]byte{key: value})
}

// PutAll implements Store.
func (s *MemoryStore) PutAll(entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	applyEntries(s.data, entries)
	return nil
}

// DeleteAll implements Store.
func (s *MemoryStore) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.data = make(map[string][]byte)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func applyEntries(dst map[string][]byte, entries map[string][]byte) {
	for k, v := range entries {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = clone(v)
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
