package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps all keys in a single CBOR file.
//
// Writes go to a temporary file in the same directory which is synced and
// renamed over the previous file, so a crash leaves either the old or the new
// contents on disk.
type FileStore struct {
	mu     sync.Mutex
	path   string
	data   map[string][]byte
	closed bool
}

// fileFormat is the on-disk layout of a FileStore.
type fileFormat struct {
	Version int               `cbor:"1,keyasint"`
	Entries map[string][]byte `cbor:"2,keyasint"`
}

// FileVersion is the current version of the store file format.
const FileVersion = 1

// OpenFileStore opens the store at path. A missing file is an empty store.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: make(map[string][]byte)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var f fileFormat
	if err := decMode.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("persistence: decode %s: %w", path, err)
	}
	if f.Version > FileVersion {
		return nil, fmt.Errorf("persistence: %s has unsupported version %d", path, f.Version)
	}
	if f.Entries != nil {
		s.data = f.Entries
	}
	return s, nil
}

// Path returns the file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get implements Store.
func (s *FileStore) Get(key string) ([]byte, bool, error) {
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
func (s *FileStore) Put(key string, value []byte) error {
	return s.PutAll(map[string][]byte{key: value})
}

// PutAll implements Store.
func (s *FileStore) PutAll(entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	next := make(map[string][]byte, len(s.data)+len(entries))
	for k, v := range s.data {
		next[k] = v
	}
	applyEntries(next, entries)

	if err := s.writeLocked(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// DeleteAll removes the store file.
func (s *FileStore) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.data = make(map[string][]byte)

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *FileStore) writeLocked(data map[string][]byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	raw, err := encMode.Marshal(fileFormat{Version: FileVersion, Entries: data})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
