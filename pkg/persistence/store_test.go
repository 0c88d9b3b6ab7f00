package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories returns a constructor per driver available in this environment.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	f := map[string]func(t *testing.T) Store{
		"Memory": func(t *testing.T) Store { return NewMemoryStore() },
		"File": func(t *testing.T) Store {
			s, err := OpenFileStore(filepath.Join(t.TempDir(), "state.cbor"))
			require.NoError(t, err)
			return s
		},
		"SQLite": func(t *testing.T) Store {
			s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
			require.NoError(t, err)
			return s
		},
	}
	if addr := os.Getenv("PUSHSYNC_REDIS_ADDR"); addr != "" {
		f["Redis"] = func(t *testing.T) Store {
			s, err := NewRedisStore(RedisConfig{Addr: addr, Key: "pushsync:test:" + t.Name()})
			require.NoError(t, err)
			require.NoError(t, s.DeleteAll())
			return s
		}
	}
	return f
}

func TestStoreConformance(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("GetMissing", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				v, ok, err := s.Get("nope")
				require.NoError(t, err)
				assert.False(t, ok)
				assert.Nil(t, v)
			})

			t.Run("PutGet", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				require.NoError(t, s.Put("k", []byte("v1")))
				require.NoError(t, s.Put("k", []byte("v2")))

				v, ok, err := s.Get("k")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, []byte("v2"), v)
			})

			t.Run("PutAllWritesAndDeletes", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				require.NoError(t, s.PutAll(map[string][]byte{
					"a": []byte("1"),
					"b": []byte("2"),
				}))
				require.NoError(t, s.PutAll(map[string][]byte{
					"a": nil,
					"c": []byte("3"),
				}))

				_, ok, err := s.Get("a")
				require.NoError(t, err)
				assert.False(t, ok)

				v, ok, err := s.Get("b")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, []byte("2"), v)

				v, _, _ = s.Get("c")
				assert.Equal(t, []byte("3"), v)
			})

			t.Run("DeleteAll", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				require.NoError(t, s.PutAll(map[string][]byte{"a": []byte("1"), "b": []byte("2")}))
				require.NoError(t, s.DeleteAll())
				require.NoError(t, s.DeleteAll())

				_, ok, err := s.Get("a")
				require.NoError(t, err)
				assert.False(t, ok)
			})
		})
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, _, err := s.Get("k")
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(s.Put("k", []byte("v")), ErrClosed))
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Put("k", buf))
	buf[0] = 'x'

	v, _, _ := s.Get("k")
	assert.Equal(t, []byte("abc"), v)

	v[1] = 'y'
	v2, _, _ := s.Get("k")
	assert.Equal(t, []byte("abc"), v2)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.cbor")

	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutAll(map[string][]byte{"a": []byte("1"), "b": []byte("2")}))
	require.NoError(t, s.Close())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get("b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("2"), v)

	// No temporary files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0x00, 0x13}, 0600))

	_, err := OpenFileStore(path)
	assert.Error(t, err)
}

func TestFileStoreDeleteAllRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("a", []byte("1")))

	require.NoError(t, s.DeleteAll())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSQLiteStoreInMemory(t *testing.T) {
	s, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("k", []byte("v")))
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		want    any
		wantErr bool
	}{
		{"DefaultIsMemory", Config{}, &MemoryStore{}, false},
		{"Memory", Config{Driver: DriverMemory}, &MemoryStore{}, false},
		{"File", Config{Driver: DriverFile, Path: filepath.Join(dir, "s.cbor")}, &FileStore{}, false},
		{"SQLite", Config{Driver: DriverSQLite, Path: filepath.Join(dir, "s.db")}, &SQLiteStore{}, false},
		{"Redis", Config{Driver: DriverRedis, Redis: RedisConfig{Addr: "127.0.0.1:6379"}}, &RedisStore{}, false},
		{"FileWithoutPath", Config{Driver: DriverFile}, nil, true},
		{"SQLiteWithoutPath", Config{Driver: DriverSQLite}, nil, true},
		{"RedisWithoutAddr", Config{Driver: DriverRedis}, nil, true},
		{"Unknown", Config{Driver: "etcd"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}
}
