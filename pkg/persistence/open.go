package persistence

import "fmt"

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a Store driver.
type Config struct {
	// Driver is one of memory, file, sqlite or redis.
	Driver string

	// Path is the file or database path for the file and sqlite drivers.
	Path string

	// Redis configures the redis driver.
	Redis RedisConfig
}

// Open creates the Store described by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("persistence: file driver requires a path")
		}
		return OpenFileStore(cfg.Path)
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("persistence: sqlite driver requires a path")
		}
		return OpenSQLiteStore(cfg.Path)
	case DriverRedis:
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("persistence: unknown driver %q", cfg.Driver)
	}
}
