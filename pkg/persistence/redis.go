package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Key is the hash holding the device state. Defaults to "pushsync:device".
	Key string

	// Timeout bounds each command. Defaults to 5s.
	Timeout time.Duration
}

// RedisStore keeps device state in a single Redis hash.
type RedisStore struct {
	cli     *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisStore creates a store backed by the Redis server at cfg.Addr.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("persistence: redis: missing address")
	}
	if cfg.Key == "" {
		cfg.Key = "pushsync:device"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	cli := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	return &RedisStore{cli: cli, key: cfg.Key, timeout: cfg.Timeout}, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping() error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.cli.Ping(ctx).Err()
}

// Get implements Store.
func (s *RedisStore) Get(key string) ([]byte, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	v, err := s.cli.HGet(ctx, s.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap(err)
	}
	return v, true, nil
}

// Put implements Store.
func (s *RedisStore) Put(key string, value []byte) error {
	return s.PutAll(map[string][]byte{key: value})
}

// PutAll implements Store. The batch is sent as one MULTI/EXEC transaction.
func (s *RedisStore) PutAll(entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			if v == nil {
				pipe.HDel(ctx, s.key, k)
				continue
			}
			pipe.HSet(ctx, s.key, k, v)
		}
		return nil
	})
	return s.wrap(err)
}

// DeleteAll implements Store.
func (s *RedisStore) DeleteAll() error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.wrap(s.cli.Del(ctx, s.key).Err())
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.cli.Close()
}

func (s *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *RedisStore) wrap(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}
