// Package config loads the YAML settings of the pushsync tools.
//
// A settings file looks like:
//
//	instance:
//	  id: 8f3a6c1e-0000-4000-8000-000000000000
//	  endpoint: http://127.0.0.1:8080   # optional, defaults to the hosted API
//	  platform: fcm
//	  request-timeout: 30s
//	  token-fetch-timeout: 10s
//	store:
//	  driver: sqlite                     # memory | file | sqlite | redis
//	  path: /var/lib/pushsync/state.db
//	retry:
//	  initial: 1s
//	  max: 60s
//	  max-attempts: 8                    # reconciliation only; 0 = unlimited
//	log:
//	  level: info
//	  event-log: /var/lib/pushsync/device.slog
//	metrics:
//	  listen: 127.0.0.1:9464
//
// Zero values are replaced by WithDefaults; Validate reports the first
// invalid field.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pushsync/pushsync-go/pkg/backoff"
	"github.com/pushsync/pushsync-go/pkg/persistence"
	"github.com/pushsync/pushsync-go/pkg/registration"
	"github.com/pushsync/pushsync-go/pkg/version"
)

// Settings is the root of the settings file.
type Settings struct {
	Instance InstanceSettings `yaml:"instance"`
	Store    StoreSettings    `yaml:"store"`
	Retry    RetrySettings    `yaml:"retry"`
	Log      LogSettings      `yaml:"log"`
	Metrics  MetricsSettings  `yaml:"metrics"`
}

// InstanceSettings selects the instance and how to reach its device API.
type InstanceSettings struct {
	ID                string        `yaml:"id"`
	Endpoint          string        `yaml:"endpoint"`
	Platform          string        `yaml:"platform"`
	RequestTimeout    time.Duration `yaml:"request-timeout"`
	TokenFetchTimeout time.Duration `yaml:"token-fetch-timeout"`
}

// StoreSettings selects the persistence driver.
type StoreSettings struct {
	Driver string        `yaml:"driver"`
	Path   string        `yaml:"path"`
	Redis  RedisSettings `yaml:"redis"`
}

// RedisSettings configures the redis store driver.
type RedisSettings struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	Database int           `yaml:"database"`
	Key      string        `yaml:"key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RetrySettings configures backoff for device API calls.
type RetrySettings struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      *float64      `yaml:"jitter"`
	MaxAttempts int           `yaml:"max-attempts"`
}

// LogSettings configures operational and event logging.
type LogSettings struct {
	Level    string `yaml:"level"`
	EventLog string `yaml:"event-log"`
	Events   bool   `yaml:"events"`
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	Listen string `yaml:"listen"`
}

// Defaults applied by WithDefaults.
const (
	DefaultTokenFetchTimeout = 30 * time.Second
	DefaultRedisKey          = "pushsync:device"
	DefaultLogLevel          = "info"
)

// Load reads and decodes the settings file at path. Unknown keys are errors.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return Parse(data)
}

// Parse decodes settings from YAML.
func Parse(data []byte) (Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	return s, nil
}

// WithDefaults returns s with zero values replaced by defaults.
func (s Settings) WithDefaults() Settings {
	o := s
	if o.Instance.Platform == "" {
		o.Instance.Platform = registration.DefaultPlatform
	}
	if o.Instance.RequestTimeout <= 0 {
		o.Instance.RequestTimeout = registration.DefaultRequestTimeout
	}
	if o.Instance.TokenFetchTimeout <= 0 {
		o.Instance.TokenFetchTimeout = DefaultTokenFetchTimeout
	}

	o.Store.Driver = strings.ToLower(strings.TrimSpace(o.Store.Driver))
	if o.Store.Driver == "" {
		o.Store.Driver = persistence.DriverMemory
	}
	if o.Store.Redis.Key == "" {
		o.Store.Redis.Key = DefaultRedisKey
	}
	if o.Store.Redis.Timeout <= 0 {
		o.Store.Redis.Timeout = 5 * time.Second
	}

	if o.Retry.Initial <= 0 {
		o.Retry.Initial = backoff.DefaultInitial
	}
	if o.Retry.Max <= 0 {
		o.Retry.Max = backoff.DefaultMax
	}
	if o.Retry.Multiplier <= 1 {
		o.Retry.Multiplier = backoff.DefaultMultiplier
	}
	if o.Retry.Jitter == nil {
		j := backoff.DefaultJitter
		o.Retry.Jitter = &j
	}

	if o.Log.Level == "" {
		o.Log.Level = DefaultLogLevel
	}
	return o
}

// Validate checks s after defaults have been applied.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Instance.ID) == "" {
		return errors.New("config: instance.id is required")
	}

	switch s.Store.Driver {
	case persistence.DriverMemory:
	case persistence.DriverFile, persistence.DriverSQLite:
		if s.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for the %s driver", s.Store.Driver)
		}
	case persistence.DriverRedis:
		if s.Store.Redis.Addr == "" {
			return errors.New("config: store.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", s.Store.Driver)
	}

	if s.Retry.Max < s.Retry.Initial {
		return fmt.Errorf("config: retry.max (%s) is below retry.initial (%s)", s.Retry.Max, s.Retry.Initial)
	}
	if s.Retry.MaxAttempts < 0 {
		return errors.New("config: retry.max-attempts must not be negative")
	}
	if s.Retry.Jitter != nil && (*s.Retry.Jitter < 0 || *s.Retry.Jitter > 1) {
		return errors.New("config: retry.jitter must be between 0 and 1")
	}

	if _, err := s.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Log.Level.
func (s Settings) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return l, nil
}

// StoreConfig converts the store settings for persistence.Open.
func (s Settings) StoreConfig() persistence.Config {
	return persistence.Config{
		Driver: s.Store.Driver,
		Path:   s.Store.Path,
		Redis: persistence.RedisConfig{
			Addr:     s.Store.Redis.Addr,
			Password: s.Store.Redis.Password,
			DB:       s.Store.Redis.Database,
			Key:      s.Store.Redis.Key,
			Timeout:  s.Store.Redis.Timeout,
		},
	}
}

// RetryPolicy converts the retry settings.
func (s Settings) RetryPolicy() backoff.Policy {
	p := backoff.Policy{
		Initial:     s.Retry.Initial,
		Max:         s.Retry.Max,
		Multiplier:  s.Retry.Multiplier,
		MaxAttempts: s.Retry.MaxAttempts,
	}
	if s.Retry.Jitter != nil {
		p.Jitter = *s.Retry.Jitter
	}
	return p.WithDefaults()
}

// ClientFactory returns a factory for device API clients honouring the
// instance settings.
func (s Settings) ClientFactory(logger *slog.Logger) registration.ClientFactory {
	opts := []registration.HTTPOption{
		registration.WithPlatform(s.Instance.Platform),
		registration.WithRequestTimeout(s.Instance.RequestTimeout),
		registration.WithUserAgent(version.UserAgent()),
		registration.WithHTTPLogger(logger),
	}
	if s.Instance.Endpoint != "" {
		opts = append(opts, registration.WithEndpoint(s.Instance.Endpoint))
	}
	return registration.NewHTTPClientFactory(opts...)
}
