package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/pushsync/pushsync-go/pkg/backoff"
	"github.com/pushsync/pushsync-go/pkg/log"
	"github.com/pushsync/pushsync-go/pkg/metrics"
	"github.com/pushsync/pushsync-go/pkg/persistence"
	"github.com/pushsync/pushsync-go/pkg/registration"
	"github.com/pushsync/pushsync-go/pkg/version"
)

// Configuration errors.
var (
	ErrNoStore         = errors.New("state store is required")
	ErrNoClientFactory = errors.New("registration client factory is required")
	ErrNoTokenSource   = errors.New("push token source is required")
	ErrRuntimeClosed   = errors.New("runtime closed")
)

// State represents the lifecycle state of an instance.
type State uint8

const (
	// StateNotStarted means no instance is running. An instance that was
	// permanently rejected by the server also ends here.
	StateNotStarted State = iota

	// StateStarting means the platform token is being obtained or the
	// device is being registered.
	StateStarting

	// StateRegistered means the device is known to the server.
	StateRegistered

	// StateStopping means the remote device is being deleted and local
	// state cleared.
	StateStopping

	// StateStopped means the instance has ended.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateStarting:
		return "STARTING"
	case StateRegistered:
		return "REGISTERED"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// terminal reports whether the instance has ended.
func (s State) terminal() bool {
	return s == StateNotStarted || s == StateStopped
}

var allStates = []string{
	StateNotStarted.String(),
	StateStarting.String(),
	StateRegistered.String(),
	StateStopping.String(),
	StateStopped.String(),
}

// PushTokenSource obtains the platform push token. Exactly one of the
// callbacks should be called per request, on any goroutine.
type PushTokenSource interface {
	RequestToken(onToken func(token string), onError func(err error))
}

// PushTokenSourceFunc adapts a synchronous function to PushTokenSource.
type PushTokenSourceFunc func() (string, error)

// RequestToken implements PushTokenSource.
func (f PushTokenSourceFunc) RequestToken(onToken func(string), onError func(error)) {
	token, err := f()
	if err != nil {
		onError(err)
		return
	}
	onToken(token)
}

// StaticPushToken returns a source that always yields token.
func StaticPushToken(token string) PushTokenSource {
	return PushTokenSourceFunc(func() (string, error) { return token, nil })
}

// Config configures a Runtime.
type Config struct {
	// Store persists the device state across restarts.
	Store persistence.Store

	// ClientFactory creates the device API client for an instance.
	ClientFactory registration.ClientFactory

	// PushTokenSource provides the platform push token.
	PushTokenSource PushTokenSource

	// RegisterPolicy paces register and token update retries.
	// MaxAttempts is ignored: registration retries indefinitely.
	RegisterPolicy backoff.Policy

	// RetryPolicy paces reconciliation and user association retries.
	RetryPolicy backoff.Policy

	// RequestTimeout bounds each device API call.
	RequestTimeout time.Duration

	// TokenFetchTimeout bounds each call to the user token provider.
	TokenFetchTimeout time.Duration

	// Metadata describes this device. Empty fields default to the SDK
	// version and the runtime OS.
	Metadata registration.Metadata

	// Logger is the operational logger. If nil, logging is disabled.
	Logger *slog.Logger

	// EventLogger receives sync events. If nil, no events are recorded.
	EventLogger log.Logger

	// Metrics records engine metrics. May be nil.
	Metrics *metrics.Metrics
}

// DefaultConfig returns a Config with default policies and timeouts.
// Store, ClientFactory and PushTokenSource must still be set.
func DefaultConfig() Config {
	retry := backoff.DefaultPolicy()
	retry.MaxAttempts = DefaultReconcileAttempts

	return Config{
		RegisterPolicy:    backoff.DefaultPolicy(),
		RetryPolicy:       retry,
		RequestTimeout:    DefaultRequestTimeout,
		TokenFetchTimeout: DefaultTokenFetchTimeout,
		Metadata:          defaultMetadata(),
	}
}

// Defaults.
const (
	DefaultReconcileAttempts = 10
	DefaultRequestTimeout    = 30 * time.Second
	DefaultTokenFetchTimeout = 30 * time.Second
)

// Validate checks that the required collaborators are present.
func (c *Config) Validate() error {
	if c.Store == nil {
		return ErrNoStore
	}
	if c.ClientFactory == nil {
		return ErrNoClientFactory
	}
	if c.PushTokenSource == nil {
		return ErrNoTokenSource
	}
	return nil
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	c.RegisterPolicy = c.RegisterPolicy.WithDefaults()
	c.RegisterPolicy.MaxAttempts = 0
	c.RetryPolicy = c.RetryPolicy.WithDefaults()
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.TokenFetchTimeout <= 0 {
		c.TokenFetchTimeout = DefaultTokenFetchTimeout
	}
	def := defaultMetadata()
	if c.Metadata.SDKVersion == "" {
		c.Metadata.SDKVersion = def.SDKVersion
	}
	if c.Metadata.OS == "" {
		c.Metadata.OS = def.OS
	}
	if c.EventLogger == nil {
		c.EventLogger = log.NoopLogger{}
	}
	return c
}

func defaultMetadata() registration.Metadata {
	return registration.Metadata{
		SDKVersion: version.SDK,
		OS:         version.OS(),
	}
}

func toPersisted(md registration.Metadata) *persistence.DeviceMetadata {
	return &persistence.DeviceMetadata{
		SDKVersion: md.SDKVersion,
		OS:         md.OS,
		OSVersion:  md.OSVersion,
	}
}

func sameMetadata(p *persistence.DeviceMetadata, md registration.Metadata) bool {
	return p != nil && *p == *toPersisted(md)
}
