package service

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pushsync/pushsync-go/internal/fake"
	"github.com/pushsync/pushsync-go/pkg/auth"
	"github.com/pushsync/pushsync-go/pkg/backoff"
	"github.com/pushsync/pushsync-go/pkg/log"
	"github.com/pushsync/pushsync-go/pkg/persistence"
)

const (
	testInstance = "97c56dfe-58f5-408b-ab3a-158e51a860f2"
	waitFor      = 2 * time.Second
	tick         = 2 * time.Millisecond
)

// testEnv bundles a Runtime with the fakes behind it.
type testEnv struct {
	rt     *Runtime
	server *fake.Server
	push   *fake.PushTokens
	store  *persistence.MemoryStore
	events *log.MemoryLogger
}

type envOption func(*Config)

func withPushTokens(p *fake.PushTokens) envOption {
	return func(c *Config) { c.PushTokenSource = p }
}

func withStore(s *persistence.MemoryStore) envOption {
	return func(c *Config) { c.Store = s }
}

func withServer(s *fake.Server) envOption {
	return func(c *Config) { c.ClientFactory = s.ClientFactory() }
}

func fastPolicy(attempts int) backoff.Policy {
	return backoff.Policy{
		Initial:     time.Millisecond,
		Max:         2 * time.Millisecond,
		Multiplier:  2,
		MaxAttempts: attempts,
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		server: fake.NewServer(),
		push:   fake.NewPushTokens("push-token"),
		store:  persistence.NewMemoryStore(),
		events: log.NewMemoryLogger(0),
	}

	cfg := DefaultConfig()
	cfg.Store = env.store
	cfg.ClientFactory = env.server.ClientFactory()
	cfg.PushTokenSource = env.push
	cfg.RegisterPolicy = fastPolicy(0)
	cfg.RetryPolicy = fastPolicy(3)
	cfg.RequestTimeout = time.Second
	cfg.TokenFetchTimeout = time.Second
	cfg.EventLogger = env.events
	for _, opt := range opts {
		opt(&cfg)
	}
	if s, ok := cfg.Store.(*persistence.MemoryStore); ok {
		env.store = s
	}
	if p, ok := cfg.PushTokenSource.(*fake.PushTokens); ok {
		env.push = p
	}

	rt, err := NewRuntime(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	env.rt = rt
	return env
}

// start starts the test instance and waits for its registration.
func (e *testEnv) start(t *testing.T) *Instance {
	t.Helper()
	return e.startWith(t, nil)
}

func (e *testEnv) startWith(t *testing.T, tp auth.TokenProvider) *Instance {
	t.Helper()

	inst, err := e.rt.Start(testInstance, tp)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, inst.AwaitRegistered(ctx))
	return inst
}

// flush waits until every task queued on inst so far has run.
func flush(t *testing.T, inst *Instance) {
	t.Helper()
	done := make(chan struct{})
	if !inst.queue.post(func() { close(done) }) {
		return
	}
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("work queue did not drain")
	}
}

// waitOp waits for op and returns its result.
func waitOp(t *testing.T, op interface {
	Wait(context.Context) error
}) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	err := op.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "operation did not complete")
	return err
}

// recorder is a listener keeping everything it was told.
type recorder struct {
	mu      sync.Mutex
	changes [][]string
	errs    []error
}

func (r *recorder) OnSubscriptionsChanged(interests []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, slices.Clone(interests))
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) Changes() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.changes)
}

func (r *recorder) Last() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return nil
	}
	return r.changes[len(r.changes)-1]
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.errs)
}

// serverInterests returns the interests the fake server holds for inst.
func serverInterests(env *testEnv, inst *Instance) []string {
	d, ok := env.server.Device(inst.DeviceID())
	if !ok {
		return nil
	}
	return d.Interests
}
