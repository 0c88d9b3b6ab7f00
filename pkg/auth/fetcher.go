package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// DefaultFetchTimeout bounds a token fetch when no timeout is given.
const DefaultFetchTimeout = 30 * time.Second

// Result is the outcome of a token fetch.
type Result struct {
	Token string
	Err   error
}

// Fetcher runs a TokenProvider with a timeout.
type Fetcher struct {
	provider TokenProvider
	logger   *slog.Logger
	now      func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLogger sets the logger used for provider diagnostics.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithClock overrides the clock used to check token expiry.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		f.now = now
	}
}

// NewFetcher creates a Fetcher for p.
func NewFetcher(p TokenProvider, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		provider: p,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAsync starts a fetch on its own goroutine. The returned channel
// receives exactly one Result. A timeout of zero uses DefaultFetchTimeout.
func (f *Fetcher) FetchAsync(userID string, timeout time.Duration) <-chan Result {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	out := make(chan Result, 1)

	go func() {
		answer := make(chan Result, 1)
		var once sync.Once
		cb := func(token string, err error) {
			once.Do(func() {
				answer <- Result{Token: token, Err: err}
			})
		}

		go f.invoke(userID, cb)

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case r := <-answer:
			out <- f.check(userID, r)
		case <-timer.C:
			f.logger.Warn("token provider timed out", "user", userID, "timeout", timeout)
			out <- Result{Err: syncerr.Newf(syncerr.KindTimedOut, "fetchToken",
				"token provider did not answer within %s", timeout)}
		}
	}()

	return out
}

// Fetch is the blocking form of FetchAsync. It returns ctx.Err() when ctx
// ends first; the provider's late answer is dropped.
func (f *Fetcher) Fetch(ctx context.Context, userID string, timeout time.Duration) (string, error) {
	select {
	case r := <-f.FetchAsync(userID, timeout):
		return r.Token, r.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *Fetcher) invoke(userID string, cb func(string, error)) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("token provider panicked", "user", userID, "panic", r)
			cb("", fmt.Errorf("token provider panicked: %v", r))
		}
	}()
	f.provider.FetchToken(userID, cb)
}

func (f *Fetcher) check(userID string, r Result) Result {
	if r.Err != nil {
		return Result{Err: syncerr.Wrap(syncerr.KindProvider, "fetchToken", "token provider failed", r.Err)}
	}
	if r.Token == "" {
		return Result{Err: syncerr.New(syncerr.KindProvider, "fetchToken", "token provider returned an empty token")}
	}
	if err := Inspect(r.Token, userID, f.now()); err != nil {
		return Result{Err: err}
	}
	return r
}
