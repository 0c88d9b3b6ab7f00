package registration

import (
	"context"
	"log/slog"
	"time"

	"github.com/pushsync/pushsync-go/pkg/backoff"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// Retrier repeats operations that fail with a Retryable error.
type Retrier struct {
	policy  backoff.Policy
	logger  *slog.Logger
	onRetry func(op string, attempt int, delay time.Duration, err error)
}

// NewRetrier creates a Retrier for policy.
func NewRetrier(policy backoff.Policy) *Retrier {
	return &Retrier{policy: policy.WithDefaults()}
}

// WithLogger returns r logging retries to l.
func (r *Retrier) WithLogger(l *slog.Logger) *Retrier {
	c := *r
	c.logger = l
	return &c
}

// OnRetry returns r calling fn before each wait.
func (r *Retrier) OnRetry(fn func(op string, attempt int, delay time.Duration, err error)) *Retrier {
	c := *r
	c.onRetry = fn
	return &c
}

// Policy returns the effective policy.
func (r *Retrier) Policy() backoff.Policy {
	return r.policy
}

// WithMaxAttempts returns a copy of r with a different attempt bound.
func (r *Retrier) WithMaxAttempts(n int) *Retrier {
	c := *r
	c.policy.MaxAttempts = n
	return &c
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// policy is exhausted, or ctx ends.
//
// fn receives a context that is never cancelled by ctx: a request already in
// flight runs to completion and the caller decides whether its result still
// matters. Waits between attempts end as soon as ctx does, returning ctx.Err().
// On exhaustion the last Retryable error is returned.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.New(r.policy)
	callCtx := context.WithoutCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(callCtx)
		if err == nil || !syncerr.IsRetryable(err) {
			return err
		}

		delay, ok := b.Next()
		if !ok {
			if r.logger != nil {
				r.logger.Warn("retries exhausted", "op", op, "attempts", b.Attempts()+1, "error", err)
			}
			return err
		}
		if r.logger != nil {
			r.logger.Debug("retrying", "op", op, "attempt", b.Attempts(), "delay", delay, "error", err)
		}
		if r.onRetry != nil {
			r.onRetry(op, b.Attempts(), delay, err)
		}

		if err := backoff.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}
