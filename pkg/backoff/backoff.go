// Package backoff computes exponential retry delays with jitter.
package backoff

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Default policy values.
const (
	// DefaultInitial is the first retry delay.
	DefaultInitial = 1 * time.Second

	// DefaultMax caps the retry delay.
	DefaultMax = 60 * time.Second

	// DefaultMultiplier is the factor by which the delay grows.
	DefaultMultiplier = 2.0

	// DefaultJitter is the maximum jitter as a fraction of the base delay.
	DefaultJitter = 0.25
)

// Policy configures a Backoff.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64

	// MaxAttempts bounds the number of retries. Zero means unlimited.
	MaxAttempts int
}

// DefaultPolicy returns the default unlimited policy.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    DefaultInitial,
		Max:        DefaultMax,
		Multiplier: DefaultMultiplier,
		Jitter:     DefaultJitter,
	}
}

// WithDefaults fills zero fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	if p.Initial <= 0 {
		p.Initial = DefaultInitial
	}
	if p.Max <= 0 {
		p.Max = DefaultMax
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.Multiplier <= 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	return p
}

// Backoff calculates exponential backoff delays with jitter.
type Backoff struct {
	mu sync.Mutex

	policy  Policy
	current time.Duration

	attempts int

	rng *rand.Rand
}

// New creates a backoff calculator for p.
func New(p Policy) *Backoff {
	p = p.WithDefaults()
	return &Backoff{
		policy:  p,
		current: p.Initial,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Policy returns the effective policy.
func (b *Backoff) Policy() Policy {
	return b.policy
}

// Next returns the next delay (with jitter) and advances the backoff.
// ok is false once MaxAttempts delays have been handed out.
func (b *Backoff) Next() (delay time.Duration, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.policy.MaxAttempts > 0 && b.attempts >= b.policy.MaxAttempts {
		return 0, false
	}

	delay = b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.policy.Multiplier)
	if next > b.policy.Max {
		next = b.policy.Max
	}
	b.current = next

	return delay, true
}

// Reset returns the backoff to its initial delay.
// Call this after a successful attempt.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.policy.Initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the current base delay (without jitter).
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Exhausted reports whether MaxAttempts has been reached.
func (b *Backoff) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.policy.MaxAttempts > 0 && b.attempts >= b.policy.MaxAttempts
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.policy.Jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.policy.Jitter*b.rng.Float64())
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sequence returns the base delays (without jitter) of p until the cap is
// reached, or until MaxAttempts when that comes first.
func Sequence(p Policy) []time.Duration {
	p = p.WithDefaults()
	var out []time.Duration
	for d := p.Initial; ; {
		out = append(out, d)
		if p.MaxAttempts > 0 && len(out) >= p.MaxAttempts {
			return out
		}
		if d >= p.Max {
			return out
		}
		d = time.Duration(float64(d) * p.Multiplier)
		if d > p.Max {
			d = p.Max
		}
	}
}
