package fake

import (
	"fmt"
	"sync"

	"github.com/pushsync/pushsync-go/pkg/auth"
)

// PushTokens is a scripted platform token source.
type PushTokens struct {
	mu       sync.Mutex
	tokens   []string
	errs     []error
	requests int
	silent   bool
}

// NewPushTokens returns a source answering with tokens in order. The last
// token repeats once the list is used up.
func NewPushTokens(tokens ...string) *PushTokens {
	if len(tokens) == 0 {
		tokens = []string{"push-token"}
	}
	return &PushTokens{tokens: tokens}
}

// SilentPushTokens returns a source that never answers.
func SilentPushTokens() *PushTokens {
	return &PushTokens{silent: true}
}

// FailNext makes the next requests fail with errs, in order.
func (p *PushTokens) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, errs...)
}

// Requests returns the number of token requests received.
func (p *PushTokens) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

// RequestToken answers asynchronously, as platform SDKs do.
func (p *PushTokens) RequestToken(onToken func(string), onError func(error)) {
	p.mu.Lock()
	p.requests++
	if p.silent {
		p.mu.Unlock()
		return
	}
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		p.mu.Unlock()
		go onError(err)
		return
	}
	token := p.tokens[0]
	if len(p.tokens) > 1 {
		p.tokens = p.tokens[1:]
	}
	p.mu.Unlock()
	go onToken(token)
}

// UserTokens is a scripted auth.TokenProvider. Tokens are
// "token-{user}-{n}" where n counts fetches from 1.
type UserTokens struct {
	mu    sync.Mutex
	calls []string
	errs  []error
	gates []*Gate
}

var _ auth.TokenProvider = (*UserTokens)(nil)

// NewUserTokens creates a provider.
func NewUserTokens() *UserTokens {
	return &UserTokens{}
}

// FailNext makes the next fetches fail with errs, in order.
func (u *UserTokens) FailNext(errs ...error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.errs = append(u.errs, errs...)
}

// Hold delays the answer to the next fetch until the gate is released.
func (u *UserTokens) Hold() *Gate {
	g := &Gate{entered: make(chan struct{}), released: make(chan struct{})}
	u.mu.Lock()
	u.gates = append(u.gates, g)
	u.mu.Unlock()
	return g
}

// Calls returns the user IDs fetched for, in order.
func (u *UserTokens) Calls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

// FetchToken implements auth.TokenProvider.
func (u *UserTokens) FetchToken(userID string, cb func(token string, err error)) {
	u.mu.Lock()
	u.calls = append(u.calls, userID)
	n := len(u.calls)
	var err error
	if len(u.errs) > 0 {
		err = u.errs[0]
		u.errs = u.errs[1:]
	}
	var gate *Gate
	if len(u.gates) > 0 {
		gate = u.gates[0]
		u.gates = u.gates[1:]
	}
	u.mu.Unlock()

	answer := func() {
		if err != nil {
			cb("", err)
			return
		}
		cb(fmt.Sprintf("token-%s-%d", userID, n), nil)
	}

	if gate == nil {
		answer()
		return
	}
	close(gate.entered)
	go func() {
		<-gate.released
		answer()
	}()
}
