// Package fake provides an in-memory device API for tests and for the
// device CLI's simulated mode.
//
// A Server holds the devices the API knows about. Client exposes it as a
// registration.Client; Handler exposes it over HTTP with the device API's
// routes, so the real HTTP client can be exercised end to end. Both share
// the same state, the same recorded calls and the same scripted failures.
package fake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pushsync/pushsync-go/pkg/interest"
	"github.com/pushsync/pushsync-go/pkg/registration"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// Operation names, matching the registration client's.
const (
	OpRegister         = "register"
	OpUpdateToken      = "updateToken"
	OpUpdateInterests  = "updateInterests"
	OpUpdateMetadata   = "updateMetadata"
	OpAssociateUser    = "associateUser"
	OpDisassociateUser = "disassociateUser"
	OpDelete           = "delete"
)

// Device is the server-side view of a registered device.
type Device struct {
	ID        string
	Token     string
	Interests []string
	UserToken string
	Metadata  registration.Metadata
}

// Call records one request received by the server.
type Call struct {
	Op        string
	DeviceID  string
	Token     string
	Interests []string
	UserToken string
	Metadata  registration.Metadata
}

// Server is an in-memory device API.
type Server struct {
	mu       sync.Mutex
	devices  map[string]*Device
	nextID   int
	calls    []Call
	failures map[string][]error
	gates    map[string][]*Gate
	initial  map[string][]string

	// CheckUserToken validates user tokens on AssociateUser. Nil accepts
	// every non-empty token.
	CheckUserToken func(token string) error
}

// NewServer creates an empty server.
func NewServer() *Server {
	return &Server{
		devices:  make(map[string]*Device),
		failures: make(map[string][]error),
		gates:    make(map[string][]*Gate),
		initial:  make(map[string][]string),
	}
}

// Gate holds one call of an operation until released.
type Gate struct {
	entered  chan struct{}
	released chan struct{}
	once     sync.Once
}

// Entered is closed when the held call arrives.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Release lets the held call proceed.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.released) })
}

// Hold makes the next call of op block until the returned gate is
// released. The call's request context does not end the wait.
func (s *Server) Hold(op string) *Gate {
	g := &Gate{entered: make(chan struct{}), released: make(chan struct{})}
	s.mu.Lock()
	s.gates[op] = append(s.gates[op], g)
	s.mu.Unlock()
	return g
}

// FailNext makes the next len(errs) calls of op fail with errs, in order.
func (s *Server) FailNext(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
}

// SetInitialInterests makes a registration with token start with names,
// as if an earlier installation had subscribed them.
func (s *Server) SetInitialInterests(token string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initial[token] = slices.Clone(names)
}

// Calls returns the recorded calls of op, or all calls when op is "".
func (s *Server) Calls(op string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Call
	for _, c := range s.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// CallCount returns the number of recorded calls of op.
func (s *Server) CallCount(op string) int {
	return len(s.Calls(op))
}

// Device returns a copy of the device with id.
func (s *Server) Device(id string) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return Device{}, false
	}
	c := *d
	c.Interests = slices.Clone(d.Interests)
	return c, true
}

// DeviceCount returns the number of registered devices.
func (s *Server) DeviceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

// Forget removes a device as if the server had expired it.
func (s *Server) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, id)
}

// ClientFactory returns a factory yielding clients of s for any instance.
func (s *Server) ClientFactory() registration.ClientFactory {
	return func(string) registration.Client {
		return &Client{server: s}
	}
}

// enter records c, waits at a gate if one is set, and returns the scripted
// failure for the call, if any.
func (s *Server) enter(ctx context.Context, c Call) error {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	var gate *Gate
	if gs := s.gates[c.Op]; len(gs) > 0 {
		gate = gs[0]
		s.gates[c.Op] = gs[1:]
	}
	s.mu.Unlock()

	if gate != nil {
		close(gate.entered)
		<-gate.released
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if fs := s.failures[c.Op]; len(fs) > 0 {
		s.failures[c.Op] = fs[1:]
		return fs[0]
	}
	return ctx.Err()
}

func (s *Server) register(c Call) registration.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	d := &Device{
		ID:        fmt.Sprintf("device-%d", s.nextID),
		Token:     c.Token,
		Interests: slices.Clone(s.initial[c.Token]),
		Metadata:  c.Metadata,
	}
	slices.Sort(d.Interests)
	s.devices[d.ID] = d
	return registration.Registration{
		DeviceID:         d.ID,
		InitialInterests: interest.FromSlice(d.Interests),
	}
}

// update applies fn to the device, or reports it unknown.
func (s *Server) update(op, id string, fn func(d *Device) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return NotFound(op)
	}
	if fn == nil {
		return nil
	}
	return fn(d)
}

func (s *Server) remove(op, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[id]; !ok {
		return NotFound(op)
	}
	delete(s.devices, id)
	return nil
}

// Unavailable returns the error of a 503 response.
func Unavailable(op string) error {
	return syncerr.New(syncerr.KindRetryable, op, "service unavailable")
}

// NotFound returns the error of a 404 response.
func NotFound(op string) error {
	return syncerr.New(syncerr.KindPermanentRejection, op, "device not found")
}

// Unauthorized returns the error of a 401 response.
func Unauthorized(op string) error {
	return syncerr.New(syncerr.KindUnauthorized, op, "user token rejected")
}
