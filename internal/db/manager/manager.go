package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// flightKey is the single singleflight key: there is one handle per process.
const flightKey = "handle"

// Resolver determines the credential for the next acquisition.
// Implementations must re-check the environment on every call.
type Resolver interface {
	Resolve(ctx context.Context) (sfdash.Credential, error)
}

// ConnectorFactory returns the connector for a credential variant.
type ConnectorFactory func(credential sfdash.Credential) (sfdash.Connector, error)

// Stats is a point-in-time view of the manager.
type Stats struct {
	State         sfdash.HandleState `json:"-"`
	StateName     string             `json:"state"`
	Mode          string             `json:"mode,omitempty"`
	HandleID      string             `json:"handle_id,omitempty"`
	Constructions int64              `json:"constructions"`
	Failures      int64              `json:"failed_constructions"`
	Invalidations int64              `json:"invalidations"`
}

// Manager owns the cached connection handle.
type Manager struct {
	resolver Resolver
	factory  ConnectorFactory
	logger   sfdash.Logger
	flight   singleflight.Group

	mu            sync.Mutex
	current       *Handle
	connecting    bool
	closed        bool
	constructions int64
	failures      int64
	invalidations int64
}

// New creates a Manager. No connection is made until the first Acquire.
func New(resolver Resolver, factory ConnectorFactory, logger sfdash.Logger) *Manager {
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	if factory == nil {
		panic("factory cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Manager{
		resolver: resolver,
		factory:  factory,
		logger:   logger,
	}
}

// Acquire returns a READY handle for the current credential, building one if
// none is cached or the cached one was built from a different signal.
//
// Construction is shared by concurrent callers and runs detached from any one
// caller's cancellation: a caller whose ctx ends stops waiting, the
// construction continues and its result is cached for the next caller.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	credential, err := m.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve credential: %w", sfdash.ErrConnectionFailed, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, sfdash.ErrManagerClosed
	}
	if h := m.current; h != nil {
		if sfdash.SameSignal(h.credential, credential) {
			m.mu.Unlock()
			return h, nil
		}
		m.current = nil
		m.mu.Unlock()
		m.logger.Info("Credential changed (%s); discarding handle %s", credential, h.id)
		m.discard(h)
	} else {
		m.mu.Unlock()
	}

	detached := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(flightKey, func() (interface{}, error) {
		return m.construct(detached, credential)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	}
}

// construct runs inside the single flight.
func (m *Manager) construct(ctx context.Context, credential sfdash.Credential) (*Handle, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, sfdash.ErrManagerClosed
	}
	// A flight that finished between this caller's cache check and joining
	// may already have stored a usable handle.
	if h := m.current; h != nil {
		if sfdash.SameSignal(h.credential, credential) {
			m.mu.Unlock()
			return h, nil
		}
		m.current = nil
		m.mu.Unlock()
		m.discard(h)
		m.mu.Lock()
	}
	m.connecting = true
	m.mu.Unlock()

	handle, err := m.build(ctx, credential)

	m.mu.Lock()
	m.connecting = false
	if err != nil {
		m.failures++
		m.mu.Unlock()
		m.logger.Error("Connection construction failed (%s): %v", credential, err)
		return nil, err
	}
	if m.closed {
		m.mu.Unlock()
		handle.markClosed()
		m.release(handle)
		return nil, sfdash.ErrManagerClosed
	}
	m.current = handle
	m.constructions++
	m.mu.Unlock()

	return handle, nil
}

func (m *Manager) build(ctx context.Context, credential sfdash.Credential) (*Handle, error) {
	connector, err := m.factory(credential)
	if err != nil {
		return nil, connectionFailed(err)
	}

	m.logger.Verbose("Connecting with %s", credential)
	start := time.Now()
	conn, err := connector.Connect(ctx)
	if err != nil {
		return nil, connectionFailed(err)
	}

	h := newHandle(credential, conn)
	m.logger.Info("Connection handle %s ready (%s) in %v", h.id, credential.Mode(), time.Since(start).Round(time.Millisecond))
	return h, nil
}

func connectionFailed(err error) error {
	if errors.Is(err, sfdash.ErrConnectionFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", sfdash.ErrConnectionFailed, err)
}

// Invalidate discards the cached handle, if any. The next Acquire builds a
// new one.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	h := m.current
	m.current = nil
	if h != nil {
		m.invalidations++
	}
	m.mu.Unlock()

	if h != nil {
		m.logger.Info("Invalidating connection handle %s", h.id)
		m.discard(h)
	}
}

// InvalidateHandle discards h only if it is still the cached handle, so a
// caller holding an old handle cannot discard a newer one. Reports whether h
// was discarded.
func (m *Manager) InvalidateHandle(h *Handle) bool {
	if h == nil {
		return false
	}
	m.mu.Lock()
	if m.current != h {
		m.mu.Unlock()
		return false
	}
	m.current = nil
	m.invalidations++
	m.mu.Unlock()

	m.logger.Info("Invalidating connection handle %s", h.id)
	m.discard(h)
	return true
}

// discard marks h STALE and releases it.
func (m *Manager) discard(h *Handle) {
	if h.markStale() {
		m.release(h)
	}
}

// release closes the handle's session. Failures are logged, never returned.
func (m *Manager) release(h *Handle) {
	if err := h.conn.Close(); err != nil {
		m.logger.Error("Failed to release connection handle %s: %v", h.id, err)
	}
}

// Close releases the cached handle and rejects further acquisitions with
// sfdash.ErrManagerClosed. A construction still in flight is released when
// it completes. Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	h := m.current
	m.current = nil
	m.mu.Unlock()

	if h == nil {
		return nil
	}
	h.markClosed()
	if err := h.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection handle %s: %w", h.id, err)
	}
	return nil
}

// Stats returns a snapshot of the manager state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Constructions: m.constructions,
		Failures:      m.failures,
		Invalidations: m.invalidations,
	}
	switch {
	case m.closed:
		s.State = sfdash.HandleClosed
	case m.current != nil:
		s.State = m.current.State()
		s.Mode = m.current.Mode().String()
		s.HandleID = m.current.id
	case m.connecting:
		s.State = sfdash.HandleConnecting
	default:
		s.State = sfdash.HandleUninitialized
	}
	s.StateName = s.State.String()
	return s
}
