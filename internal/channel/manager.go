package channel

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/nhle/portal-inbox/internal/model"
)

// Manager owns the single transport instance of a session. At most one
// healthy handle exists at any time; callers never need to guard against
// duplicate transports themselves.
type Manager struct {
	dialer Dialer

	// connectMu serializes Connect and Disconnect so that two concurrent
	// connects cannot both dial.
	connectMu sync.Mutex

	mu       sync.RWMutex
	current  Handle
	state    model.ConnectionState
	watchers []func(model.ConnectionState)
}

// NewManager creates a Manager that opens channels with d.
func NewManager(d Dialer) *Manager {
	return &Manager{
		dialer: d,
		state:  model.ConnectionState{Status: model.StatusNotInitialized},
	}
}

// Connect returns a healthy handle, dialing a new one only when needed.
//
// An empty credential returns ErrCredentialMissing without touching the
// state. A healthy existing handle is returned as is. An unhealthy one is
// torn down before dialing. Dial failures are returned as *TransportError
// and leave the state disconnected.
func (m *Manager) Connect(ctx context.Context, credential string) (Handle, error) {
	if credential == "" {
		log.Printf("channel: no credential, not connecting")
		return nil, ErrCredentialMissing
	}

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if h := m.Current(); h != nil {
		if h.Connected() {
			return h, nil
		}
		m.teardown(h)
	}

	id := uuid.New().String()
	m.setState(model.ConnectionState{Status: model.StatusConnecting, ChannelID: id})

	h, err := m.dialer.Dial(ctx, DialRequest{
		ChannelID:  id,
		Credential: credential,
		Hooks:      m.hooksFor(id),
	})
	if err != nil {
		if !IsTransportError(err) {
			err = &TransportError{Op: "dial", Err: err}
		}
		log.Printf("channel: connect failed: %v", err)
		m.setState(model.ConnectionState{Status: model.StatusDisconnected, LastError: err})
		return nil, err
	}

	m.mu.Lock()
	m.current = h
	m.mu.Unlock()

	// A drop between Dial and the assignment above reached the hooks
	// while id was not yet current and was ignored.
	if !h.Connected() {
		m.teardown(h)
		err := &TransportError{Op: "dial", Err: disconnectReason("closed during setup")}
		log.Printf("channel: connect failed: %v", err)
		m.setState(model.ConnectionState{Status: model.StatusDisconnected, LastError: err})
		return nil, err
	}

	log.Printf("channel: connected (id=%s)", id)
	m.setState(model.ConnectionState{Status: model.StatusConnected, ChannelID: id})

	// The hook may have recorded a drop just before the line above.
	if !h.Connected() && m.isCurrent(id) {
		m.setState(model.ConnectionState{
			Status:    model.StatusDisconnected,
			ChannelID: id,
			LastError: &TransportError{Op: "read", Err: disconnectReason("closed during setup")},
		})
	}
	return h, nil
}

// Current returns the active handle, or nil. The handle may be unhealthy;
// check Connected before relying on it.
func (m *Manager) Current() Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Disconnect tears the active handle down. It is safe to call when no
// handle exists.
func (m *Manager) Disconnect() {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	h := m.Current()
	if h == nil {
		return
	}
	m.teardown(h)
	log.Printf("channel: disconnected by client (id=%s)", h.ID())
	m.setState(model.ConnectionState{Status: model.StatusDisconnected})
}

// State returns a copy of the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Watch registers fn to be called after every state transition. Observers
// run synchronously and must not block.
func (m *Manager) Watch(fn func(model.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, fn)
}

// teardown detaches h from the manager and closes it, swallowing errors.
func (m *Manager) teardown(h Handle) {
	m.mu.Lock()
	if m.current == h {
		m.current = nil
	}
	m.mu.Unlock()

	if err := h.Close(); err != nil {
		log.Printf("channel: closing stale handle %s: %v", h.ID(), err)
	}
}

// hooksFor builds transport hooks bound to one channel id. Events from a
// handle that is no longer current are ignored.
func (m *Manager) hooksFor(id string) Hooks {
	return Hooks{
		OnDisconnect: func(reason string) {
			if !m.isCurrent(id) {
				return
			}
			log.Printf("channel: disconnected (id=%s): %s", id, reason)
			m.setState(model.ConnectionState{
				Status:    model.StatusDisconnected,
				ChannelID: id,
				LastError: &TransportError{Op: "read", Err: disconnectReason(reason)},
			})
		},
		OnError: func(err error) {
			if !m.isCurrent(id) {
				return
			}
			log.Printf("channel: transport error (id=%s): %v", id, err)
			m.mu.Lock()
			m.state.LastError = err
			m.mu.Unlock()
		},
	}
}

func (m *Manager) isCurrent(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil && m.current.ID() == id
}

// setState records st and notifies watchers outside the lock.
func (m *Manager) setState(st model.ConnectionState) {
	m.mu.Lock()
	m.state = st
	watchers := append([]func(model.ConnectionState){}, m.watchers...)
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(st)
	}
}

// disconnectReason adapts a hook reason string to an error value.
type disconnectReason string

func (r disconnectReason) Error() string { return string(r) }
