package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// fakeHandle is an in-memory Handle that records emits and lets tests
// deliver inbound frames.
type fakeHandle struct {
	id    string
	hooks Hooks

	mu        sync.Mutex
	connected bool
	closed    int
	emitted   []Frame
	listeners map[string][]func(json.RawMessage)
}

func newFakeHandle(id string, hooks Hooks) *fakeHandle {
	return &fakeHandle{
		id:        id,
		hooks:     hooks,
		connected: true,
		listeners: make(map[string][]func(json.RawMessage)),
	}
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *fakeHandle) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connected {
		return errors.New("not connected")
	}
	h.emitted = append(h.emitted, Frame{Event: event, Data: data})
	return nil
}

func (h *fakeHandle) On(event string, fn func(json.RawMessage)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[event] = append(h.listeners[event], fn)
}

func (h *fakeHandle) Off(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, event)
}

func (h *fakeHandle) HasListener(event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[event]) > 0
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = false
	h.closed++
	return nil
}

// deliver invokes the listeners for event like a transport reader would.
func (h *fakeHandle) deliver(event string, data string) {
	h.mu.Lock()
	fns := append([]func(json.RawMessage){}, h.listeners[event]...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(json.RawMessage(data))
	}
}

// drop simulates the transport dying underneath the client.
func (h *fakeHandle) drop(reason string) {
	h.mu.Lock()
	h.connected = false
	h.mu.Unlock()
	if h.hooks.OnDisconnect != nil {
		h.hooks.OnDisconnect(reason)
	}
}

func (h *fakeHandle) listenerCount(event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[event])
}

func (h *fakeHandle) emits(event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, f := range h.emitted {
		if f.Event == event {
			n++
		}
	}
	return n
}

// fakeDialer hands out fakeHandles, or fails while err is set.
type fakeDialer struct {
	mu      sync.Mutex
	err     error
	handles []*fakeHandle
	reqs    []DialRequest

	// dropOnDial makes the next handle die before Dial returns.
	dropOnDial bool
}

func (d *fakeDialer) Dial(_ context.Context, req DialRequest) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
	if d.err != nil {
		return nil, d.err
	}
	h := newFakeHandle(req.ChannelID, req.Hooks)
	d.handles = append(d.handles, h)
	if d.dropOnDial {
		d.dropOnDial = false
		h.drop("closed by peer")
	}
	return h, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reqs)
}

func (d *fakeDialer) last() *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}
