package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// WebsocketDialer opens channels to the portal broker over WebSocket. The
// credential travels in the handshake's Authorization header.
type WebsocketDialer struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// HandshakeTimeout bounds the opening handshake. Zero means 10s.
	HandshakeTimeout time.Duration

	// PingInterval enables keepalive pings when positive. A pong must
	// arrive within two intervals or the channel is dropped.
	PingInterval time.Duration
}

// Dial performs the handshake and starts the reader and keepalive loops.
func (d *WebsocketDialer) Dial(ctx context.Context, req DialRequest) (Handle, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+req.Credential)

	conn, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			err = fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, &TransportError{Op: "dial", Err: err}
	}

	h := &wsHandle{
		id:           req.ChannelID,
		conn:         conn,
		hooks:        req.Hooks,
		pingInterval: d.PingInterval,
		listeners:    make(map[string][]func(json.RawMessage)),
		done:         make(chan struct{}),
	}
	h.connected.Store(true)

	if h.pingInterval > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
		})
		go h.pingLoop()
	}
	go h.readLoop()

	return h, nil
}

// wsHandle is a Handle backed by a gorilla websocket connection.
type wsHandle struct {
	id           string
	conn         *websocket.Conn
	hooks        Hooks
	pingInterval time.Duration

	writeMu sync.Mutex

	mu        sync.RWMutex
	listeners map[string][]func(json.RawMessage)

	connected atomic.Bool
	closing   atomic.Bool
	downOnce  sync.Once
	done      chan struct{}
}

func (h *wsHandle) ID() string { return h.id }

func (h *wsHandle) Connected() bool { return h.connected.Load() }

// Emit writes one frame. Writes are serialized.
func (h *wsHandle) Emit(event string, payload any) error {
	if !h.Connected() {
		return &TransportError{Op: "emit " + event, Err: errors.New("not connected")}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", event, err)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	_ = h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := h.conn.WriteJSON(Frame{Event: event, Data: data}); err != nil {
		return &TransportError{Op: "emit " + event, Err: err}
	}
	return nil
}

func (h *wsHandle) On(event string, fn func(json.RawMessage)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[event] = append(h.listeners[event], fn)
}

func (h *wsHandle) Off(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, event)
}

func (h *wsHandle) HasListener(event string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[event]) > 0
}

// Close sends a close frame and releases the socket. It is safe to call
// more than once.
func (h *wsHandle) Close() error {
	if !h.closing.CompareAndSwap(false, true) {
		return nil
	}
	h.connected.Store(false)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	_ = h.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

	err := h.conn.Close()
	h.down("client disconnect")
	return err
}

// readLoop dispatches inbound frames until the socket fails.
func (h *wsHandle) readLoop() {
	for {
		var f Frame
		if err := h.conn.ReadJSON(&f); err != nil {
			if h.closing.Load() {
				h.down("client disconnect")
				return
			}
			if isDecodeError(err) {
				h.reportError(fmt.Errorf("malformed frame: %w", err))
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.reportError(err)
			}
			h.connected.Store(false)
			_ = h.conn.Close()
			h.down("transport close")
			return
		}
		h.dispatch(f)
	}
}

// dispatch invokes the listeners for f outside the lock, in registration
// order, on the reader goroutine.
func (h *wsHandle) dispatch(f Frame) {
	h.mu.RLock()
	fns := append([]func(json.RawMessage){}, h.listeners[f.Event]...)
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(f.Data)
	}
}

func (h *wsHandle) pingLoop() {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			err := h.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			if err != nil {
				log.Printf("channel %s: ping failed: %v", h.id, err)
				h.connected.Store(false)
				_ = h.conn.Close()
				h.down("ping timeout")
				return
			}
		}
	}
}

// isDecodeError reports whether err came from decoding a frame rather than
// from the socket itself.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func (h *wsHandle) reportError(err error) {
	if h.hooks.OnError != nil {
		h.hooks.OnError(err)
	}
}

// down marks the handle dead and fires OnDisconnect exactly once.
func (h *wsHandle) down(reason string) {
	h.downOnce.Do(func() {
		h.connected.Store(false)
		close(h.done)
		if h.hooks.OnDisconnect != nil {
			h.hooks.OnDisconnect(reason)
		}
	})
}
