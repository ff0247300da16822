package channel

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nhle/portal-inbox/internal/model"
)

// Registry attaches the inbound notification handler to the active
// channel. It guarantees at most one handler per channel no matter how
// many times Attach runs across reconnects.
type Registry struct {
	manager  *Manager
	validate *validator.Validate

	mu              sync.Mutex
	attachedChannel string
}

// NewRegistry creates a Registry for the manager's channel.
func NewRegistry(m *Manager) *Registry {
	return &Registry{
		manager:  m,
		validate: validator.New(),
	}
}

// Attach installs onNotification on the active channel and reports whether
// a handler is in place. It returns false when no healthy channel exists.
// Calling Attach again on an already instrumented channel is a no-op.
func (r *Registry) Attach(onNotification func(model.Notification)) bool {
	h := r.manager.Current()
	if h == nil || !h.Connected() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attachedChannel == h.ID() && h.HasListener(EventNotification) {
		return true
	}

	h.Off(EventNotification)
	h.On(EventNotification, r.decoder(h.ID(), onNotification))
	r.attachedChannel = h.ID()
	return true
}

// Detach removes the handler from the active channel, if any.
func (r *Registry) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h := r.manager.Current(); h != nil {
		h.Off(EventNotification)
	}
	r.attachedChannel = ""
}

// decoder wraps fn with payload decoding and validation. Bad payloads are
// logged and dropped.
func (r *Registry) decoder(channelID string, fn func(model.Notification)) func(json.RawMessage) {
	return func(raw json.RawMessage) {
		var n model.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			log.Printf("channel %s: dropping notification: %v", channelID, err)
			return
		}
		if err := r.validate.Struct(n); err != nil {
			log.Printf("channel %s: dropping invalid notification: %v", channelID, err)
			return
		}
		// Pushes may omit the timestamp; the arrival time orders them.
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		fn(n)
	}
}
