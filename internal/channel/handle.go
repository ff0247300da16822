package channel

import (
	"context"
	"encoding/json"
)

// Event names on the wire.
const (
	EventJoinRoom     = "joinRoom"
	EventNotification = "notification"
)

// Frame is the JSON envelope carried by every message on the channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomPayload is the body of the outbound joinRoom message.
type JoinRoomPayload struct {
	UserID string `json:"userId"`
}

// Handle is a live (or formerly live) transport instance. Only the Manager
// creates and destroys handles; other components emit and register
// listeners through it.
type Handle interface {
	// ID identifies this transport instance. Every dial yields a new ID.
	ID() string

	// Connected reports the transport-level connected flag.
	Connected() bool

	// Emit sends an event with a JSON-encodable payload.
	Emit(event string, payload any) error

	// On registers a listener for an inbound event.
	On(event string, fn func(json.RawMessage))

	// Off removes every listener for an inbound event.
	Off(event string)

	// HasListener reports whether at least one listener is registered
	// for event.
	HasListener(event string) bool

	// Close tears the transport down.
	Close() error
}

// Hooks are transport-level callbacks. They are observability hooks for
// the Manager and fire at most once per transition.
type Hooks struct {
	OnDisconnect func(reason string)
	OnError      func(err error)
}

// DialRequest carries everything a Dialer needs to open one channel.
type DialRequest struct {
	ChannelID  string
	Credential string
	Hooks      Hooks
}

// Dialer opens transport instances.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (Handle, error)
}
