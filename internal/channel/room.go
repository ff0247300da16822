package channel

import (
	"errors"
	"log"
	"sync"
)

// Registrar joins the recipient's mailbox room. The broker forgets room
// membership whenever a transport drops, so every new channel instance
// must be joined again.
type Registrar struct {
	manager *Manager

	mu              sync.Mutex
	joinedChannel   string
	joinedRecipient string
}

// NewRegistrar creates a Registrar for the manager's channel.
func NewRegistrar(m *Manager) *Registrar {
	return &Registrar{manager: m}
}

// JoinRoom emits a single joinRoom message for recipientID on the active
// channel. It is a no-op when no healthy channel exists or when this
// channel instance has already joined the same room.
func (r *Registrar) JoinRoom(recipientID string) error {
	h := r.manager.Current()
	if h == nil || !h.Connected() {
		return nil
	}
	if recipientID == "" {
		return &SubscriptionError{Err: errors.New("empty recipient id")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.joinedChannel == h.ID() && r.joinedRecipient == recipientID {
		return nil
	}

	if err := h.Emit(EventJoinRoom, JoinRoomPayload{UserID: recipientID}); err != nil {
		return &SubscriptionError{RecipientID: recipientID, Err: err}
	}

	r.joinedChannel = h.ID()
	r.joinedRecipient = recipientID
	log.Printf("channel: joined room %s (id=%s)", recipientID, h.ID())
	return nil
}

// Joined reports whether the active channel has joined recipientID's room.
func (r *Registrar) Joined(recipientID string) bool {
	h := r.manager.Current()
	if h == nil || !h.Connected() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinedChannel == h.ID() && r.joinedRecipient == recipientID
}

// Reset forgets the recorded membership so the next JoinRoom always emits.
func (r *Registrar) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinedChannel = ""
	r.joinedRecipient = ""
}
