package devbroker

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/portal-inbox/internal/channel"
	"github.com/nhle/portal-inbox/internal/model"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

// client is one connected socket. Room membership lives on the hub and is
// dropped when the socket closes.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan channel.Frame
	once   sync.Once
}

// Hub tracks sockets and the rooms they joined.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	rooms   map[string]map[*client]struct{}
	joins   int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		rooms:   make(map[string]map[*client]struct{}),
	}
}

// serve registers conn for userID and runs its pumps until it closes.
func (h *Hub) serve(conn *websocket.Conn, userID string) {
	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan channel.Frame, sendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	c.readPump()
}

// Publish delivers n to every socket in userID's room. Sockets outside the
// room receive nothing; there is no redelivery.
func (h *Hub) Publish(userID string, n model.Notification) int {
	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("devbroker: encoding notification %s: %v", n.ID, err)
		return 0
	}
	frame := channel.Frame{Event: channel.EventNotification, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[userID] {
		select {
		case c.send <- frame:
			delivered++
		default:
			log.Printf("devbroker: send buffer full for %s, dropping", c.userID)
		}
	}
	return delivered
}

// RoomSize returns how many sockets joined userID's room.
func (h *Hub) RoomSize(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Joins returns how many joinRoom messages were accepted in total.
func (h *Hub) Joins() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.joins
}

// Clients returns the number of open sockets.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DropAll closes every socket, as a broker restart would.
func (h *Hub) DropAll() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.joins++
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		c.hub.remove(c)
		close(c.send)
		_ = c.conn.Close()
	})
}

// readPump handles inbound frames. Only joinRoom is understood, and a
// socket may only join its own room.
func (c *client) readPump() {
	defer c.close()

	for {
		var f channel.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("devbroker: read from %s: %v", c.userID, err)
			}
			return
		}

		switch f.Event {
		case channel.EventJoinRoom:
			var p channel.JoinRoomPayload
			if err := json.Unmarshal(f.Data, &p); err != nil || p.UserID == "" {
				log.Printf("devbroker: bad joinRoom from %s", c.userID)
				continue
			}
			if p.UserID != c.userID {
				log.Printf("devbroker: %s may not join room %s", c.userID, p.UserID)
				continue
			}
			c.hub.join(c, p.UserID)
		default:
			log.Printf("devbroker: ignoring event %q from %s", f.Event, c.userID)
		}
	}
}

func (c *client) writePump() {
	for f := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(f); err != nil {
			log.Printf("devbroker: write to %s: %v", c.userID, err)
			c.close()
			return
		}
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
}
