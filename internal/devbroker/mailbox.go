package devbroker

import (
	"slices"
	"sync"

	"github.com/nhle/portal-inbox/internal/model"
)

// Mailbox is the broker's in-memory notification store, keyed by
// recipient and kept newest first.
type Mailbox struct {
	mu    sync.RWMutex
	boxes map[string][]model.Notification
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{boxes: make(map[string][]model.Notification)}
}

// Add stores n for userID.
func (m *Mailbox) Add(userID string, n model.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	box := append(m.boxes[userID], n)
	model.SortNewestFirst(box)
	m.boxes[userID] = box
}

// List returns one page of userID's notifications plus the mailbox-wide
// unread and total counts.
func (m *Mailbox) List(userID string, page, limit int) (items []model.Notification, unread, total int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	box := m.boxes[userID]
	total = len(box)
	unread = model.CountUnread(box)

	start := (page - 1) * limit
	if start >= total || start < 0 {
		return []model.Notification{}, unread, total
	}
	end := min(start+limit, total)
	return slices.Clone(box[start:end]), unread, total
}

// MarkRead flips one notification to read. It reports false when the id
// is not in userID's mailbox.
func (m *Mailbox) MarkRead(userID, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	box := m.boxes[userID]
	for i := range box {
		if box[i].ID == id {
			box[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead flips every notification of userID to read.
func (m *Mailbox) MarkAllRead(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.boxes[userID] {
		m.boxes[userID][i].Read = true
	}
}

// Delete removes one notification. It reports false when the id is not in
// userID's mailbox.
func (m *Mailbox) Delete(userID, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	box := m.boxes[userID]
	i := slices.IndexFunc(box, func(n model.Notification) bool { return n.ID == id })
	if i < 0 {
		return false
	}
	m.boxes[userID] = slices.Delete(box, i, i+1)
	return true
}
