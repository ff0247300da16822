package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/portal-inbox/internal/inbox"
	"github.com/nhle/portal-inbox/internal/model"
	"github.com/nhle/portal-inbox/internal/ui/notiflist"
)

// connStateMsg carries a connection state transition to the UI.
type connStateMsg struct {
	state model.ConnectionState
}

// arrivedMsg carries a realtime notification for the alert strip.
type arrivedMsg struct {
	notification model.Notification
}

// Bridge turns callbacks from the session's goroutines into tea messages.
// Sends never block: snapshots keep only the latest, other events are
// dropped when the UI falls behind.
type Bridge struct {
	snapshots chan inbox.Snapshot
	states    chan model.ConnectionState
	arrivals  chan model.Notification
}

// NewBridge creates an unattached bridge.
func NewBridge() *Bridge {
	return &Bridge{
		snapshots: make(chan inbox.Snapshot, 1),
		states:    make(chan model.ConnectionState, 16),
		arrivals:  make(chan model.Notification, 16),
	}
}

// Alert implements inbox.Alerter.
func (b *Bridge) Alert(n model.Notification) {
	select {
	case b.arrivals <- n:
	default:
	}
}

// PushSnapshot replaces any unread snapshot with s.
func (b *Bridge) PushSnapshot(s inbox.Snapshot) {
	for {
		select {
		case b.snapshots <- s:
			return
		default:
		}
		select {
		case <-b.snapshots:
		default:
		}
	}
}

// PushState forwards a connection state transition.
func (b *Bridge) PushState(st model.ConnectionState) {
	select {
	case b.states <- st:
	default:
	}
}

func (b *Bridge) waitSnapshot() tea.Cmd {
	return func() tea.Msg {
		return notiflist.SnapshotMsg{Snapshot: <-b.snapshots}
	}
}

func (b *Bridge) waitState() tea.Cmd {
	return func() tea.Msg {
		return connStateMsg{state: <-b.states}
	}
}

func (b *Bridge) waitArrival() tea.Cmd {
	return func() tea.Msg {
		return arrivedMsg{notification: <-b.arrivals}
	}
}
