package notiflist

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/portal-inbox/internal/api"
	"github.com/nhle/portal-inbox/internal/inbox"
	"github.com/nhle/portal-inbox/internal/keys"
	"github.com/nhle/portal-inbox/internal/model"
	"github.com/nhle/portal-inbox/internal/theme"
)

// Source is the part of the inbox the list drives.
type Source interface {
	LoadPage(ctx context.Context, page, limit int) (*api.Page, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// SnapshotMsg carries a fresh inbox snapshot.
type SnapshotMsg struct {
	Snapshot inbox.Snapshot
}

// PageLoadedMsg is sent when a page fetch settles. Failures are also
// reflected in the next snapshot.
type PageLoadedMsg struct {
	Page int
	Err  error
}

// MutationDoneMsg is sent when a mark-read, mark-all or delete settles.
// A non-nil Err means the change was rolled back.
type MutationDoneMsg struct {
	Op  string
	Err error
}

// OpenMsg is sent when the user opens a notification.
type OpenMsg struct {
	Notification model.Notification
}

// Model is the inbox list view component.
type Model struct {
	list     list.Model
	source   Source
	keys     *keys.KeyMap
	pageSize int
	snap     inbox.Snapshot
	loaded   bool
	width    int
	height   int
}

// New creates a new inbox list model.
func New(src Source, k *keys.KeyMap, pageSize, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height-1)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		list:     l,
		source:   src,
		keys:     k,
		pageSize: pageSize,
		width:    width,
		height:   height,
	}
}

// Init loads the first page.
func (m Model) Init() tea.Cmd {
	return m.LoadPage(1)
}

// Update handles messages for the inbox list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SnapshotMsg:
		return m, m.SetSnapshot(msg.Snapshot)

	case PageLoadedMsg:
		if msg.Err == nil {
			m.loaded = true
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, tea.Batch(
			m.mutate("mark read", func(ctx context.Context) error {
				return m.source.MarkRead(ctx, n.ID)
			}),
			func() tea.Msg { return OpenMsg{Notification: n} },
		)

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.mutate("mark all read", m.source.MarkAllRead)

	case key.Matches(msg, m.keys.Delete):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, m.mutate("delete", func(ctx context.Context) error {
			return m.source.DeleteNotification(ctx, n.ID)
		})

	case key.Matches(msg, m.keys.LoadMore):
		if !m.snap.HasMore || m.snap.Loading {
			return m, nil
		}
		return m, m.LoadPage(m.snap.Page + 1)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SetSnapshot replaces the rows, keeping the cursor on the same
// notification when it is still present.
func (m *Model) SetSnapshot(s inbox.Snapshot) tea.Cmd {
	selectedID := ""
	if n, ok := m.Selected(); ok {
		selectedID = n.ID
	}

	m.snap = s
	items := make([]list.Item, len(s.Notifications))
	cursor := -1
	for i, n := range s.Notifications {
		items[i] = Item{Notification: n}
		if n.ID == selectedID {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	if cursor >= 0 {
		m.list.Select(cursor)
	}
	return cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Snapshot returns the last snapshot shown.
func (m Model) Snapshot() inbox.Snapshot { return m.snap }

// View renders the inbox list.
func (m Model) View() string {
	var footer string
	switch {
	case m.snap.Err != nil:
		footer = theme.ErrorStyle.Render("⚠ " + m.snap.Err.Error() + " (press r to retry)")
	case m.snap.Loading:
		footer = theme.HelpStyle.Render("loading…")
	case m.snap.HasMore:
		footer = theme.HelpStyle.Render("press m to load more")
	}

	if len(m.list.Items()) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, m.renderEmptyState(), footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), footer)
}

// renderEmptyState shows guidance text when the inbox is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-1).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if !m.loaded && m.snap.Err == nil {
		return style.Render("Loading notifications…")
	}
	return style.Render("You're all caught up.\n\nNew notifications appear here as they arrive.")
}

// LoadPage returns a tea.Cmd that fetches one page.
func (m Model) LoadPage(page int) tea.Cmd {
	src, limit := m.source, m.pageSize
	return func() tea.Msg {
		_, err := src.LoadPage(context.Background(), page, limit)
		return PageLoadedMsg{Page: page, Err: err}
	}
}

// mutate runs fn in the background and reports the outcome.
func (m Model) mutate(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return MutationDoneMsg{Op: op, Err: fn(context.Background())}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-1)
}
