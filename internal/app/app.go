package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/portal-inbox/internal/keys"
	"github.com/nhle/portal-inbox/internal/model"
	"github.com/nhle/portal-inbox/internal/session"
	appsync "github.com/nhle/portal-inbox/internal/sync"
	"github.com/nhle/portal-inbox/internal/theme"
	"github.com/nhle/portal-inbox/internal/ui"
	helpview "github.com/nhle/portal-inbox/internal/ui/help"
	"github.com/nhle/portal-inbox/internal/ui/notiflist"
)

// alertExpiredMsg clears the alert strip if it still shows alert seq.
type alertExpiredMsg struct {
	seq int
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewHelp
)

// Model is the root Bubble Tea model. It renders the inbox, the header
// with unread count and connection status, and the alert strip.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	keys        *keys.KeyMap
	session     *session.Session
	bridge      *Bridge
	inboxView   notiflist.Model
	helpView    helpview.Model
	spinner     spinner.Model

	conn      model.ConnectionState
	supStatus appsync.Status
	unread    int

	alertText  string
	alertError bool
	alertSeq   int
	alertTTL   time.Duration

	ready bool
}

// New creates the root model for sess. The bridge must be the one given
// to the session as its alerter.
func New(sess *session.Session, bridge *Bridge, cfg *model.AppConfig) Model {
	k := keys.DefaultKeyMap()

	sess.Inbox().Subscribe(bridge.PushSnapshot)
	sess.Manager().Watch(bridge.PushState)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = theme.HeaderStyle.UnsetPadding()

	return Model{
		currentView: ViewInbox,
		keys:        k,
		session:     sess,
		bridge:      bridge,
		inboxView:   notiflist.New(sess.Inbox(), k, sess.PageSize(), 80, 24),
		helpView:    helpview.New(k, 80, 24),
		spinner:     sp,
		conn:        sess.Manager().State(),
		supStatus:   sess.Supervisor().Status(),
		alertTTL:    cfg.Display.AlertDuration(),
	}
}

// Init starts the listeners and, when signed in, loads the first page.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		m.bridge.waitSnapshot(),
		m.bridge.waitState(),
		m.bridge.waitArrival(),
		m.session.Supervisor().WaitForNextStatus(),
	}
	if m.session.Authenticated() {
		cmds = append(cmds, m.inboxView.Init())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.inboxView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.helpView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case notiflist.SnapshotMsg:
		m.unread = msg.Snapshot.Unread
		var cmd tea.Cmd
		m.inboxView, cmd = m.inboxView.Update(msg)
		return m, tea.Batch(cmd, m.bridge.waitSnapshot())

	case connStateMsg:
		m.conn = msg.state
		return m, m.bridge.waitState()

	case appsync.StatusMsg:
		m.supStatus = msg.Status
		return m, m.session.Supervisor().WaitForNextStatus()

	case arrivedMsg:
		n := msg.notification
		cmd := m.showAlert(fmt.Sprintf("%s New %s: %s", theme.TypeIcon(n.Type), n.Type, n.Title), false)
		return m, tea.Batch(cmd, m.bridge.waitArrival())

	case alertExpiredMsg:
		if msg.seq == m.alertSeq {
			m.alertText = ""
		}
		return m, nil

	case notiflist.MutationDoneMsg:
		if msg.Err != nil {
			return m, m.showAlert(fmt.Sprintf("Could not %s: %v", msg.Op, msg.Err), true)
		}
		return m, nil

	case notiflist.OpenMsg:
		if target := msg.Notification.Target(); target != "" {
			return m, m.showAlert("→ "+target, false)
		}
		return m, nil

	case notiflist.PageLoadedMsg:
		var cmd tea.Cmd
		m.inboxView, cmd = m.inboxView.Update(msg)
		return m, cmd

	case helpview.CloseMsg:
		m.currentView = ViewInbox
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewInbox {
				m.currentView = ViewHelp
				return m, nil
			}

		case key.Matches(msg, m.keys.Refresh):
			if m.currentView == ViewInbox && m.session.Authenticated() {
				cmds := []tea.Cmd{m.inboxView.LoadPage(1)}
				if m.supStatus.State == appsync.StateGaveUp {
					m.session.Supervisor().Retry()
					cmds = append(cmds, m.showAlert("Reconnecting…", false))
				}
				return m, tea.Batch(cmds...)
			}
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		if !m.session.Authenticated() {
			return m, nil
		}
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// showAlert puts text in the alert strip and schedules its removal.
func (m *Model) showAlert(text string, isError bool) tea.Cmd {
	m.alertSeq++
	m.alertText = text
	m.alertError = isError
	seq := m.alertSeq
	return tea.Tick(m.alertTTL, func(time.Time) tea.Msg {
		return alertExpiredMsg{seq: seq}
	})
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	label, status := connectionLabel(
		m.conn, m.supStatus, m.session.Authenticated(), m.spinner.View(), time.Now(),
	)
	header := m.layout.RenderHeader(
		headerTitle(m.unread),
		theme.ConnectionStyle(status).Render(label),
	)
	alert := m.layout.RenderAlert(m.alertText, m.alertError)
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), alert, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewHelp:
		return m.helpView.View()
	default:
		if !m.session.Authenticated() {
			return theme.HelpStyle.Render("\n  Not signed in. Run `portal-inbox login` first.")
		}
		return m.inboxView.View()
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	default:
		if m.supStatus.State == appsync.StateGaveUp {
			return "r retry connection | q quit | ? help"
		}
		return "enter read | a read all | d delete | m more | r refresh | q quit | ? help"
	}
}
