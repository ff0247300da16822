package notiflist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/portal-inbox/internal/model"
	"github.com/nhle/portal-inbox/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the sender and age of the notification.
func (i Item) Description() string {
	return strings.Join([]string{
		i.Notification.SenderName(),
		relativeTime(i.Notification.CreatedAt),
	}, " | ")
}

// Delegate implements list.ItemDelegate for notification rows. Each row
// takes two lines: icon, marker and title, then the message preview.
type Delegate struct{}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

// Render draws a single notification.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	isSelected := index == m.Index()

	marker := " "
	if !n.Read {
		marker = theme.UnreadMarker
	}

	icon := theme.TypeStyle(n.Type).Render(theme.TypeIcon(n.Type))

	meta := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(fmt.Sprintf("%s · %s", n.SenderName(), relativeTime(n.CreatedAt)))

	title := n.Title
	if title == "" {
		title = string(n.Type)
	}

	width := m.Width() - 4
	preview := truncate(strings.ReplaceAll(n.Message, "\n", " "), width-4)

	first := fmt.Sprintf("%s %s %s  %s", marker, icon, title, meta)
	second := "    " + preview

	if n.Read {
		first = theme.ReadItemStyle.Render(first)
	}
	second = theme.ReadItemStyle.Render(second)

	style := theme.ListItemStyle
	if isSelected {
		style = theme.SelectedItemStyle
	}
	fmt.Fprint(w, style.Render(lipgloss.JoinVertical(lipgloss.Left, first, second)))
}

// truncate cuts s to at most width runes, adding an ellipsis when cut.
func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 02")
	}
}
