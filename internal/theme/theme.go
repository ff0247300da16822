package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/portal-inbox/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorTeal    = lipgloss.AdaptiveColor{Dark: "#38D9A9", Light: "#2C7A7B"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps overlay panels such as help and login.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// ReadItemStyle dims notifications that have been read.
var ReadItemStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ToastStyle renders transient alerts.
var ToastStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorTeal).
	Padding(0, 1)

// ErrorToastStyle renders transient failure alerts.
var ErrorToastStyle = ToastStyle.
	Background(ColorRed)

// ErrorStyle renders inline error lines.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed)

// UnreadMarker is drawn in front of unread notifications.
var UnreadMarker = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true).
	Render("●")

// TypeIcon returns a one-glyph icon for a notification type.
func TypeIcon(t model.NotificationType) string {
	switch t {
	case model.NotificationTypeAnnouncement:
		return "📣"
	case model.NotificationTypeJob:
		return "💼"
	case model.NotificationTypeComment:
		return "💬"
	case model.NotificationTypeApplicationSubmitted:
		return "📨"
	case model.NotificationTypeApplicationAdvisorAction,
		model.NotificationTypeApplicationCoordinatorAction:
		return "✅"
	default:
		return "🔔"
	}
}

// TypeStyle returns a color-coded style for a notification type label.
func TypeStyle(t model.NotificationType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch t {
	case model.NotificationTypeAnnouncement:
		return base.Foreground(ColorBlue)
	case model.NotificationTypeJob:
		return base.Foreground(ColorGreen)
	case model.NotificationTypeComment:
		return base.Foreground(ColorMagenta)
	case model.NotificationTypeApplicationSubmitted:
		return base.Foreground(ColorOrange)
	case model.NotificationTypeApplicationAdvisorAction,
		model.NotificationTypeApplicationCoordinatorAction:
		return base.Foreground(ColorTeal)
	default:
		return base.Foreground(ColorGray)
	}
}

// ConnectionStyle colors the connection indicator in the header.
func ConnectionStyle(s model.ConnectionStatus) lipgloss.Style {
	base := HeaderStyle

	switch s {
	case model.StatusConnected:
		return base.Foreground(ColorGreen)
	case model.StatusConnecting:
		return base.Foreground(ColorYellow)
	case model.StatusDisconnected:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// Apply switches the adaptive palette to a fixed variant. "dark" and
// "light" force one side; anything else keeps terminal detection.
func Apply(name string) {
	switch name {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}
}
