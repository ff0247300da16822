package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/portal-inbox/internal/theme"
)

// Layout manages the terminal layout dimensions: a header, the content
// area, a one-line alert strip and the status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	AlertHeight     int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// Header, alert strip and status bar each take one line.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		AlertHeight:     1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header, alert strip and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.AlertHeight-l.StatusBarHeight, 0)
}

// RenderHeader renders the top header bar with a title and the
// connection status, already styled by the caller.
func (l Layout) RenderHeader(title string, connStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := lipgloss.NewStyle().
		Align(lipgloss.Right).
		Render(connStatus)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderAlert renders the alert strip. An empty text yields a blank line
// so the layout does not jump when an alert appears.
func (l Layout) RenderAlert(text string, isError bool) string {
	if text == "" {
		return ""
	}
	style := theme.ToastStyle
	if isError {
		style = theme.ErrorToastStyle
	}
	return style.MaxWidth(l.Width).Render(text)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, alert strip and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	alert string,
	statusBar string,
) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		alert,
		statusBar,
	)
}
