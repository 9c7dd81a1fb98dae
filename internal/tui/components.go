package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderTabs draws the open timelines as a single row, the active one
// highlighted. Titles shrink to fit width.
func renderTabs(titles []string, active, width int) string {
	if len(titles) == 0 {
		return ""
	}
	per := width/len(titles) - 2
	if per < 6 {
		per = 6
	}
	cells := make([]string, len(titles))
	for i, t := range titles {
		t = truncateEnd(t, per)
		if i == active {
			cells[i] = ActiveTabStyle.Render(t)
		} else {
			cells[i] = TabStyle.Render(t)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

// renderHeader returns a consistently styled header with an optional muted subtitle.
func renderHeader(title, subtitle string, width int) string {
	title = truncateEnd(title, width-2)
	subtitle = truncateEnd(subtitle, width-2)
	rows := []string{HeaderStyle.Render(title)}
	if subtitle != "" {
		rows = append(rows, renderMuted(subtitle))
	}
	return lipgloss.JoinVertical(lipgloss.Top, rows...)
}

// renderInputFrame draws a rounded bordered container around a rendered input view.
func renderInputFrame(inputView string, focused bool, contentWidth int) string {
	borderColor := MutedColor
	if focused {
		borderColor = AccentColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(contentWidth + 4).
		Render(inputView)
}

func renderCentered(width, height int, content string) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

func renderMuted(text string) string {
	return lipgloss.NewStyle().Foreground(MutedColor).Render(text)
}

func renderSeparator(width int) string {
	if width < 1 {
		width = 1
	}
	return renderMuted(strings.Repeat("─", width))
}
