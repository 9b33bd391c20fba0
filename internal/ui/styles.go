package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// 配色
var (
	ColorPrimary = lipgloss.Color("#A78BFA")
	ColorAccent  = lipgloss.Color("#22D3EE")
	ColorSuccess = lipgloss.Color("#00C853")
	ColorWarning = lipgloss.Color("#D97706")
	ColorError   = lipgloss.Color("#FF5252")
	ColorMuted   = lipgloss.Color("#9CA3AF")
	ColorBorder  = lipgloss.Color("#334155")
)

const sidebarWidth = 26

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(ColorBorder)

	itemStyle     = lipgloss.NewStyle()
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	cursorStyle   = lipgloss.NewStyle().Foreground(ColorPrimary)
	badgeStyle    = lipgloss.NewStyle().Foreground(ColorWarning)
	mutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	warningStyle  = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(ColorError)
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	botStyle      = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	mainStyle = lipgloss.NewStyle().Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			Padding(0, 1).
			Underline(true)
	tabStyle = lipgloss.NewStyle().Foreground(ColorMuted).Padding(0, 1)

	upStyle   = lipgloss.NewStyle().Foreground(ColorSuccess)
	downStyle = lipgloss.NewStyle().Foreground(ColorError)
)

func divider(width int) string {
	if width < 1 {
		width = 1
	}
	return mutedStyle.Render(strings.Repeat("─", width))
}
