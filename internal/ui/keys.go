package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap 快捷键
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	NextTab     key.Binding
	PrevTab     key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
	Submit      key.Binding
	NewChat     key.Binding
	RefreshAll  key.Binding
	ClearAll    key.Binding
	ToggleMode  key.Binding
	Reanalyze   key.Binding
	Competitors key.Binding
	Quit        key.Binding
}

// DefaultKeyMap 默认快捷键
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("↑", "prev stock"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "ctrl+n"),
			key.WithHelp("↓", "next stock"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev tab"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "new chat"),
		),
		RefreshAll: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh all"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "clear all"),
		),
		ToggleMode: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("ctrl+b", "beginner mode"),
		),
		Reanalyze: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh analysis"),
		),
		Competitors: key.NewBinding(
			key.WithKeys("1", "2", "3", "4"),
			key.WithHelp("1-4", "add/view competitor"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp 实现 help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextTab, k.NewChat, k.RefreshAll, k.ClearAll, k.ToggleMode, k.Quit}
}

// FullHelp 实现 help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextTab, k.PrevTab},
		{k.Submit, k.ScrollUp, k.ScrollDown, k.Reanalyze, k.Competitors},
		{k.NewChat, k.RefreshAll, k.ClearAll, k.ToggleMode, k.Quit},
	}
}
