package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the viewer
type KeyMap struct {
	Toggle key.Binding // start or stop ingestion
	Chart  key.Binding
	List   key.Binding // last N samples per channel
	Latest key.Binding // newest sample per channel
	Axis   key.Binding // union / intersection
	Help   key.Binding
	Quit   key.Binding
}

// DefaultKeyMap is the built-in key binding set
var DefaultKeyMap = KeyMap{
	Toggle: key.NewBinding(
		key.WithKeys("s", " "),
		key.WithHelp("s", "start/stop"),
	),
	Chart: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "chart"),
	),
	List: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "list last N"),
	),
	Latest: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "latest point"),
	),
	Axis: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "axis policy"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.List, k.Latest, k.Axis, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Chart, k.List, k.Latest},
		{k.Toggle, k.Axis},
		{k.Help, k.Quit},
	}
}
