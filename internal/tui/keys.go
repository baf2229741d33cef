package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Search   key.Binding
	Event    key.Binding
	Actor    key.Binding
	Status   key.Binding
	Start    key.Binding
	End      key.Binding
	Reset    key.Binding
	Refetch  key.Binding
	Export   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d", " "), key.WithHelp("pgdn", "page down")),
		Top:      key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Event:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "event")),
		Actor:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "actor")),
		Status:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
		Start:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "from date")),
		End:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "to date")),
		Reset:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset filters")),
		Refetch:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),
		Export:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "export csv")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Search, k.Status, k.Reset, k.Export, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Search, k.Event, k.Actor, k.Status, k.Start, k.End},
		{k.Reset, k.Refetch, k.Export, k.Help, k.Quit},
	}
}
