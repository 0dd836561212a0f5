package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the browser key bindings.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Expand  key.Binding
	Resolve key.Binding
	Clear   key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Expand: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "expand"),
	),
	Resolve: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "resolve path"),
	),
	Clear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// keyBarText renders the key hints for the current mode.
func keyBarText(prompting bool) string {
	if prompting {
		return hint(keys.Expand) + "  " + hint(keys.Clear)
	}
	return hint(keys.Up) + "  " + hint(keys.Down) + "  " + hint(keys.Expand) + "  " +
		hint(keys.Resolve) + "  " + hint(keys.Clear) + "  " + hint(keys.Quit)
}

func hint(b key.Binding) string {
	h := b.Help()
	return keyStyle.Render(h.Key) + keyDescStyle.Render(":"+h.Desc)
}
