package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the interview.
type KeyMap struct {
	Save key.Binding
	Next key.Binding
	Prev key.Binding
	Quit key.Binding
}

// DefaultKeyMap provides the default key bindings.
var DefaultKeyMap = KeyMap{
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save answer"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next question"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "previous"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "quit"),
	),
}

// ShortHelp renders the bindings as a single help line.
func (k KeyMap) ShortHelp() string {
	var out string
	for i, b := range []key.Binding{k.Save, k.Next, k.Prev, k.Quit} {
		if i > 0 {
			out += "  "
		}
		out += b.Help().Key + " " + b.Help().Desc
	}
	return out
}
