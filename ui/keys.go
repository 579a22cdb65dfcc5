package ui

import "github.com/charmbracelet/bubbles/key"

// Actions are bound to control and function keys so they work while typing
// in the editor or the voice filter.
type keyMap struct {
	Generate  key.Binding
	Preview   key.Binding
	Play      key.Binding
	Stop      key.Binding
	Save      key.Binding
	Copy      key.Binding
	SpeedUp   key.Binding
	SpeedDown key.Binding
	Focus     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Generate:  key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "generate")),
	Preview:   key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "preview voice")),
	Play:      key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "play")),
	Stop:      key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "stop")),
	Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save as")),
	Copy:      key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy path")),
	SpeedUp:   key.NewBinding(key.WithKeys("ctrl+up", "alt+up"), key.WithHelp("ctrl+↑", "faster")),
	SpeedDown: key.NewBinding(key.WithKeys("ctrl+down", "alt+down"), key.WithHelp("ctrl+↓", "slower")),
	Focus:     key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "text/voices")),
	Help:      key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "help")),
	Quit:      key.NewBinding(key.WithKeys("ctrl+c", "ctrl+q"), key.WithHelp("ctrl+q", "quit")),
}

func (k keyMap) short() []key.Binding {
	return []key.Binding{k.Generate, k.Play, k.Stop, k.Preview, k.Save, k.Focus, k.Help}
}
