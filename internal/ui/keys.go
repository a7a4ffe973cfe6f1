package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keyboard shortcuts of the version panel.
type KeyMap struct {
	Open    key.Binding
	Install key.Binding
	Dismiss key.Binding
	Check   key.Binding
	Copy    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Open: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Update panel"),
		),
		Install: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("⏎", "Install"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Dismiss"),
		),
		Check: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Check now"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "Copy report"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "Quit"),
		),
	}
}
