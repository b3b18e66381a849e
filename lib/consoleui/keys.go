// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the console's key bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	// Bottom jumps to the newest output and resumes following it.
	Bottom key.Binding

	ToggleView key.Binding // Switch between output and categories.
	Stop       key.Binding
	Restart    key.Binding
	Quit       key.Binding
}

// DefaultKeyMap uses vim-style movement alongside the arrow keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("C-u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("C-d", "page down"),
	),
	Top: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "follow"),
	),
	ToggleView: key.NewBinding(
		key.WithKeys("tab", "c"),
		key.WithHelp("tab", "categories"),
	),
	Stop: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "stop"),
	),
	Restart: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rebuild"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// shortHelp lists the bindings shown in the footer.
func (keys KeyMap) shortHelp() []key.Binding {
	return []key.Binding{keys.Bottom, keys.ToggleView, keys.Stop, keys.Restart, keys.Quit}
}
