// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the keyboard bindings for the application.
type KeyMap struct {
	Submit     key.Binding
	Newline    key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	Categories key.Binding
	Models     key.Binding
	Refresh    key.Binding
	Clear      key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Help       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "generate"),
		),
		Newline: key.NewBinding(
			key.WithKeys("ctrl+j"),
			key.WithHelp("C-j", "newline"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
		Categories: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "categories"),
		),
		Models: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "models"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "reconnect"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear output"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "help"),
		),
	}
}

// ShortHelp returns the bindings shown in the one-line help footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Cancel, k.Categories, k.Models, k.Quit}
}

// FullHelp returns the grouped bindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Newline, k.Cancel},
		{k.Categories, k.Models, k.Refresh, k.Clear},
		{k.PageUp, k.PageDown},
		{k.Help, k.Quit},
	}
}
