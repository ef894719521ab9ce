// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable TUI components for promptpad.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/promptpad-tui/internal/connectivity"
	"github.com/morganforge/promptpad-tui/internal/ui/styles"
	"github.com/morganforge/promptpad-tui/internal/util"
)

// StatusBar renders the bottom status bar: connectivity, backend, model,
// and the active session state.
type StatusBar struct {
	theme *styles.Theme
	width int

	conn     connectivity.State
	backend  string
	model    string
	activity string
}

// NewStatusBar creates a status bar with the given theme.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		theme: theme,
		conn:  connectivity.State{Status: connectivity.StatusUnknown},
	}
}

// SetWidth updates the available width.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// SetConnectivity updates the connectivity segment.
func (s *StatusBar) SetConnectivity(state connectivity.State) {
	s.conn = state
}

// SetBackend updates the backend name segment.
func (s *StatusBar) SetBackend(name string) {
	s.backend = name
}

// SetModel updates the model name segment.
func (s *StatusBar) SetModel(model string) {
	s.model = model
}

// SetActivity updates the session activity segment (e.g. "streaming").
func (s *StatusBar) SetActivity(activity string) {
	s.activity = activity
}

// connectionIcon returns the icon for a connectivity status.
func connectionIcon(status connectivity.Status) string {
	switch status {
	case connectivity.StatusConnected:
		return "●"
	case connectivity.StatusDisconnected:
		return "✗"
	default:
		return "◌"
	}
}

// connectionLabel returns the text for the connectivity segment.
func (s *StatusBar) connectionLabel() string {
	switch s.conn.Status {
	case connectivity.StatusConnected:
		return "connected"
	case connectivity.StatusDisconnected:
		if s.conn.CredentialRejected() {
			return "key rejected"
		}
		if s.conn.RetryCount > 0 {
			return fmt.Sprintf("offline (retry %d)", s.conn.RetryCount)
		}
		return "offline"
	default:
		return "checking"
	}
}

// connectionStyle returns the style for the connectivity segment.
func (s *StatusBar) connectionStyle() lipgloss.Style {
	switch s.conn.Status {
	case connectivity.StatusConnected:
		return s.theme.Connected
	case connectivity.StatusDisconnected:
		return s.theme.Disconnected
	default:
		return s.theme.Checking
	}
}

// View renders the status bar for the current width.
func (s *StatusBar) View() string {
	if s.width <= 0 {
		return ""
	}

	conn := s.connectionStyle().Render(
		connectionIcon(s.conn.Status) + " " + s.connectionLabel())

	segments := []string{conn}

	mode := s.theme.GetLayoutMode()
	if mode != styles.LayoutNarrow {
		if s.backend != "" {
			segments = append(segments, s.backend)
		}
		if s.model != "" {
			model := s.model
			if mode == styles.LayoutMedium {
				model = util.TruncateWidth(model, 24)
			}
			segments = append(segments, s.theme.ModelName.Render(model))
		}
	}
	if s.activity != "" {
		segments = append(segments, s.activity)
	}

	content := strings.Join(segments, "  │  ")

	return s.theme.StatusBar.Width(s.width).Render(content)
}
