// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/morganforge/promptpad-tui/internal/backend"
	"github.com/morganforge/promptpad-tui/internal/generate"
)

// waitForEvent blocks on the session's event channel and delivers the next
// event as a message. Re-issued after each event until the channel closes.
func waitForEvent(sessionID string, events <-chan generate.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return StreamClosedMsg{SessionID: sessionID}
		}
		return StreamEventMsg{SessionID: sessionID, Event: ev}
	}
}

// loadModels fetches the backend's model list for the picker.
func loadModels(b backend.Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backend.DefaultTimeout)
		defer cancel()

		models, err := b.ListModels(ctx)
		return ModelsLoadedMsg{Models: models, Err: err}
	}
}

// renderMarkdown re-renders a completed response as markdown. Runs off the
// update loop; glamour rendering is too slow for per-fragment use.
func renderMarkdown(sessionID, content string, width int) tea.Cmd {
	return func() tea.Msg {
		if width < 20 {
			width = 80
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return MarkdownRenderedMsg{SessionID: sessionID, Err: err}
		}

		rendered, err := renderer.Render(content)
		if err != nil {
			return MarkdownRenderedMsg{SessionID: sessionID, Err: err}
		}
		return MarkdownRenderedMsg{SessionID: sessionID, Content: rendered}
	}
}
