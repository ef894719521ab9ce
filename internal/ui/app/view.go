// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the full screen.
func (m *Model) View() string {
	if !m.ready {
		return "starting..."
	}

	if m.mode != modeInput {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.picker.View(),
			m.statusBar.View(),
		)
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.outputView())
	b.WriteString("\n")
	b.WriteString(m.messageView())
	b.WriteString("\n")
	b.WriteString(m.theme.InputContainer.Width(m.width - 2).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.statusBar.View())
	return b.String()
}

// headerView is the single title row.
func (m *Model) headerView() string {
	title := m.theme.Header.Render("promptpad")
	category := m.theme.InfoLine.Render("category: " + m.categoryName())
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", category)
}

// outputView is the streamed response area.
func (m *Model) outputView() string {
	if m.text == "" && m.rendered == "" && !m.streaming {
		placeholder := m.theme.Placeholder.Render(
			"Press Enter to generate a prompt. C-t picks a category, C-o a model.")
		return lipgloss.Place(m.width, m.viewportHeight(),
			lipgloss.Center, lipgloss.Center, placeholder)
	}
	return m.output.View()
}

// messageView is the one-line feedback row: spinner while streaming,
// otherwise the error or info line.
func (m *Model) messageView() string {
	switch {
	case m.streaming:
		return m.theme.InfoLine.Render(m.spin.View() + " generating...")
	case m.errLine != "":
		return m.theme.ErrorLine.Render(m.errLine)
	case m.infoLine != "":
		return m.theme.InfoLine.Render(m.infoLine)
	default:
		return ""
	}
}
