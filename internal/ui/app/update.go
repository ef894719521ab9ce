// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/promptpad-tui/internal/backend"
	"github.com/morganforge/promptpad-tui/internal/generate"
	"github.com/morganforge/promptpad-tui/internal/prompt"
)

// Update is the Bubble Tea update entry point.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m, m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamEventMsg:
		return m.handleStreamEvent(msg)

	case StreamClosedMsg:
		return m, nil

	case StreamTickMsg:
		return m, m.handleStreamTick()

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case ConnectivityMsg:
		m.statusBar.SetConnectivity(msg.State)
		return m, nil

	case ModelsLoadedMsg:
		m.infoLine = ""
		if msg.Err != nil {
			m.errLine = humanMessage(msg.Err)
			return m, nil
		}
		m.openModelPicker(msg.Models)
		return m, nil

	case MarkdownRenderedMsg:
		return m, m.handleMarkdownRendered(msg)

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		m.statusBar.SetBackend(m.cfg.Backend)
		m.statusBar.SetModel(m.cfg.ActiveModel())
		m.infoLine = "config reloaded"
		return m, nil
	}

	return m, m.updateFocused(msg)
}

// handleResize recomputes the layout for a new terminal size.
func (m *Model) handleResize(msg tea.WindowSizeMsg) tea.Cmd {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.statusBar.SetWidth(msg.Width)

	m.input.SetWidth(msg.Width - 4)

	vh := m.viewportHeight()
	if !m.ready {
		m.output = viewport.New(msg.Width, vh)
		m.ready = true
		m.refreshViewport()
	} else {
		m.output.Width = msg.Width
		m.output.Height = vh
	}

	if m.mode != modeInput {
		m.picker.SetSize(msg.Width, m.pickerHeight())
	}
	return nil
}

// viewportHeight is the rows left for output after the fixed chrome:
// header, input container, message line, status bar.
func (m *Model) viewportHeight() int {
	h := m.height - 1 - (m.input.Height() + 2) - 1 - 1
	if h < 1 {
		h = 1
	}
	return h
}

// handleKey routes key presses by focus mode.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.manager.Cancel()
		return m, tea.Quit
	}

	if m.mode != modeInput {
		return m.handlePickerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keys.Newline):
		m.input.InsertString("\n")
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if m.streaming {
			// Quiet cancel: the aborted event is not surfaced as an error
			m.manager.Cancel()
			return m, nil
		}
		m.errLine = ""
		m.infoLine = ""
		return m, nil

	case key.Matches(msg, m.keys.Categories):
		m.openCategoryPicker()
		return m, nil

	case key.Matches(msg, m.keys.Models):
		m.infoLine = "loading models..."
		return m, loadModels(m.backend)

	case key.Matches(msg, m.keys.Refresh):
		m.supervisor.Refresh()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.text = ""
		m.rendered = ""
		m.errLine = ""
		m.infoLine = ""
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.output.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.output.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handlePickerKey drives the category and model pickers.
func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.picker.FilterState() == list.Unfiltered {
			m.mode = modeInput
			return m, nil
		}
	case "enter":
		switch item := m.picker.SelectedItem().(type) {
		case categoryItem:
			m.cfg.Category = item.cat.ID
			m.infoLine = fmt.Sprintf("category: %s", item.cat.Name)
		case modelItem:
			m.cfg.SetActiveModel(item.info.Name)
			m.statusBar.SetModel(item.info.Name)
			m.infoLine = fmt.Sprintf("model: %s", item.info.Name)
		}
		m.mode = modeInput
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

// submit starts a generation from the current input.
func (m *Model) submit() tea.Cmd {
	userInput := strings.TrimSpace(m.input.Value())

	system, err := prompt.Render(m.cfg.Category)
	if err != nil {
		m.errLine = humanMessage(err)
		return nil
	}

	session, events, err := m.manager.Start(context.Background(), generate.Request{
		Model:        m.cfg.ActiveModel(),
		SystemPrompt: system,
		UserInput:    userInput,
	})
	if err != nil {
		m.errLine = humanMessage(err)
		return nil
	}

	m.session = session
	m.events = events
	m.buffer.Reset()
	m.text = ""
	m.rendered = ""
	m.errLine = ""
	m.infoLine = ""
	m.streaming = true
	m.input.Reset()
	m.statusBar.SetActivity("streaming")
	m.refreshViewport()

	return tea.Batch(
		waitForEvent(session.ID(), events),
		streamTickCmd(),
		m.spin.Tick,
	)
}

// handleStreamEvent processes one session event and re-arms the listener.
func (m *Model) handleStreamEvent(msg StreamEventMsg) (tea.Model, tea.Cmd) {
	if m.session == nil || msg.SessionID != m.session.ID() {
		// Stale event from a replaced session
		return m, nil
	}

	ev := msg.Event
	switch {
	case ev.Done:
		return m, m.finishStream()

	case ev.Err != nil:
		m.flushAll()
		m.streaming = false
		m.statusBar.SetActivity(m.session.State().String())
		if backend.KindOf(ev.Err) != backend.KindAborted {
			m.errLine = humanMessage(ev.Err)
		}
		return m, waitForEvent(msg.SessionID, m.events)

	default:
		m.buffer.Write(ev.Fragment)
		return m, waitForEvent(msg.SessionID, m.events)
	}
}

// finishStream handles normal completion.
func (m *Model) finishStream() tea.Cmd {
	m.flushAll()
	m.streaming = false
	m.statusBar.SetActivity("done")
	m.infoLine = fmt.Sprintf("completed in %s", m.session.Duration().Round(time.Millisecond))

	var cmds []tea.Cmd
	cmds = append(cmds, waitForEvent(m.session.ID(), m.events))
	if m.cfg.UI.RenderMarkdown && m.text != "" {
		cmds = append(cmds, renderMarkdown(m.session.ID(), m.text, m.width-2))
	}
	return tea.Batch(cmds...)
}

// handleStreamTick flushes buffered fragments and re-arms the tick while
// the stream is live.
func (m *Model) handleStreamTick() tea.Cmd {
	if content, ok := m.buffer.Flush(); ok {
		m.text += content
		m.refreshViewport()
	}
	if !m.streaming {
		return nil
	}
	return streamTickCmd()
}

// handleMarkdownRendered swaps in the glamour-rendered output.
func (m *Model) handleMarkdownRendered(msg MarkdownRenderedMsg) tea.Cmd {
	if m.session == nil || msg.SessionID != m.session.ID() {
		return nil
	}
	if msg.Err != nil {
		// Raw text already on screen; rendering failure is not worth a line
		return nil
	}
	m.rendered = msg.Content
	m.refreshViewport()
	return nil
}

// flushAll drains the buffer so terminal states never lose fragments.
func (m *Model) flushAll() {
	if content, ok := m.buffer.ForceFlush(); ok {
		m.text += content
	}
	m.refreshViewport()
}

// refreshViewport sets the viewport content and follows the tail.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	content := m.text
	if m.rendered != "" {
		content = m.rendered
	}
	m.output.SetContent(content)
	m.output.GotoBottom()
}

// updateFocused forwards unrecognized messages to the focused component.
func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if m.mode == modeInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.picker, cmd = m.picker.Update(msg)
	}
	return cmd
}

// humanMessage renders an error as a single status line.
func humanMessage(err error) string {
	var be *backend.Error
	if !errors.As(err, &be) {
		return err.Error()
	}

	switch be.Kind {
	case backend.KindValidation:
		return be.Message
	case backend.KindAuth:
		return "authentication failed: " + be.Message
	case backend.KindRateOrQuota:
		return "rate limited: " + be.Message
	case backend.KindNotFound:
		return "model not found: " + be.Message
	case backend.KindTransport:
		return fmt.Sprintf("cannot connect to %s backend: %s", be.Backend, be.Message)
	default:
		return be.Message
	}
}
