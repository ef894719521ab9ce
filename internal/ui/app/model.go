// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/promptpad-tui/internal/backend"
	"github.com/morganforge/promptpad-tui/internal/config"
	"github.com/morganforge/promptpad-tui/internal/connectivity"
	"github.com/morganforge/promptpad-tui/internal/generate"
	"github.com/morganforge/promptpad-tui/internal/prompt"
	"github.com/morganforge/promptpad-tui/internal/ui/components"
	"github.com/morganforge/promptpad-tui/internal/ui/styles"
)

// mode is the input focus state of the application.
type mode int

const (
	// modeInput is the default state: typing in the input area.
	modeInput mode = iota

	// modeCategoryPicker shows the prompt category list.
	modeCategoryPicker

	// modeModelPicker shows the backend's model list.
	modeModelPicker
)

// categoryItem adapts a prompt category to the bubbles list.
type categoryItem struct {
	cat prompt.Category
}

func (i categoryItem) Title() string       { return i.cat.Name }
func (i categoryItem) Description() string { return i.cat.Description }
func (i categoryItem) FilterValue() string { return i.cat.Name }

// modelItem adapts a backend model to the bubbles list.
type modelItem struct {
	info backend.ModelInfo
}

func (i modelItem) Title() string       { return i.info.Name }
func (i modelItem) Description() string { return i.info.ID }
func (i modelItem) FilterValue() string { return i.info.Name }

// Model is the root Bubble Tea model.
type Model struct {
	cfg   *config.Config
	keys  KeyMap
	theme *styles.Theme

	statusBar *components.StatusBar
	input     textarea.Model
	output    viewport.Model
	spin      spinner.Model
	picker    list.Model
	mode      mode

	backend    backend.Backend
	manager    *generate.Manager
	supervisor *connectivity.Supervisor

	session *generate.Session
	events  <-chan generate.Event
	buffer  *StreamingBuffer

	// text is the raw accumulated output; rendered holds the glamour
	// output once a stream completes with markdown enabled.
	text      string
	rendered  string
	errLine   string
	infoLine  string
	streaming bool

	width  int
	height int
	ready  bool
}

// New creates the root model.
func New(cfg *config.Config, b backend.Backend, mgr *generate.Manager, sup *connectivity.Supervisor) *Model {
	theme := styles.NewTheme()

	input := textarea.New()
	input.Placeholder = "Describe what you want a prompt for..."
	input.ShowLineNumbers = false
	input.SetHeight(3)
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = theme.Spinner

	sb := components.NewStatusBar(theme)
	sb.SetBackend(cfg.Backend)
	sb.SetModel(cfg.ActiveModel())

	return &Model{
		cfg:        cfg,
		keys:       DefaultKeyMap(),
		theme:      theme,
		statusBar:  sb,
		input:      input,
		spin:       spin,
		backend:    b,
		manager:    mgr,
		supervisor: sup,
		buffer:     NewStreamingBuffer(),
	}
}

// Init starts the cursor blink.
func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// categoryName returns the display name of the active category.
func (m *Model) categoryName() string {
	for _, cat := range prompt.Catalog() {
		if cat.ID == m.cfg.Category {
			return cat.Name
		}
	}
	return m.cfg.Category
}

// openCategoryPicker builds and shows the category list.
func (m *Model) openCategoryPicker() {
	items := make([]list.Item, 0, len(prompt.Catalog()))
	for _, cat := range prompt.Catalog() {
		items = append(items, categoryItem{cat: cat})
	}
	m.picker = m.newPicker("Prompt category", items)
	m.mode = modeCategoryPicker
}

// openModelPicker shows the model list delivered by the backend.
func (m *Model) openModelPicker(models []backend.ModelInfo) {
	items := make([]list.Item, 0, len(models))
	for _, info := range models {
		items = append(items, modelItem{info: info})
	}
	m.picker = m.newPicker(fmt.Sprintf("Models (%s)", m.backend.Name()), items)
	m.mode = modeModelPicker
}

func (m *Model) newPicker(title string, items []list.Item) list.Model {
	delegate := list.NewDefaultDelegate()
	l := list.New(items, delegate, m.width, m.pickerHeight())
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = m.theme.PickerTitle
	return l
}

func (m *Model) pickerHeight() int {
	h := m.height - 2
	if h < 5 {
		h = 5
	}
	return h
}
