// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application. It detects the
// terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// CONTAINER AND HEADER STYLES
	// ==========================================================================

	App    lipgloss.Style
	Header lipgloss.Style
	Title  lipgloss.Style

	// ==========================================================================
	// INPUT AND OUTPUT STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	Output         lipgloss.Style
	Placeholder    lipgloss.Style

	// ==========================================================================
	// PICKER STYLES
	// ==========================================================================

	PickerTitle    lipgloss.Style
	PickerItem     lipgloss.Style
	PickerSelected lipgloss.Style
	PickerDesc     lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	Connected    lipgloss.Style
	Disconnected lipgloss.Style
	Checking     lipgloss.Style
	ModelName    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// FEEDBACK STYLES
	// ==========================================================================

	Spinner   lipgloss.Style
	ErrorLine lipgloss.Style
	InfoLine  lipgloss.Style
}

// NewTheme creates a theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		Padding(0, 1)

	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Output = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.Placeholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.PickerTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.PickerItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.PickerSelected = lipgloss.NewStyle().
		Background(Purple).
		Foreground(SurfaceDim).
		Bold(true).
		Padding(0, 1)

	t.PickerDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.Connected = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.Disconnected = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.Checking = lipgloss.NewStyle().
		Foreground(Amber)

	t.ModelName = lipgloss.NewStyle().
		Foreground(Cyan)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ErrorLine = lipgloss.NewStyle().
		Foreground(Rose)

	t.InfoLine = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}
