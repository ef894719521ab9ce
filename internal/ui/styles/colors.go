// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the promptpad TUI.
package styles

import "github.com/charmbracelet/lipgloss"

// Core palette. Adaptive colors pick the variant for the terminal
// background.
var (
	Purple  = lipgloss.AdaptiveColor{Light: "#6B46C1", Dark: "#A78BFA"}
	Cyan    = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#67E8F9"}
	Emerald = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#6EE7B7"}
	Amber   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"}
	Rose    = lipgloss.AdaptiveColor{Light: "#BE123C", Dark: "#FDA4AF"}

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#F9FAFB"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#D1D5DB"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}

	Surface    = lipgloss.AdaptiveColor{Light: "#F3F4F6", Dark: "#1F2937"}
	SurfaceDim = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#111827"}
	Overlay    = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#374151"}
)
