// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app provides the root Bubble Tea model for promptpad.
//
// This file defines the Bubble Tea message types used by the application:
// streaming events, render ticks, connectivity updates, model lists, and
// config reloads.
package app

import (
	"time"

	"github.com/morganforge/promptpad-tui/internal/backend"
	"github.com/morganforge/promptpad-tui/internal/config"
	"github.com/morganforge/promptpad-tui/internal/connectivity"
	"github.com/morganforge/promptpad-tui/internal/generate"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamEventMsg delivers one event from the active generation session.
type StreamEventMsg struct {
	SessionID string
	Event     generate.Event
}

// StreamClosedMsg signals that the session's event channel has closed.
type StreamClosedMsg struct {
	SessionID string
}

// StreamTickMsg drives the render throttle while streaming. Buffered
// fragments are flushed to the viewport on each tick.
type StreamTickMsg struct {
	Time time.Time
}

// MarkdownRenderedMsg delivers the markdown-rendered form of a completed
// response.
type MarkdownRenderedMsg struct {
	SessionID string
	Content   string
	Err       error
}

// =============================================================================
// BACKEND MESSAGES
// =============================================================================

// ConnectivityMsg carries a connectivity state change. The supervisor posts
// these into the program from its notify callback.
type ConnectivityMsg struct {
	State connectivity.State
}

// ModelsLoadedMsg delivers the backend's model list for the picker.
type ModelsLoadedMsg struct {
	Models []backend.ModelInfo
	Err    error
}

// ConfigReloadedMsg carries a config picked up by the file watcher.
type ConfigReloadedMsg struct {
	Config *config.Config
}
