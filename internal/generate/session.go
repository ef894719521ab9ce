// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generate runs streaming generation sessions against a backend,
// enforcing single-flight execution, validation, and cancellation.
package generate

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/morganforge/promptpad-tui/internal/backend"
)

// Fixed sampling defaults applied when the request leaves them zero.
const (
	// DefaultTemperature is the sampling temperature for all generations.
	DefaultTemperature = 0.7

	// DefaultMaxTokens bounds the output length of a generation.
	DefaultMaxTokens = 2048
)

// State is a session's position in its lifecycle.
type State int

const (
	// StateIdle means the session exists but has not contacted the backend.
	StateIdle State = iota

	// StateStreaming means fragments are arriving.
	StateStreaming

	// StateCompleted means the stream terminated normally.
	StateCompleted

	// StateAborted means the user cancelled; accumulated text is preserved.
	StateAborted

	// StateFailed means the stream ended with an error; accumulated text is
	// preserved.
	StateFailed
)

// String returns the state name for logging and display.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "failed"
	}
}

// Terminal reports whether the session can no longer change.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateFailed
}

// Request describes one generation.
type Request struct {
	Model        string
	SystemPrompt string
	UserInput    string
}

// validate rejects a request before any network activity.
func (r Request) validate() error {
	if strings.TrimSpace(r.UserInput) == "" {
		return &backend.Error{Kind: backend.KindValidation, Message: "input is empty"}
	}
	if r.Model == "" {
		return &backend.Error{Kind: backend.KindValidation, Message: "no model selected"}
	}
	return nil
}

// Event is one update from a running session. Exactly one terminal event
// is emitted per session: Done set on success, Err set otherwise.
type Event struct {
	Fragment string
	Err      error
	Done     bool
}

// Session is a single generation. All accessors are safe for concurrent
// use; the write side is owned by the manager's stream goroutine.
type Session struct {
	id      string
	model   string
	started time.Time

	mu       sync.Mutex
	text     strings.Builder
	state    State
	err      error
	finished time.Time
}

// newSession creates an idle session for the given request.
func newSession(req Request) *Session {
	return &Session{
		id:      uuid.NewString(),
		model:   req.Model,
		started: time.Now(),
		state:   StateIdle,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Model returns the model this session generates with.
func (s *Session) Model() string {
	return s.model
}

// Text returns a snapshot of all accumulated output. After an abort or
// failure this still returns everything received up to that point.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Duration returns how long the session ran, or has been running.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished.IsZero() {
		return time.Since(s.started)
	}
	return s.finished.Sub(s.started)
}

// append records a fragment. Fragments arriving after a terminal state are
// dropped; a cancelled stream may still be draining its body.
func (s *Session) append(fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = StateStreaming
	s.text.WriteString(fragment)
	return true
}

// finish moves the session to a terminal state once. Later calls lose.
func (s *Session) finish(state State, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = state
	s.err = err
	s.finished = time.Now()
	return true
}
