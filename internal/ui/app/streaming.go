// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app provides the root Bubble Tea model for promptpad.
//
// This file implements the streaming render throttle. Fragments arrive far
// faster than a terminal should repaint, so they are batched in a
// StreamingBuffer and flushed to the viewport on a fixed tick. Batching
// never drops content: every fragment written is eventually flushed.
package app

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// flushInterval is the render tick period while a stream is active.
const flushInterval = 50 * time.Millisecond

// batchSize flushes early when this many fragments accumulate between ticks.
const batchSize = 15

// StreamingBuffer batches stream fragments between render ticks.
//
// Thread-safety: fragments arrive on the Bubble Tea update loop, but the
// buffer is also reset from completion paths, so all operations take a
// mutex.
type StreamingBuffer struct {
	mu        sync.Mutex
	buffer    strings.Builder
	count     int
	lastFlush time.Time
}

// NewStreamingBuffer creates an empty buffer.
func NewStreamingBuffer() *StreamingBuffer {
	return &StreamingBuffer{lastFlush: time.Now()}
}

// Write appends a fragment to the buffer.
func (sb *StreamingBuffer) Write(fragment string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.WriteString(fragment)
	sb.count++
}

// Flush returns accumulated content if a flush is due, either because the
// batch threshold was hit or because the flush interval elapsed.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.buffer.Len() == 0 || !sb.shouldFlushLocked() {
		return "", false
	}
	return sb.takeLocked()
}

// ForceFlush drains the buffer regardless of thresholds. Called when a
// stream reaches a terminal state so no fragment is left unrendered.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.buffer.Len() == 0 {
		return "", false
	}
	return sb.takeLocked()
}

// Reset clears the buffer without flushing. Used when a new session starts.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.Reset()
	sb.count = 0
	sb.lastFlush = time.Now()
}

// Pending returns the number of fragments waiting to be flushed.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.count
}

func (sb *StreamingBuffer) shouldFlushLocked() bool {
	if sb.count >= batchSize {
		return true
	}
	return time.Since(sb.lastFlush) >= flushInterval
}

func (sb *StreamingBuffer) takeLocked() (string, bool) {
	content := sb.buffer.String()
	sb.buffer.Reset()
	sb.count = 0
	sb.lastFlush = time.Now()
	return content, true
}

// streamTickCmd schedules the next render tick while streaming.
func streamTickCmd() tea.Cmd {
	return tea.Tick(flushInterval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
