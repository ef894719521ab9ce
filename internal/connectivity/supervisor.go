// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package connectivity tracks backend reachability with probe retries and
// exponential backoff, and pushes state transitions to the UI.
package connectivity

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/morganforge/promptpad-tui/internal/backend"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the tri-state reachability of a backend.
type Status int

const (
	// StatusUnknown means no probe has resolved yet.
	StatusUnknown Status = iota

	// StatusConnected means the last probe succeeded.
	StatusConnected

	// StatusDisconnected means the last probe failed.
	StatusDisconnected
)

// String returns the status name for display and logging.
func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// State is a snapshot of the supervisor's view of the backend.
type State struct {
	Status      Status
	RetryCount  int
	LastErr     error
	LastChecked time.Time
}

// CredentialRejected reports whether the disconnection is a bad credential
// rather than unreachability, so the UI can say so.
func (s State) CredentialRejected() bool {
	return s.Status == StatusDisconnected && errors.Is(s.LastErr, backend.ErrAuthFailed)
}

// =============================================================================
// SUPERVISOR
// =============================================================================

// Backoff and probe timing.
const (
	// retryBaseDelay is the delay after the first failed probe.
	retryBaseDelay = 1 * time.Second

	// retryMaxDelay caps the backoff schedule: 1s, 2s, 4s, then 5s forever.
	retryMaxDelay = 5 * time.Second

	// refreshBurst allows a couple of quick manual refreshes before the
	// rate limiter kicks in.
	refreshBurst = 2
)

// Prober answers a single reachability check. backend.Backend satisfies it.
type Prober interface {
	Probe(ctx context.Context) error
}

// Supervisor owns the probe loop for one backend. It never gives up: a
// disconnected backend is re-probed on a capped exponential backoff until
// Close. All state access is mutex-guarded; the notify callback runs
// outside the lock.
type Supervisor struct {
	prober  Prober
	notify  func(State)
	limiter *rate.Limiter

	// Tests shrink these.
	probeTimeout time.Duration
	baseDelay    time.Duration
	maxDelay     time.Duration

	mu         sync.Mutex
	status     Status
	retryCount int
	lastErr    error
	lastCheck  time.Time
	timer      *time.Timer
	probing    bool
	closed     bool
}

// New creates a supervisor. notify receives every state transition and may
// be nil. The supervisor is idle until Start.
func New(p Prober, notify func(State)) *Supervisor {
	if notify == nil {
		notify = func(State) {}
	}
	return &Supervisor{
		prober:       p,
		notify:       notify,
		limiter:      rate.NewLimiter(rate.Every(time.Second), refreshBurst),
		probeTimeout: backend.ProbeTimeout,
		baseDelay:    retryBaseDelay,
		maxDelay:     retryMaxDelay,
		status:       StatusUnknown,
	}
}

// Start fires the initial probe.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeLocked()
}

// Refresh is a manual connectivity check. It resets the retry counter,
// cancels any pending scheduled retry, and probes immediately. Rapid
// repeats are rate-limited and dropped.
func (s *Supervisor) Refresh() {
	if !s.limiter.Allow() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryCount = 0
	s.stopTimerLocked()
	s.probeLocked()
}

// Current returns a snapshot of the state.
func (s *Supervisor) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close stops the probe loop. Any in-flight probe finishes but its result
// is discarded.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
}

// backoffDelay returns the wait before retry n (0-based): 1s, 2s, 4s,
// then capped at 5s.
func (s *Supervisor) backoffDelay(retry int) time.Duration {
	if retry > 10 {
		return s.maxDelay
	}
	delay := s.baseDelay * time.Duration(1<<uint(retry))
	if delay > s.maxDelay {
		delay = s.maxDelay
	}
	return delay
}

// probeLocked launches a probe goroutine unless one is already in flight.
// Caller holds the lock.
func (s *Supervisor) probeLocked() {
	if s.probing || s.closed {
		return
	}
	s.probing = true

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.probeTimeout)
		err := s.prober.Probe(ctx)
		cancel()
		s.onProbeResult(err)
	}()
}

// onProbeResult records a probe outcome, notifies, and schedules the next
// retry on failure.
func (s *Supervisor) onProbeResult(err error) {
	s.mu.Lock()

	s.probing = false
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.lastCheck = time.Now()
	s.lastErr = err

	if err == nil {
		if s.status != StatusConnected {
			log.Printf("connectivity: connected")
		}
		s.status = StatusConnected
		s.retryCount = 0
	} else {
		s.status = StatusDisconnected
		delay := s.backoffDelay(s.retryCount)
		s.retryCount++
		log.Printf("connectivity: probe failed (retry %d in %v): %v", s.retryCount, delay, err)
		s.scheduleLocked(delay)
	}

	state := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(state)
}

// scheduleLocked arms the retry timer. The supervisor owns exactly one
// timer handle; arming replaces any pending one. Caller holds the lock.
func (s *Supervisor) scheduleLocked(delay time.Duration) {
	s.stopTimerLocked()
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.probeLocked()
	})
}

// stopTimerLocked cancels the pending retry, if any. Caller holds the lock.
func (s *Supervisor) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// snapshotLocked builds a State. Caller holds the lock.
func (s *Supervisor) snapshotLocked() State {
	return State{
		Status:      s.status,
		RetryCount:  s.retryCount,
		LastErr:     s.lastErr,
		LastChecked: s.lastCheck,
	}
}
