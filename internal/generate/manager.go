// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/morganforge/promptpad-tui/internal/backend"
)

// readBufferSize is the chunk size for reading streaming response bodies.
const readBufferSize = 4096

// eventBufferSize is the event channel capacity. Large enough that a slow
// consumer batches rather than stalls the network read.
const eventBufferSize = 64

// Manager runs generation sessions against one backend, enforcing at most
// one in flight. Starting a new session cancels the previous one.
type Manager struct {
	backend   backend.Backend
	cancelMgr cancelManager

	// do executes the streaming request. Tests swap it; production uses
	// the shared pooled streaming client.
	do func(*http.Request) (*http.Response, error)
}

// NewManager creates a manager for the given backend.
func NewManager(b backend.Backend) *Manager {
	return &Manager{
		backend: b,
		do:      backend.Do,
	}
}

// Start validates the request and begins a streaming generation. Any
// session still in flight is cancelled first. The returned channel carries
// every fragment in arrival order followed by exactly one terminal event,
// then closes. Validation failures return before any network activity.
func (m *Manager) Start(ctx context.Context, req Request) (*Session, <-chan Event, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}

	session := newSession(req)
	streamCtx, cancel := context.WithCancel(ctx)

	// Cancel-and-replace: set() tears down the previous session's context.
	m.cancelMgr.set(cancel)

	params := backend.GenerationParams{
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		UserInput:    req.UserInput,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
	}

	events := make(chan Event, eventBufferSize)
	go m.stream(streamCtx, cancel, session, params, events)

	return session, events, nil
}

// Cancel aborts the in-flight session, if any. Safe to call at any time,
// any number of times.
func (m *Manager) Cancel() {
	m.cancelMgr.cancel()
}

// stream performs the single outbound request for a session and pumps
// decoder fragments into the event channel.
func (m *Manager) stream(ctx context.Context, cancel context.CancelFunc, s *Session, params backend.GenerationParams, events chan<- Event) {
	defer close(events)
	defer cancel()

	req, err := m.backend.StreamRequest(ctx, params)
	if err != nil {
		m.fail(ctx, s, events, err)
		return
	}

	resp, err := m.do(req)
	if err != nil {
		m.fail(ctx, s, events, m.classify(ctx, err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, backend.MaxResponseSize))
		m.fail(ctx, s, events, m.backend.HandleErrorResponse(resp.StatusCode, body))
		return
	}

	decoder := m.backend.NewDecoder()
	buf := make([]byte, readBufferSize)

	for {
		n, readErr := resp.Body.Read(buf)

		if n > 0 {
			fragments, feedErr := decoder.Feed(buf[:n])
			if feedErr != nil {
				m.fail(ctx, s, events, m.classify(ctx, feedErr))
				return
			}
			for _, fragment := range fragments {
				if !s.append(fragment) {
					return
				}
				select {
				case events <- Event{Fragment: fragment}:
				case <-ctx.Done():
					m.fail(ctx, s, events, m.classify(ctx, ctx.Err()))
					return
				}
			}
			if decoder.Done() {
				m.complete(ctx, s, events)
				return
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				// Clean end of stream is normal termination, with or
				// without the framing sentinel
				m.complete(ctx, s, events)
				return
			}
			m.fail(ctx, s, events, m.classify(ctx, readErr))
			return
		}
	}
}

// complete moves the session to its successful terminal state and emits
// the terminal event.
func (m *Manager) complete(ctx context.Context, s *Session, events chan<- Event) {
	if s.finish(StateCompleted, nil) {
		log.Printf("generation %s completed: %d chars in %v", s.id, len(s.Text()), s.Duration())
		emitTerminal(ctx, events, Event{Done: true})
	}
}

// fail moves the session to its terminal error state and emits the
// terminal event. Accumulated text stays readable via Session.Text.
func (m *Manager) fail(ctx context.Context, s *Session, events chan<- Event, err error) {
	state := StateFailed
	if backend.KindOf(err) == backend.KindAborted {
		state = StateAborted
	}
	if s.finish(state, err) {
		log.Printf("generation %s %s: %v (kept %d chars)", s.id, state, err, len(s.Text()))
		emitTerminal(ctx, events, Event{Err: err})
	}
}

// emitTerminal delivers the terminal event without wedging the stream
// goroutine. A replaced session whose buffer is full has no reader left;
// once its context is gone the event is dropped and the channel close
// signals termination instead.
func emitTerminal(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	default:
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
}

// classify wraps transport-level failures with a kind. Cancellation wins
// over whatever error the aborted read surfaced.
func (m *Manager) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return &backend.Error{Kind: backend.KindAborted, Backend: m.backend.Name(),
			Message: "generation cancelled", Cause: context.Canceled}
	}

	var be *backend.Error
	if errors.As(err, &be) {
		return err
	}

	return &backend.Error{Kind: backend.KindTransport, Backend: m.backend.Name(),
		Message: "connection failed", Cause: err}
}
