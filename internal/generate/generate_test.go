// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/morganforge/promptpad-tui/internal/backend"
)

// collectEvents drains the event channel, returning fragments and the
// terminal event.
func collectEvents(t *testing.T, events <-chan Event) ([]string, Event) {
	t.Helper()
	var fragments []string
	var terminal Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return fragments, terminal
			}
			if ev.Fragment != "" {
				fragments = append(fragments, ev.Fragment)
			}
			if ev.Err != nil || ev.Done {
				terminal = ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func ndjsonLine(text string, done bool) string {
	return fmt.Sprintf(`{"response":%q,"done":%v}`+"\n", text, done)
}

func TestStartValidation(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	m := NewManager(backend.NewLocal(server.URL))

	tests := []struct {
		name string
		req  Request
	}{
		{"empty input", Request{Model: "m", UserInput: ""}},
		{"whitespace input", Request{Model: "m", UserInput: "   \n\t "}},
		{"no model", Request{Model: "", UserInput: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := m.Start(context.Background(), tt.req)
			if err == nil {
				t.Fatal("Start() error = nil, want validation error")
			}
			if backend.KindOf(err) != backend.KindValidation {
				t.Errorf("KindOf() = %v, want %v", backend.KindOf(err), backend.KindValidation)
			}
		})
	}

	if hits.Load() != 0 {
		t.Errorf("server hits = %d, want 0 (validation must precede network)", hits.Load())
	}
}

func TestStreamCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ndjsonLine("Hello", false)))
		w.Write([]byte(ndjsonLine(" world", false)))
		w.Write([]byte(ndjsonLine("!", true)))
	}))
	defer server.Close()

	m := NewManager(backend.NewLocal(server.URL))
	session, events, err := m.Start(context.Background(), Request{Model: "m", UserInput: "hi"})
	require.NoError(t, err)

	fragments, terminal := collectEvents(t, events)

	require.Equal(t, []string{"Hello", " world", "!"}, fragments)
	require.True(t, terminal.Done)
	require.Equal(t, StateCompleted, session.State())
	require.Equal(t, "Hello world!", session.Text())
	require.NotEmpty(t, session.ID())
}

func TestCancelPreservesPartialOutput(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ndjsonLine("partial", false)))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	m := NewManager(backend.NewLocal(server.URL))
	session, events, err := m.Start(context.Background(), Request{Model: "m", UserInput: "hi"})
	require.NoError(t, err)

	// Wait for the first fragment before cancelling
	ev := <-events
	require.Equal(t, "partial", ev.Fragment)

	m.Cancel()
	_, terminal := collectEvents(t, events)

	require.Error(t, terminal.Err)
	require.Equal(t, backend.KindAborted, backend.KindOf(terminal.Err))
	require.Equal(t, StateAborted, session.State())
	require.Equal(t, "partial", session.Text(), "partial output must survive an abort")
}

func TestCancelIsIdempotent(t *testing.T) {
	m := NewManager(backend.NewLocal("http://127.0.0.1:1"))

	// No session yet
	m.Cancel()
	m.Cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ndjsonLine("x", true)))
	}))
	defer server.Close()

	m = NewManager(backend.NewLocal(server.URL))
	session, events, err := m.Start(context.Background(), Request{Model: "m", UserInput: "hi"})
	require.NoError(t, err)
	collectEvents(t, events)
	require.Equal(t, StateCompleted, session.State())

	// After completion
	m.Cancel()
	m.Cancel()
	require.Equal(t, StateCompleted, session.State(), "cancel after completion must not change state")
}

func TestStartReplacesActiveSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ndjsonLine("first", false)))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
			w.Write([]byte(ndjsonLine("", true)))
		}
	}))
	defer server.Close()

	m := NewManager(backend.NewLocal(server.URL))

	first, firstEvents, err := m.Start(context.Background(), Request{Model: "m", UserInput: "one"})
	require.NoError(t, err)
	ev := <-firstEvents
	require.Equal(t, "first", ev.Fragment)

	second, secondEvents, err := m.Start(context.Background(), Request{Model: "m", UserInput: "two"})
	require.NoError(t, err)

	_, terminal := collectEvents(t, firstEvents)
	require.Equal(t, backend.KindAborted, backend.KindOf(terminal.Err))
	require.Equal(t, StateAborted, first.State())
	require.Equal(t, "first", first.Text())

	secondEv := <-secondEvents
	require.Equal(t, "first", secondEv.Fragment)
	require.NotEqual(t, first.ID(), second.ID())
	m.Cancel()
}

func TestErrorResponseClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"key revoked"}}`))
	}))
	defer server.Close()

	m := NewManager(backend.NewHosted(server.URL, "stale-key"))
	session, events, err := m.Start(context.Background(), Request{Model: "m", UserInput: "hi"})
	require.NoError(t, err)

	_, terminal := collectEvents(t, events)
	require.Error(t, terminal.Err)
	require.True(t, errors.Is(terminal.Err, backend.ErrAuthFailed))
	require.Contains(t, terminal.Err.Error(), "key revoked")
	require.Equal(t, StateFailed, session.State())
}

func TestStreamExhaustionCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ndjsonLine("some", false)))
		// Close cleanly without the done sentinel
	}))
	defer server.Close()

	m := NewManager(backend.NewLocal(server.URL))
	session, events, err := m.Start(context.Background(), Request{Model: "m", UserInput: "hi"})
	require.NoError(t, err)

	fragments, terminal := collectEvents(t, events)
	require.Equal(t, []string{"some"}, fragments)
	require.True(t, terminal.Done, "clean end of stream is normal termination")
	require.NoError(t, terminal.Err)
	require.Equal(t, StateCompleted, session.State())
	require.Equal(t, "some", session.Text())
}

// signalOnCloseBody signals when the stream goroutine releases the body.
type signalOnCloseBody struct {
	io.Reader
	closed chan struct{}
}

func (b *signalOnCloseBody) Close() error {
	close(b.closed)
	return nil
}

func TestAbandonedSessionGoroutineExits(t *testing.T) {
	// More fragments than the event buffer holds, never drained
	var lines strings.Builder
	for i := 0; i < eventBufferSize+16; i++ {
		lines.WriteString(ndjsonLine("x", false))
	}

	closed := make(chan struct{})
	m := NewManager(backend.NewLocal("http://127.0.0.1:1"))
	m.do = func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       &signalOnCloseBody{Reader: strings.NewReader(lines.String()), closed: closed},
		}, nil
	}

	_, events, err := m.Start(context.Background(), Request{Model: "m", UserInput: "hi"})
	require.NoError(t, err)

	// Let the producer fill the buffer and block on the next send
	require.Eventually(t, func() bool { return len(events) == eventBufferSize },
		2*time.Second, 5*time.Millisecond)

	m.Cancel()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream goroutine did not exit after cancel with an undrained event channel")
	}
}

func TestSSEBackendSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	m := NewManager(backend.NewHosted(server.URL, "key"))
	session, events, err := m.Start(context.Background(), Request{Model: "m", UserInput: "hi", SystemPrompt: "sys"})
	require.NoError(t, err)

	fragments, terminal := collectEvents(t, events)
	require.Equal(t, []string{"Hi", " there"}, fragments)
	require.True(t, terminal.Done)
	require.Equal(t, "Hi there", session.Text())
}

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateStreaming, "streaming"},
		{StateCompleted, "completed"},
		{StateAborted, "aborted"},
		{StateFailed, "failed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
