// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend abstracts the two generation backend families behind one
// interface: a local inference server speaking newline-delimited JSON and a
// hosted chat-completions API speaking Server-Sent Events.
package backend

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/morganforge/promptpad-tui/internal/stream"
)

// Configuration constants shared by both backend families.
const (
	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// ProbeTimeout bounds a single connectivity probe.
	ProbeTimeout = 5 * time.Second

	// MaxResponseSize is the maximum allowed response body size for
	// non-streaming responses.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	userAgent = "promptpad/0.3.0"
)

var (
	// sharedHTTPClient serves probes and model listing. Connection pooling
	// reduces TCP handshake overhead; TLS 1.2+ enforced.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient serves streaming requests. No timeout; the
	// request lifetime is controlled via context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// GenerationParams carries everything a backend needs to build one
// streaming generation request.
type GenerationParams struct {
	Model        string
	SystemPrompt string
	UserInput    string
	Temperature  float64
	MaxTokens    int
}

// ModelInfo describes a model the backend can serve.
type ModelInfo struct {
	ID   string
	Name string
}

// Backend is one generation backend family. Implementations are stateless
// with respect to generations; every call builds from the configured base
// URL and credential.
type Backend interface {
	// Name identifies the backend family for logging and error messages.
	Name() string

	// StreamRequest builds the HTTP request for one streaming generation.
	// The caller owns execution and response handling.
	StreamRequest(ctx context.Context, params GenerationParams) (*http.Request, error)

	// NewDecoder returns a fresh decoder for this backend's wire framing.
	NewDecoder() stream.Decoder

	// Probe checks reachability without side effects. A nil return means
	// the backend answered in a healthy way.
	Probe(ctx context.Context) error

	// HandleErrorResponse maps a non-200 response to a classified error,
	// preserving the backend's own message verbatim when present.
	HandleErrorResponse(statusCode int, body []byte) error

	// ListModels returns the models the backend reports as available.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// Do executes a streaming request with the shared streaming client.
// Exposed so the generate package uses pooled connections without owning
// a client.
func Do(req *http.Request) (*http.Response, error) {
	return sharedStreamingClient.Do(req)
}

// readResponse reads a response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// KeyFingerprint returns a short identifier for a credential safe for
// logs and display. Never log the key itself.
func KeyFingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}
