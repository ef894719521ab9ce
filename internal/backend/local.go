// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/morganforge/promptpad-tui/internal/stream"
)

// =============================================================================
// LOCAL BACKEND
// =============================================================================

// DefaultLocalURL is the default base URL for the local inference server.
const DefaultLocalURL = "http://127.0.0.1:11434"

// generateRequest is the local server's generation payload.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

// generateOptions carries sampling parameters.
type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// tagsResponse is the local server's model listing payload.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Local is the local inference server family. Responses stream as
// newline-delimited JSON with a "response" text field and a "done" flag.
type Local struct {
	baseURL string
}

// NewLocal creates a local backend. An empty baseURL uses DefaultLocalURL.
func NewLocal(baseURL string) *Local {
	if baseURL == "" {
		baseURL = DefaultLocalURL
	}
	return &Local{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name implements Backend.
func (l *Local) Name() string {
	return "local"
}

// StreamRequest implements Backend.
func (l *Local) StreamRequest(ctx context.Context, params GenerationParams) (*http.Request, error) {
	reqBody := generateRequest{
		Model:  params.Model,
		Prompt: params.UserInput,
		System: params.SystemPrompt,
		Stream: true,
		Options: generateOptions{
			Temperature: params.Temperature,
			NumPredict:  params.MaxTokens,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// NewDecoder implements Backend.
func (l *Local) NewDecoder() stream.Decoder {
	return stream.NewNDJSON("response", "done")
}

// Probe implements Backend. The local server answers its base URL with
// 200 when running.
func (l *Local) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL, nil)
	if err != nil {
		return &Error{Kind: KindUnexpected, Backend: l.Name(), Message: "failed to create probe request", Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Backend: l.Name(), Message: "server not reachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Kind: KindUnexpected, Backend: l.Name(), Status: resp.StatusCode,
			Message: fmt.Sprintf("unexpected probe status %d", resp.StatusCode)}
	}
	return nil
}

// HandleErrorResponse implements Backend. The local server reports errors
// as {"error": "message"}.
func (l *Local) HandleErrorResponse(statusCode int, body []byte) error {
	msg := ""
	var envelope localErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		msg = envelope.Error
	} else {
		msg = strings.TrimSpace(string(body))
	}

	kind := KindUnexpected
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuth
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		kind = KindRateOrQuota
	case http.StatusNotFound:
		kind = KindNotFound
	}

	return &Error{Kind: kind, Backend: l.Name(), Status: statusCode, Message: msg}
}

// ListModels implements Backend using the /api/tags endpoint.
func (l *Local) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Backend: l.Name(), Message: "server not reachable", Cause: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, l.HandleErrorResponse(resp.StatusCode, body)
	}

	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	models := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, ModelInfo{ID: m.Name, Name: m.Name})
	}
	return models, nil
}

// EnsureRunning probes the local server and starts it when unreachable,
// waiting until it answers or the deadline passes.
func (l *Local) EnsureRunning(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	err := l.Probe(probeCtx)
	cancel()
	if err == nil {
		return nil
	}
	return l.startServerProcess(ctx)
}
