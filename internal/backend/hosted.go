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
// HOSTED BACKEND
// =============================================================================

// DefaultHostedURL is the default base URL for the hosted chat-completions
// API.
const DefaultHostedURL = "https://openrouter.ai/api/v1"

// chatMessage is a single message in a chat-completions request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the hosted API's generation payload.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// hostedModelsResponse is the hosted API's model listing payload.
type hostedModelsResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

// Hosted is the hosted chat-completions family. Responses stream as
// Server-Sent Events terminated by a [DONE] sentinel.
type Hosted struct {
	baseURL string
	apiKey  string
}

// NewHosted creates a hosted backend. An empty baseURL uses
// DefaultHostedURL. The key may be empty; requests then fail with
// ErrNoAPIKey before any network call.
func NewHosted(baseURL, apiKey string) *Hosted {
	if baseURL == "" {
		baseURL = DefaultHostedURL
	}
	return &Hosted{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
	}
}

// Name implements Backend.
func (h *Hosted) Name() string {
	return "hosted"
}

// IsConfigured returns true when an API key is set.
func (h *Hosted) IsConfigured() bool {
	return h.apiKey != ""
}

// setHeaders sets the required headers for hosted API requests.
func (h *Hosted) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// StreamRequest implements Backend.
func (h *Hosted) StreamRequest(ctx context.Context, params GenerationParams) (*http.Request, error) {
	if !h.IsConfigured() {
		return nil, &Error{Kind: KindAuth, Backend: h.Name(), Message: "API key not configured", Cause: ErrNoAPIKey}
	}

	messages := make([]chatMessage, 0, 2)
	if params.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: params.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: params.UserInput})

	reqBody := chatRequest{
		Model:       params.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	h.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	return req, nil
}

// NewDecoder implements Backend.
func (h *Hosted) NewDecoder() stream.Decoder {
	return stream.NewSSE()
}

// Probe implements Backend. GET /models answers without consuming quota;
// a 401 or 403 means the credential is bad, which callers surface
// distinctly from unreachability.
func (h *Hosted) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/models", nil)
	if err != nil {
		return &Error{Kind: KindUnexpected, Backend: h.Name(), Message: "failed to create probe request", Cause: err}
	}
	h.setHeaders(req)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Backend: h.Name(), Message: "server not reachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := readResponse(resp)
	return h.HandleErrorResponse(resp.StatusCode, body)
}

// HandleErrorResponse implements Backend. The hosted API reports errors as
// {"error": {"code": "...", "message": "..."}}.
func (h *Hosted) HandleErrorResponse(statusCode int, body []byte) error {
	msg := ""
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
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

	return &Error{Kind: kind, Backend: h.Name(), Status: statusCode, Message: msg}
}

// ListModels implements Backend using the /models endpoint.
func (h *Hosted) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	h.setHeaders(req)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Backend: h.Name(), Message: "server not reachable", Cause: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, h.HandleErrorResponse(resp.StatusCode, body)
	}

	var modelsResp hostedModelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	models := make([]ModelInfo, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		models = append(models, ModelInfo{ID: m.ID, Name: name})
	}
	return models, nil
}

// KeyFingerprintForDisplay returns the credential fingerprint for status
// display. The key itself never leaves this package.
func (h *Hosted) KeyFingerprintForDisplay() string {
	return KeyFingerprint(h.apiKey)
}
