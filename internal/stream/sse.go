// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
)

// =============================================================================
// SERVER-SENT EVENTS DECODER
// =============================================================================

// doneSentinel terminates an SSE completion stream.
var doneSentinel = []byte("[DONE]")

// sseChunk is the delta payload inside an SSE data line, the framing used
// by hosted chat-completion APIs.
type sseChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// SSEDecoder parses Server-Sent Events streams. Only "data:" lines are
// considered; comments, event ids, and other fields are ignored.
type SSEDecoder struct {
	lines lineBuffer
	done  bool
}

// NewSSE creates a decoder for Server-Sent Events framing.
func NewSSE() *SSEDecoder {
	return &SSEDecoder{}
}

// Feed implements Decoder.
func (d *SSEDecoder) Feed(chunk []byte) ([]string, error) {
	if d.done {
		return nil, nil
	}

	lines, err := d.lines.split(chunk)
	if err != nil {
		return nil, err
	}

	var fragments []string
	for _, line := range lines {
		data, ok := sseData(line)
		if !ok {
			continue
		}

		if bytes.Equal(data, doneSentinel) {
			d.done = true
			break
		}

		var c sseChunk
		if err := json.Unmarshal(data, &c); err != nil {
			// Skip malformed chunks
			continue
		}

		if len(c.Choices) > 0 && c.Choices[0].Delta.Content != "" {
			fragments = append(fragments, sanitizeUTF8(c.Choices[0].Delta.Content))
		}
	}

	return fragments, nil
}

// Done implements Decoder.
func (d *SSEDecoder) Done() bool {
	return d.done
}

// sseData extracts the payload of a "data:" field line.
func sseData(line []byte) ([]byte, bool) {
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false
	}
	return bytes.TrimSpace(line[5:]), true
}
