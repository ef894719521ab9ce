// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
)

// =============================================================================
// NEWLINE-DELIMITED JSON DECODER
// =============================================================================

// NDJSONDecoder parses streams where each line is a complete JSON object
// carrying a text field and a boolean terminator field, the framing used by
// local inference servers.
type NDJSONDecoder struct {
	lines     lineBuffer
	textField string
	doneField string
	done      bool
}

// NewNDJSON creates a decoder for newline-delimited JSON framing.
// textField names the JSON key holding the fragment text and doneField the
// boolean key that terminates the stream.
func NewNDJSON(textField, doneField string) *NDJSONDecoder {
	return &NDJSONDecoder{
		textField: textField,
		doneField: doneField,
	}
}

// Feed implements Decoder.
func (d *NDJSONDecoder) Feed(chunk []byte) ([]string, error) {
	if d.done {
		return nil, nil
	}

	lines, err := d.lines.split(chunk)
	if err != nil {
		return nil, err
	}

	var fragments []string
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(line, &obj); err != nil {
			// Skip malformed lines
			continue
		}

		if raw, ok := obj[d.textField]; ok {
			var text string
			if err := json.Unmarshal(raw, &text); err == nil && text != "" {
				fragments = append(fragments, sanitizeUTF8(text))
			}
		}

		if raw, ok := obj[d.doneField]; ok {
			var finished bool
			if err := json.Unmarshal(raw, &finished); err == nil && finished {
				d.done = true
				break
			}
		}
	}

	return fragments, nil
}

// Done implements Decoder.
func (d *NDJSONDecoder) Done() bool {
	return d.done
}
