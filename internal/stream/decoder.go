// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream provides incremental decoders for the two wire framings
// used by generation backends: newline-delimited JSON and Server-Sent Events.
package stream

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// DECODER INTERFACE
// =============================================================================

// MaxLineSize is the maximum allowed size for a single buffered line (64KB).
const MaxLineSize = 64 * 1024

// Decoder turns raw transport bytes into ordered text fragments.
//
// Feed accepts a chunk of bytes exactly as it arrived from the network and
// returns the fragments completed by that chunk, in arrival order. A chunk
// may complete zero, one, or many fragments. Bytes belonging to an
// unfinished line are retained until a later Feed completes them, so
// callers may split the stream at arbitrary byte boundaries, including in
// the middle of a multi-byte UTF-8 sequence.
//
// Feed never returns an error for malformed payload lines; those are
// skipped. It errors only when a single line exceeds MaxLineSize.
type Decoder interface {
	Feed(chunk []byte) ([]string, error)

	// Done reports whether the stream's terminator has been observed.
	// Once true, further Feed calls are ignored.
	Done() bool
}

// =============================================================================
// LINE BUFFERING
// =============================================================================

// lineBuffer accumulates bytes across Feed calls and yields complete
// newline-terminated lines. The trailing partial line stays buffered.
type lineBuffer struct {
	buf bytes.Buffer
}

// split appends chunk and returns all complete lines, without their
// terminating newline. Carriage returns are trimmed.
func (b *lineBuffer) split(chunk []byte) ([][]byte, error) {
	b.buf.Write(chunk)

	var lines [][]byte
	for {
		data := b.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, data[:idx])
		b.buf.Next(idx + 1)
		lines = append(lines, bytes.TrimRight(line, "\r"))
	}

	if b.buf.Len() > MaxLineSize {
		return nil, fmt.Errorf("line too large: %d bytes", b.buf.Len())
	}
	return lines, nil
}

// =============================================================================
// UTF-8 SANITIZATION
// =============================================================================

// sanitizeUTF8 replaces ill-formed byte sequences with U+FFFD so a fragment
// is always valid UTF-8 regardless of what the backend emitted.
func sanitizeUTF8(s string) string {
	out, _, err := transform.String(unicode.UTF8.NewDecoder(), s)
	if err != nil {
		return s
	}
	return out
}
