// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"reflect"
	"testing"
	"unicode/utf8"
)

// feedAll feeds the input in chunks of the given size and collects all
// fragments, simulating arbitrary network chunking.
func feedAll(t *testing.T, d Decoder, input []byte, chunkSize int) []string {
	t.Helper()
	var got []string
	for i := 0; i < len(input); i += chunkSize {
		end := i + chunkSize
		if end > len(input) {
			end = len(input)
		}
		frags, err := d.Feed(input[i:end])
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		got = append(got, frags...)
	}
	return got
}

func TestNDJSONSplitAcrossChunks(t *testing.T) {
	d := NewNDJSON("response", "done")

	frags, err := d.Feed([]byte(`{"response":"Hel`))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(frags) != 0 {
		t.Errorf("partial line produced fragments %v, want none", frags)
	}

	frags, err = d.Feed([]byte("lo\",\"done\":false}\n{\"response\":\"!\",\"done\":true}\n"))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}

	want := []string{"Hello", "!"}
	if !reflect.DeepEqual(frags, want) {
		t.Errorf("fragments = %v, want %v", frags, want)
	}
	if !d.Done() {
		t.Error("Done() = false after terminator, want true")
	}
}

func TestNDJSONChunkBoundaryInvariance(t *testing.T) {
	input := []byte(`{"response":"alpha","done":false}` + "\n" +
		`{"response":"beta","done":false}` + "\n" +
		`{"response":"gamma","done":true}` + "\n")
	want := []string{"alpha", "beta", "gamma"}

	for _, size := range []int{1, 2, 3, 7, 16, len(input)} {
		got := feedAll(t, NewNDJSON("response", "done"), input, size)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunk size %d: fragments = %v, want %v", size, got, want)
		}
	}
}

func TestNDJSONSkipsMalformedLines(t *testing.T) {
	d := NewNDJSON("response", "done")
	input := []byte(`{"response":"a","done":false}` + "\n" +
		"{not json at all\n" +
		"\n" +
		`{"response":"b","done":false}` + "\n")

	frags, err := d.Feed(input)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	want := []string{"a", "b"}
	if !reflect.DeepEqual(frags, want) {
		t.Errorf("fragments = %v, want %v", frags, want)
	}
	if d.Done() {
		t.Error("Done() = true, want false")
	}
}

func TestNDJSONMissingTextField(t *testing.T) {
	d := NewNDJSON("response", "done")
	frags, err := d.Feed([]byte(`{"model":"m","done":false}` + "\n"))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(frags) != 0 {
		t.Errorf("fragments = %v, want none", frags)
	}
}

func TestNDJSONIgnoresFeedAfterDone(t *testing.T) {
	d := NewNDJSON("response", "done")
	if _, err := d.Feed([]byte(`{"response":"x","done":true}` + "\n")); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}

	frags, err := d.Feed([]byte(`{"response":"late","done":false}` + "\n"))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(frags) != 0 {
		t.Errorf("fragments after done = %v, want none", frags)
	}
}

func TestNDJSONMultiByteRuneSplit(t *testing.T) {
	// The snowman rune is three bytes; split the line inside it.
	line := []byte(`{"response":"a☃b","done":true}` + "\n")
	idx := bytes.IndexRune(line, '☃') + 1 // one byte into the rune

	d := NewNDJSON("response", "done")
	frags, err := d.Feed(line[:idx])
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(frags) != 0 {
		t.Errorf("partial feed produced fragments %v, want none", frags)
	}

	frags, err = d.Feed(line[idx:])
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(frags) != 1 || frags[0] != "a☃b" {
		t.Errorf("fragments = %v, want [a☃b]", frags)
	}
	if !utf8.ValidString(frags[0]) {
		t.Error("fragment is not valid UTF-8")
	}
}

func TestNDJSONLineTooLarge(t *testing.T) {
	d := NewNDJSON("response", "done")
	huge := bytes.Repeat([]byte("x"), MaxLineSize+1)
	if _, err := d.Feed(huge); err == nil {
		t.Error("Feed() error = nil for oversize line, want error")
	}
}

func TestSSEBasicStream(t *testing.T) {
	d := NewSSE()
	input := []byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n")

	frags, err := d.Feed(input)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	want := []string{"Hel", "lo"}
	if !reflect.DeepEqual(frags, want) {
		t.Errorf("fragments = %v, want %v", frags, want)
	}
	if !d.Done() {
		t.Error("Done() = false after [DONE], want true")
	}
}

func TestSSEChunkBoundaryInvariance(t *testing.T) {
	input := []byte("data: {\"choices\":[{\"delta\":{\"content\":\"one\"}}]}\n\n" +
		": comment line\n" +
		"id: 42\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"two\"}}]}\n\n" +
		"data: [DONE]\n\n")
	want := []string{"one", "two"}

	for _, size := range []int{1, 4, 9, len(input)} {
		got := feedAll(t, NewSSE(), input, size)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunk size %d: fragments = %v, want %v", size, got, want)
		}
	}
}

func TestSSESkipsMalformedAndNonData(t *testing.T) {
	d := NewSSE()
	input := []byte("event: message\n" +
		"data: {broken\n" +
		"retry: 500\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")

	frags, err := d.Feed(input)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	want := []string{"ok"}
	if !reflect.DeepEqual(frags, want) {
		t.Errorf("fragments = %v, want %v", frags, want)
	}
}

func TestSSEEmptyDeltaProducesNothing(t *testing.T) {
	d := NewSSE()
	input := []byte("data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")

	frags, err := d.Feed(input)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(frags) != 0 {
		t.Errorf("fragments = %v, want none", frags)
	}
}

func TestSSEIgnoresFeedAfterDone(t *testing.T) {
	d := NewSSE()
	if _, err := d.Feed([]byte("data: [DONE]\n")); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	frags, err := d.Feed([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n"))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(frags) != 0 {
		t.Errorf("fragments after done = %v, want none", frags)
	}
}

func TestSSECarriageReturnLines(t *testing.T) {
	d := NewSSE()
	frags, err := d.Feed([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"crlf\"}}]}\r\n\r\n"))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(frags) != 1 || frags[0] != "crlf" {
		t.Errorf("fragments = %v, want [crlf]", frags)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"valid ascii", "hello"},
		{"valid multibyte", "héllo ☃"},
		{"invalid bytes", "a\xffb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := sanitizeUTF8(tt.input)
			if !utf8.ValidString(out) {
				t.Errorf("sanitizeUTF8(%q) = %q, not valid UTF-8", tt.input, out)
			}
		})
	}
}
