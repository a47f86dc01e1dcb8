package sse

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

func feedAll(chunks []string) []string {
	var dec Decoder
	lines := []string{}
	for _, c := range chunks {
		lines = append(lines, dec.Feed([]byte(c))...)
	}
	return lines
}

func TestDecoderFeed(t *testing.T) {
	testCases := []struct {
		name     string
		chunks   []string
		expected []string
	}{
		{
			name:     "One line per chunk",
			chunks:   []string{"data: a\n", "data: b\n"},
			expected: []string{"data: a", "data: b"},
		},
		{
			name:     "Many lines in one chunk",
			chunks:   []string{"data: a\ndata: b\n\ndata: c\n"},
			expected: []string{"data: a", "data: b", "", "data: c"},
		},
		{
			name:     "Line split across chunks",
			chunks:   []string{"da", "ta: hel", "lo\n"},
			expected: []string{"data: hello"},
		},
		{
			name:     "Chunk without newline yields nothing",
			chunks:   []string{"data: partial"},
			expected: []string{},
		},
		{
			name:     "CRLF line endings",
			chunks:   []string{"data: a\r\ndata: b\r", "\n"},
			expected: []string{"data: a", "data: b"},
		},
		{
			name:     "Empty chunks",
			chunks:   []string{"", "data: x", "", "\n"},
			expected: []string{"data: x"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := feedAll(tc.chunks)
			if !reflect.DeepEqual(actual, tc.expected) {
				t.Errorf("expected: %q, got: %q", tc.expected, actual)
			}
		})
	}
}

func TestDecoderChunkBoundaryIndependence(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"héllo\"}}]}\n" +
		"event: ping\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"wörld 🌍\"}}]}\r\n" +
		"data: [DONE]\n"
	expected := feedAll([]string{stream})

	for size := 1; size <= len(stream); size++ {
		var chunks []string
		b := []byte(stream)
		for len(b) > 0 {
			n := size
			if n > len(b) {
				n = len(b)
			}
			chunks = append(chunks, string(b[:n]))
			b = b[n:]
		}
		if actual := feedAll(chunks); !reflect.DeepEqual(actual, expected) {
			t.Fatalf("chunk size %d: expected %q, got %q", size, expected, actual)
		}
	}
}

func TestDecoderSkipsInvalidChunk(t *testing.T) {
	var dec Decoder
	lines := dec.Feed([]byte("data: a\n"))
	lines = append(lines, dec.Feed([]byte{0xff, 0xfe, '\n'})...)
	lines = append(lines, dec.Feed([]byte("data: b\n"))...)

	expected := []string{"data: a", "data: b"}
	if !reflect.DeepEqual(lines, expected) {
		t.Errorf("expected: %q, got: %q", expected, lines)
	}
	if dec.Skipped() != 1 {
		t.Errorf("expected 1 skipped chunk, got %d", dec.Skipped())
	}
}

func TestDecoderDropsUnfinishedCharacterOnly(t *testing.T) {
	var dec Decoder
	lines := dec.Feed(append([]byte("data: a\n"), 0xe2))
	lines = append(lines, dec.Feed([]byte("data: b\n"))...)
	lines = append(lines, dec.Feed([]byte("data: c\n"))...)

	expected := []string{"data: a", "data: b", "data: c"}
	if !reflect.DeepEqual(lines, expected) {
		t.Errorf("expected: %q, got: %q", expected, lines)
	}
	if dec.Skipped() != 0 {
		t.Errorf("expected no skipped chunks, got %d", dec.Skipped())
	}
}

func TestDecoderReadFramesKeepsCounters(t *testing.T) {
	r := io.MultiReader(
		strings.NewReader("data: a\n"),
		strings.NewReader("\xff\n"),
		strings.NewReader("data: b\ntail"),
	)

	var dec Decoder
	var frames []string
	err := dec.ReadFrames(r, func(frame string) bool {
		frames = append(frames, frame)
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(frames, []string{"data: a", "data: b"}) {
		t.Errorf("unexpected frames: %q", frames)
	}
	if dec.Skipped() != 1 {
		t.Errorf("expected 1 skipped chunk, got %d", dec.Skipped())
	}
	if dec.Pending() != "" {
		t.Errorf("expected the dangling line to be discarded, got %q", dec.Pending())
	}
}

func TestDecoderPendingAndReset(t *testing.T) {
	var dec Decoder
	dec.Feed([]byte("data: a\ndata: tail"))
	if dec.Pending() != "data: tail" {
		t.Errorf("expected pending %q, got %q", "data: tail", dec.Pending())
	}
	dec.Reset()
	if dec.Pending() != "" {
		t.Errorf("expected empty pending after reset, got %q", dec.Pending())
	}
}

func TestReadFrames(t *testing.T) {
	r := iotest.OneByteReader(strings.NewReader("data: a\ndata: b\ndangling"))

	var frames []string
	err := ReadFrames(r, func(frame string) bool {
		frames = append(frames, frame)
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"data: a", "data: b"}
	if !reflect.DeepEqual(frames, expected) {
		t.Errorf("expected: %q, got: %q", expected, frames)
	}
}

func TestReadFramesStopsWhenCallbackReturnsFalse(t *testing.T) {
	var frames []string
	err := ReadFrames(strings.NewReader("one\ntwo\nthree\n"), func(frame string) bool {
		frames = append(frames, frame)
		return frame != "two"
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(frames, []string{"one", "two"}) {
		t.Errorf("unexpected frames: %q", frames)
	}
}

func TestReadFramesReturnsReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: a\n"), iotest.ErrReader(boom))

	var frames []string
	err := ReadFrames(r, func(frame string) bool {
		frames = append(frames, frame)
		return true
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
	if len(frames) != 1 {
		t.Errorf("expected frames before the error to be delivered, got %q", frames)
	}
}
