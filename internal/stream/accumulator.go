package stream

import (
	"io"
	"strings"

	"hfllm/internal/sse"

	"github.com/sirupsen/logrus"
)

// Accumulator builds the full reply of one cycle while echoing each fragment
// to a live output sink.
type Accumulator struct {
	out       io.Writer
	buf       strings.Builder
	fragments int
}

// NewAccumulator creates an Accumulator writing to out. A nil out discards output.
func NewAccumulator(out io.Writer) *Accumulator {
	if out == nil {
		out = io.Discard
	}
	return &Accumulator{out: out}
}

// Add appends a fragment to the reply and writes it to the sink immediately.
func (a *Accumulator) Add(fragment string) {
	a.buf.WriteString(fragment)
	a.fragments++
	if _, err := io.WriteString(a.out, fragment); err != nil {
		logrus.WithError(err).Warn("Failed to write fragment to output")
	}
}

// Len returns the number of bytes accumulated so far.
func (a *Accumulator) Len() int {
	return a.buf.Len()
}

// Fragments returns how many fragments were added.
func (a *Accumulator) Fragments() int {
	return a.fragments
}

// String returns the reply accumulated so far.
func (a *Accumulator) String() string {
	return a.buf.String()
}

// Finish terminates the output line and returns the full reply.
func (a *Accumulator) Finish() string {
	if _, err := io.WriteString(a.out, "\n"); err != nil {
		logrus.WithError(err).Warn("Failed to write to output")
	}
	return a.buf.String()
}

// Collect drains a streamed response body, echoing fragments to out, and returns
// the full reply. Frames after the [DONE] sentinel are not read. A read error
// aborts the cycle and no reply is returned.
func Collect(body io.Reader, out io.Writer) (string, error) {
	acc := NewAccumulator(out)
	ignored := 0

	var dec sse.Decoder
	err := dec.ReadFrames(body, func(frame string) bool {
		d := sse.Extract(frame)
		switch d.Kind {
		case sse.KindDone:
			return false
		case sse.KindFragment:
			acc.Add(d.Text)
		default:
			ignored++
		}
		return true
	})
	if err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"fragments": acc.Fragments(),
		"ignored":   ignored,
		"skipped":   dec.Skipped(),
		"bytes":     acc.Len(),
	}).Debug("Stream complete")

	return acc.Finish(), nil
}
