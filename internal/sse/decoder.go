package sse

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// DefaultChunkSize is the read size used by ReadFrames.
const DefaultChunkSize = 4096

// Decoder reassembles line-delimited frames from chunks with arbitrary boundaries.
// The zero value is ready to use.
type Decoder struct {
	carry       string
	partialRune []byte
	skipped     int
}

// Feed consumes one chunk and returns every line it completes, in order.
// The trailing partial line is kept until a later chunk terminates it.
func (d *Decoder) Feed(chunk []byte) []string {
	held := d.partialRune
	d.partialRune = nil

	if len(held) > 0 {
		joined := append(append([]byte(nil), held...), chunk...)
		if frames, ok := d.decode(joined); ok {
			return frames
		}
		// The held bytes never became a character; judge the chunk on its own.
		logrus.WithField("bytes", len(held)).Debug("Dropping unfinished UTF-8 sequence")
	}

	frames, ok := d.decode(chunk)
	if !ok {
		d.skipped++
		logrus.WithField("bytes", len(chunk)).Debug("Skipping chunk with invalid UTF-8")
		return nil
	}
	return frames
}

// decode splits data into lines after the carry-over. It reports false and
// leaves the decoder untouched when data is not valid UTF-8.
func (d *Decoder) decode(data []byte) ([]string, bool) {
	// A multi-byte character may straddle two chunks; hold its head back.
	n := incompleteTail(data)
	if !utf8.Valid(data[:len(data)-n]) {
		return nil, false
	}
	if n > 0 {
		d.partialRune = append([]byte(nil), data[len(data)-n:]...)
	}

	buf := d.carry + string(data[:len(data)-n])
	var frames []string
	for {
		i := strings.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		frames = append(frames, strings.TrimSuffix(buf[:i], "\r"))
		buf = buf[i+1:]
	}
	d.carry = buf
	return frames, true
}

// Pending returns the incomplete line carried over to the next chunk.
func (d *Decoder) Pending() string {
	return d.carry
}

// Skipped returns how many chunks were dropped for invalid encoding.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// Reset discards any carried-over data.
func (d *Decoder) Reset() {
	d.carry = ""
	d.partialRune = nil
}

// ReadFrames reads r chunk by chunk and calls fn for each complete line until fn
// returns false or r is exhausted. A dangling partial line at end of stream is
// dropped. io.EOF is not an error.
func ReadFrames(r io.Reader, fn func(frame string) bool) error {
	var dec Decoder
	return dec.ReadFrames(r, fn)
}

// ReadFrames is like the package-level ReadFrames but feeds d, so its counters
// remain readable after the stream ends.
func (d *Decoder) ReadFrames(r io.Reader, fn func(frame string) bool) error {
	buf := make([]byte, DefaultChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, frame := range d.Feed(buf[:n]) {
				if !fn(frame) {
					return nil
				}
			}
		}
		if err == io.EOF {
			if p := d.Pending(); p != "" {
				logrus.WithField("bytes", len(p)).Debug("Discarding unterminated line at end of stream")
			}
			d.Reset()
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

// incompleteTail returns the length of a truncated UTF-8 sequence at the end of b.
func incompleteTail(b []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if utf8.FullRune(b[len(b)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}
