package ollama

import (
	"bytes"
	"strings"
)

// LineDecoder turns raw body reads into newline-delimited records. Bytes that
// do not yet end in '\n' are kept until the next Write or returned by Flush.
// Splitting on the byte '\n' never cuts a multi-byte UTF-8 sequence.
type LineDecoder struct {
	buf []byte
}

// Write appends p to the pending buffer. It never fails.
func (d *LineDecoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete, trimmed, non-empty line.
// ok is false when no complete line is buffered.
func (d *LineDecoder) Next() (line string, ok bool) {
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			return "", false
		}
		line = strings.TrimSpace(string(d.buf[:idx]))
		d.buf = d.buf[idx+1:]
		if line != "" {
			return line, true
		}
	}
}

// Flush returns the trimmed remainder once and empties the buffer.
func (d *LineDecoder) Flush() (string, bool) {
	tail := strings.TrimSpace(string(d.buf))
	d.buf = nil
	return tail, tail != ""
}

// Reset drops anything still buffered.
func (d *LineDecoder) Reset() { d.buf = nil }

// buffered reports how many bytes are waiting for a line terminator.
func (d *LineDecoder) buffered() int { return len(d.buf) }
