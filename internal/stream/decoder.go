package stream

import "bytes"

// Decoder splits a byte stream into newline-terminated lines. Bytes after the
// last '\n' are held until a later Write completes the line. The decoder only
// splits on '\n', so a chunk ending inside a multi-byte UTF-8 sequence is
// reassembled correctly.
//
// A Decoder belongs to a single stream and is not safe for concurrent use.
type Decoder struct {
	pending []byte
}

// Write appends chunk to the pending buffer.
func (d *Decoder) Write(chunk []byte) {
	d.pending = append(d.pending, chunk...)
}

// Next removes and returns the first complete line from the pending buffer,
// with the terminator and a single trailing '\r' stripped. ok is false when
// no complete line is buffered.
func (d *Decoder) Next() (line string, ok bool) {
	i := bytes.IndexByte(d.pending, '\n')
	if i < 0 {
		return "", false
	}
	raw := d.pending[:i]
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	line = string(raw)
	d.pending = d.pending[i+1:]
	return line, true
}

// Unread pushes line back onto the front of the pending buffer with its
// terminator restored, so the next call to Next returns it again.
func (d *Decoder) Unread(line string) {
	buf := make([]byte, 0, len(line)+1+len(d.pending))
	buf = append(buf, line...)
	buf = append(buf, '\n')
	buf = append(buf, d.pending...)
	d.pending = buf
}

// Feed appends chunk and returns every line it completes, in order.
func (d *Decoder) Feed(chunk []byte) []string {
	d.Write(chunk)
	var lines []string
	for {
		line, ok := d.Next()
		if !ok {
			return lines
		}
		lines = append(lines, line)
	}
}

// Buffered reports how many bytes are held back.
func (d *Decoder) Buffered() int {
	return len(d.pending)
}

// Reset discards any buffered bytes.
func (d *Decoder) Reset() {
	d.pending = nil
}
