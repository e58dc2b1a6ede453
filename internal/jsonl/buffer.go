package jsonl

import (
	"bytes"
	"strings"
)

// DefaultMaxLineBytes caps the carry-over held for a single unterminated line.
const DefaultMaxLineBytes = 256 * 1024

// Line is one framed line of subprocess output, without its terminator.
type Line struct {
	Text string
	// Oversized marks a line that hit the length cap. Text then holds only
	// the leading bytes and the remainder of the line was discarded.
	Oversized bool
}

// Buffer reassembles newline-delimited lines from arbitrarily chunked
// output. It keeps at most max bytes of an incomplete line.
type Buffer struct {
	max        int
	pending    []byte
	discarding bool
}

// NewBuffer returns a buffer with the given cap. Non-positive values use
// DefaultMaxLineBytes.
func NewBuffer(maxLineBytes int) *Buffer {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &Buffer{max: maxLineBytes}
}

// Max returns the line cap in bytes.
func (b *Buffer) Max() int { return b.max }

// Pending returns the number of buffered bytes awaiting a terminator.
func (b *Buffer) Pending() int { return len(b.pending) }

// Feed appends chunk and returns every line it completed, in order.
func (b *Buffer) Feed(chunk []byte) []Line {
	var lines []Line
	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, '\n')

		if b.discarding {
			if idx < 0 {
				return lines
			}
			b.discarding = false
			chunk = chunk[idx+1:]
			continue
		}

		if idx < 0 {
			if len(b.pending)+len(chunk) > b.max {
				b.pending = append(b.pending, chunk[:b.max-len(b.pending)]...)
				lines = append(lines, b.take(true))
				b.discarding = true
				return lines
			}
			b.pending = append(b.pending, chunk...)
			return lines
		}

		segment := chunk[:idx]
		chunk = chunk[idx+1:]
		if len(b.pending)+len(segment) > b.max {
			b.pending = append(b.pending, segment[:b.max-len(b.pending)]...)
			lines = append(lines, b.take(true))
			continue
		}
		b.pending = append(b.pending, segment...)
		lines = append(lines, b.take(false))
	}
	return lines
}

// Flush returns the unterminated remainder, if any, and resets the buffer.
func (b *Buffer) Flush() (Line, bool) {
	b.discarding = false
	if len(b.pending) == 0 {
		return Line{}, false
	}
	return b.take(false), true
}

func (b *Buffer) take(oversized bool) Line {
	raw := b.pending
	if !oversized {
		raw = bytes.TrimSuffix(raw, []byte{'\r'})
	}
	text := strings.ToValidUTF8(string(raw), "\uFFFD")
	b.pending = b.pending[:0]
	return Line{Text: text, Oversized: oversized}
}
