package runner

import (
	"strings"
	"sync"
)

// DefaultStderrTailBytes bounds the stderr text kept per process.
const DefaultStderrTailBytes = 64 * 1024

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	mu        sync.Mutex
	max       int
	buf       []byte
	truncated bool
}

func newTailWriter(max int) *tailWriter {
	if max <= 0 {
		max = DefaultStderrTailBytes
	}
	return &tailWriter{max: max}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.max; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
		w.truncated = true
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.ToValidUTF8(string(w.buf), "\uFFFD")
}

func (w *tailWriter) Truncated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.truncated
}
