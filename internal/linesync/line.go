package linesync

import (
	"bytes"
	"sync"
)

// Line is the private buffer of one goroutine. It is not meant to be shared
// between goroutines; mu only exists so Writer.Close can drain it safely.
type Line struct {
	w *Writer

	mu  sync.Mutex
	buf bytes.Buffer
}

// WriteByte appends b and flushes the buffer when b is a newline.
func (l *Line) WriteByte(b byte) error {
	if l.w.closed.Load() {
		return ErrClosed
	}
	l.mu.Lock()
	l.buf.WriteByte(b)
	l.mu.Unlock()

	if b == '\n' {
		return l.flush()
	}
	return nil
}

// Write appends p, flushing once for every newline it contains. The result is
// the same as calling WriteByte for each byte of p. When a flush fails, n counts
// the bytes taken into the buffer so far, including the unflushed line.
func (l *Line) Write(p []byte) (n int, err error) {
	if l.w.closed.Load() {
		return 0, ErrClosed
	}
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			l.mu.Lock()
			l.buf.Write(p)
			l.mu.Unlock()
			return n + len(p), nil
		}

		l.mu.Lock()
		l.buf.Write(p[:i+1])
		l.mu.Unlock()
		n += i + 1
		p = p[i+1:]

		if err := l.flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// WriteString is like Write but takes a string.
func (l *Line) WriteString(s string) (int, error) {
	return l.Write([]byte(s))
}

// Flush hands whatever is buffered to the wrapped sink, newline or not.
func (l *Line) Flush() error {
	if l.w.closed.Load() {
		return ErrClosed
	}
	return l.flush()
}

// Buffered returns the number of bytes waiting for a newline or a flush.
func (l *Line) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Len()
}

// flush writes the buffer as one call to the wrapped sink. An empty buffer is a
// no-op. The buffer is only reset after a successful write.
func (l *Line) flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buf.Len() == 0 {
		return nil
	}
	if err := l.w.write(l.buf.Bytes()); err != nil {
		return err
	}
	l.buf.Reset()
	return nil
}
