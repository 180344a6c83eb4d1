package linesync

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loykin/linesink/internal/metrics"
)

// ErrClosed is returned by writes and flushes issued after the Writer was closed.
var ErrClosed = errors.New("linesync: writer closed")

// Writer multiplexes many concurrent line writers onto one io.WriteCloser.
//
// Each goroutine obtains its own Line and writes through it. Bytes accumulate in
// the Line until a newline arrives; the complete line is then handed to the
// wrapped sink in a single Write call while holding the sink lock, so no two
// lines ever share bytes in the output.
type Writer struct {
	name string

	// outMu serializes writes to out.
	outMu sync.Mutex
	out   io.WriteCloser

	// regMu guards lines. It is never taken on the write path of an already
	// registered Line, nor while writing to out.
	regMu sync.Mutex
	lines []*Line

	closeMu sync.Mutex
	closed  atomic.Bool
}

// New wraps out. The name labels the writer's metrics.
func New(name string, out io.WriteCloser) *Writer {
	if name == "" {
		name = "default"
	}
	return &Writer{name: name, out: out}
}

// Name returns the metrics label of the writer.
func (w *Writer) Name() string { return w.name }

// Line registers a new per-goroutine buffer. The registry is append-only: a
// Line stays registered for the lifetime of the Writer so Close can drain it
// even after its goroutine has exited.
func (w *Writer) Line() *Line {
	l := &Line{w: w}

	w.regMu.Lock()
	w.lines = append(w.lines, l)
	w.regMu.Unlock()

	metrics.LineRegistered(w.name)
	return l
}

// Len reports how many lines have been registered.
func (w *Writer) Len() int {
	w.regMu.Lock()
	defer w.regMu.Unlock()
	return len(w.lines)
}

// Close flushes the residual contents of every registered line and closes the
// wrapped sink. No newline is inserted between residual fragments, so
// unterminated lines of different goroutines may end up on the same physical
// line.
//
// On the first flush error Close returns it unchanged and leaves the wrapped
// sink open; the failed line and all lines after it keep their contents so
// Close can be retried.
func (w *Writer) Close() error {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()

	if w.closed.Load() {
		return nil
	}

	w.regMu.Lock()
	lines := make([]*Line, len(w.lines))
	copy(lines, w.lines)
	w.regMu.Unlock()

	for _, l := range lines {
		if err := l.flush(); err != nil {
			return err
		}
	}
	if err := w.out.Close(); err != nil {
		return err
	}
	w.closed.Store(true)
	metrics.Closed(w.name)
	return nil
}

// write hands p to the wrapped sink as one call.
func (w *Writer) write(p []byte) error {
	w.outMu.Lock()
	start := time.Now()
	_, err := w.out.Write(p)
	dur := time.Since(start)
	w.outMu.Unlock()

	metrics.FlushObserve(w.name, len(p), dur, err == nil)
	return err
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NopCloser returns an io.WriteCloser whose Close does nothing, for sinks such as
// os.Stdout that the Writer must not close.
func NopCloser(w io.Writer) io.WriteCloser {
	return nopCloser{Writer: w}
}
