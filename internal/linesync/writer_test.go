package linesync

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSink keeps every Write call as a separate chunk so tests can check that
// lines arrive as single writes.
type recordSink struct {
	mu       sync.Mutex
	writes   [][]byte
	closed   int
	inWrite  atomic.Int32
	overlaps atomic.Int32

	writeErr error
	closeErr error
}

func (s *recordSink) Write(p []byte) (int, error) {
	if s.inWrite.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	defer s.inWrite.Add(-1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.writes = append(s.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (s *recordSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return s.closeErr
	}
	s.closed++
	return nil
}

func (s *recordSink) setWriteErr(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

func (s *recordSink) chunks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.writes))
	for i, w := range s.writes {
		out[i] = string(w)
	}
	return out
}

func (s *recordSink) output() string {
	return strings.Join(s.chunks(), "")
}

func TestWriter_TwoWritersExample(t *testing.T) {
	sink := &recordSink{}
	w := New("example", sink)

	var wg sync.WaitGroup
	for _, text := range []string{"0 hello\n", "1 world\n"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			l := w.Line()
			for i := 0; i < len(text); i++ {
				assert.NoError(t, l.WriteByte(text[i]))
			}
		}(text)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSuffix(sink.output(), "\n"), "\n")
	sort.Strings(lines)
	assert.Equal(t, []string{"0 hello", "1 world"}, lines)
	assert.Equal(t, 1, sink.closed)
}

func TestWriter_LineAtomicityUnderContention(t *testing.T) {
	const writers = 16
	const perWriter = 200

	sink := &recordSink{}
	w := New("contention", sink)

	var wg sync.WaitGroup
	for id := 0; id < writers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l := w.Line()
			for seq := 0; seq < perWriter; seq++ {
				line := fmt.Sprintf("%d %d %s\n", id, seq, strings.Repeat(string(rune('a'+id)), 20))
				// write in tiny pieces to give other goroutines every chance to interleave
				for i := 0; i < len(line); i += 3 {
					end := i + 3
					if end > len(line) {
						end = len(line)
					}
					_, err := l.Write([]byte(line[i:end]))
					assert.NoError(t, err)
				}
			}
		}(id)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	assert.Zero(t, sink.overlaps.Load(), "wrapped sink saw concurrent writes")

	chunks := sink.chunks()
	require.Len(t, chunks, writers*perWriter)

	next := make(map[int]int)
	for _, c := range chunks {
		require.True(t, strings.HasSuffix(c, "\n"), "chunk without newline %q", c)
		fields := strings.Fields(c)
		require.Len(t, fields, 3, "malformed chunk %q", c)
		id, err := strconv.Atoi(fields[0])
		require.NoError(t, err)
		seq, err := strconv.Atoi(fields[1])
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat(string(rune('a'+id)), 20), fields[2], "interleaved chunk %q", c)
		assert.Equal(t, next[id], seq, "writer %d out of order", id)
		next[id] = seq + 1
	}
	for id := 0; id < writers; id++ {
		assert.Equal(t, perWriter, next[id])
	}
}

func TestWriter_NoByteLoss(t *testing.T) {
	sink := &recordSink{}
	w := New("loss", sink)

	inputs := []string{"alpha\nbeta\ngam", "ma\n\n\ndelta", "epsilon\nzeta\n"}
	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Add(1)
		go func(in string) {
			defer wg.Done()
			_, err := w.Line().WriteString(in)
			assert.NoError(t, err)
		}(in)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	want := []byte(strings.Join(inputs, ""))
	got := []byte(sink.output())
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, want, got)
}

func TestLine_WriteSplitsOnEveryNewline(t *testing.T) {
	sink := &recordSink{}
	w := New("split", sink)
	l := w.Line()

	n, err := l.Write([]byte("one\ntwo\nthr"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, []string{"one\n", "two\n"}, sink.chunks())
	assert.Equal(t, 3, l.Buffered())

	_, err = l.WriteString("ee\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"one\n", "two\n", "three\n"}, sink.chunks())
	assert.Zero(t, l.Buffered())
}

func TestLine_EmptyFlushIsNoop(t *testing.T) {
	sink := &recordSink{}
	w := New("empty", sink)
	l := w.Line()

	require.NoError(t, l.Flush())
	require.NoError(t, l.Flush())
	assert.Empty(t, sink.chunks())

	_ = w.Line()
	require.NoError(t, w.Close())
	assert.Empty(t, sink.chunks())
	assert.Equal(t, 1, sink.closed)
}

func TestLine_ExplicitFlushWithoutNewline(t *testing.T) {
	sink := &recordSink{}
	w := New("explicit", sink)
	l := w.Line()

	_, err := l.WriteString("progress: 50%")
	require.NoError(t, err)
	assert.Empty(t, sink.chunks())

	require.NoError(t, l.Flush())
	assert.Equal(t, []string{"progress: 50%"}, sink.chunks())
	assert.Zero(t, l.Buffered())
}

func TestWriter_CloseDrainsPartialLinesOnce(t *testing.T) {
	sink := &recordSink{}
	w := New("drain", sink)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = w.Line().WriteString("A-partial")
	}()
	<-done // the owning goroutine is gone, its buffer must still be drained

	b := w.Line()
	_, err := b.WriteString("B-line\nB-partial")
	require.NoError(t, err)

	require.NoError(t, w.Close())
	chunks := sink.chunks()
	assert.Equal(t, []string{"B-line\n", "A-partial", "B-partial"}, chunks)
	// no synthetic newline between residual fragments
	assert.Equal(t, "B-line\nA-partialB-partial", sink.output())

	require.NoError(t, w.Close())
	assert.Len(t, sink.chunks(), 3)
	assert.Equal(t, 1, sink.closed)
}

func TestWriter_WriteErrorPropagatesUnchanged(t *testing.T) {
	errDisk := errors.New("disk full")
	sink := &recordSink{writeErr: errDisk}
	w := New("fail", sink)
	l := w.Line()

	n, err := l.Write([]byte("lost?\nrest"))
	assert.Same(t, errDisk, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 6, l.Buffered(), "buffer must keep the failed line")

	assert.Same(t, errDisk, l.WriteByte('\n'))
	assert.Same(t, errDisk, l.Flush())

	sink.setWriteErr(nil)
	require.NoError(t, l.Flush())
	assert.Equal(t, []string{"lost?\n\n"}, sink.chunks())
}

func TestWriter_CloseFailureIsRetryable(t *testing.T) {
	errPipe := errors.New("broken pipe")
	sink := &recordSink{}
	w := New("retry", sink)

	a, b := w.Line(), w.Line()
	_, _ = a.WriteString("a")
	_, _ = b.WriteString("b")

	sink.setWriteErr(errPipe)
	assert.Same(t, errPipe, w.Close())
	assert.Zero(t, sink.closed, "wrapped sink must stay open after a failed drain")
	assert.Equal(t, 1, a.Buffered())
	assert.Equal(t, 1, b.Buffered())

	sink.setWriteErr(nil)
	require.NoError(t, w.Close())
	assert.Equal(t, []string{"a", "b"}, sink.chunks())
	assert.Equal(t, 1, sink.closed)
}

func TestWriter_WrappedCloseError(t *testing.T) {
	errClose := errors.New("close failed")
	sink := &recordSink{closeErr: errClose}
	w := New("close-err", sink)

	assert.Same(t, errClose, w.Close())
	_, err := w.Line().WriteString("still open\n")
	assert.NoError(t, err)
}

func TestWriter_WritesAfterClose(t *testing.T) {
	sink := &recordSink{}
	w := New("after", sink)
	l := w.Line()
	require.NoError(t, w.Close())

	_, err := l.Write([]byte("late\n"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, l.WriteByte('x'), ErrClosed)
	assert.ErrorIs(t, l.Flush(), ErrClosed)
	assert.Empty(t, sink.chunks())
}

func TestWriter_RegistryIsAppendOnly(t *testing.T) {
	w := New("", NopCloser(&bytes.Buffer{}))
	assert.Equal(t, "default", w.Name())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Line()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, w.Len())
	require.NoError(t, w.Close())
	assert.Equal(t, 50, w.Len())
}

func TestNopCloser(t *testing.T) {
	var buf bytes.Buffer
	w := New("nop", NopCloser(&buf))
	l := w.Line()
	_, err := l.WriteString("kept\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// the underlying buffer is still usable after Close
	buf.WriteString("more")
	assert.Equal(t, "kept\nmore", buf.String())
}
