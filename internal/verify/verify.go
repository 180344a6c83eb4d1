// Package verify checks output produced by the demo writers: every line must
// belong to exactly one writer and each writer's lines must appear in order.
package verify

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/zeebo/xxh3"

	"github.com/loykin/linesink/internal/pattern"
)

// Options tunes the checks.
type Options struct {
	// Writers, when > 0, is the number of writers expected in the output.
	Writers int
	// Expected, when > 0, is the number of lines each writer must have produced.
	Expected int
	// Width, when > 0, is the body width every line must have.
	Width int
	// AllowPartial skips a final line without a trailing newline. Residual
	// fragments drained at close may share that line.
	AllowPartial bool
}

// WriterStats summarizes one writer's lines.
type WriterStats struct {
	Lines  int
	Digest uint64

	next   int
	hasher *xxh3.Hasher
}

// Report is the result of Check.
type Report struct {
	Lines   int
	Writers map[int]*WriterStats
	// Partial holds the unterminated tail, if any.
	Partial string

	errs *multierror.Error
}

// Err returns all violations found, or nil.
func (r *Report) Err() error {
	return r.errs.ErrorOrNil()
}

// Violations returns the number of violations found.
func (r *Report) Violations() int {
	if r.errs == nil {
		return 0
	}
	return len(r.errs.Errors)
}

// IDs returns the writer ids seen, sorted.
func (r *Report) IDs() []int {
	ids := make([]int, 0, len(r.Writers))
	for id := range r.Writers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (r *Report) fail(format string, args ...any) {
	r.errs = multierror.Append(r.errs, fmt.Errorf(format, args...))
}

// Check reads rd to the end and validates every line. The returned error is
// only set for read failures; violations are reported through Report.Err.
func Check(rd io.Reader, opts Options) (*Report, error) {
	rep := &Report{Writers: make(map[int]*WriterStats)}
	br := bufio.NewReaderSize(rd, 64*1024)

	for lineNo := 1; ; lineNo++ {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if raw == "" {
			break
		}
		terminated := strings.HasSuffix(raw, "\n")
		if !terminated && opts.AllowPartial {
			rep.Partial = raw
			break
		}
		rep.Lines++
		rep.checkLine(lineNo, strings.TrimSuffix(raw, "\n"), opts)
		if err == io.EOF {
			break
		}
	}

	for _, id := range rep.IDs() {
		st := rep.Writers[id]
		st.Digest = st.hasher.Sum64()
		if opts.Expected > 0 && st.Lines != opts.Expected {
			rep.fail("writer %d: %d lines, want %d", id, st.Lines, opts.Expected)
		}
		if opts.Writers > 0 && id >= opts.Writers {
			rep.fail("writer %d: unexpected writer id, want < %d", id, opts.Writers)
		}
	}
	if opts.Writers > 0 {
		for id := 0; id < opts.Writers; id++ {
			if _, ok := rep.Writers[id]; !ok {
				rep.fail("writer %d: no lines", id)
			}
		}
	}
	return rep, nil
}

func (r *Report) checkLine(lineNo int, line string, opts Options) {
	rec, err := pattern.Parse(line)
	if err != nil {
		r.fail("line %d: %w", lineNo, err)
		return
	}
	if opts.Width > 0 && len(rec.Body) != opts.Width {
		r.fail("line %d: writer %d body width %d, want %d", lineNo, rec.ID, len(rec.Body), opts.Width)
	}

	st, ok := r.Writers[rec.ID]
	if !ok {
		st = &WriterStats{hasher: xxh3.New()}
		r.Writers[rec.ID] = st
	}
	if rec.Seq != st.next {
		r.fail("line %d: writer %d sequence %d, want %d", lineNo, rec.ID, rec.Seq, st.next)
	}
	st.next = rec.Seq + 1
	st.Lines++
	_, _ = st.hasher.WriteString(line)
	_, _ = st.hasher.WriteString("\n")
}

// ExpectedDigest returns the digest a writer produces when all of its lines
// reach the output intact and in order.
func ExpectedDigest(id, lines, width int) uint64 {
	h := xxh3.New()
	for seq := 0; seq < lines; seq++ {
		_, _ = h.WriteString(pattern.Format(id, seq, width))
		_, _ = h.WriteString("\n")
	}
	return h.Sum64()
}
