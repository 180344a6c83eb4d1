package main

import (
	"fmt"
	"io"
	"os"

	"github.com/loykin/linesink/internal/verify"
)

// verifyOutput checks r and prints a per-writer summary to w.
func verifyOutput(r io.Reader, w io.Writer, run RunConfig, allowPartial bool) (*verify.Report, error) {
	rep, err := verify.Check(r, verify.Options{
		Writers:      run.Writers,
		Expected:     run.Lines,
		Width:        run.Width,
		AllowPartial: allowPartial,
	})
	if err != nil {
		return nil, err
	}

	for _, id := range rep.IDs() {
		st := rep.Writers[id]
		status := "ok"
		if run.Lines > 0 && st.Digest != verify.ExpectedDigest(id, run.Lines, run.Width) {
			status = "mismatch"
		}
		_, _ = fmt.Fprintf(w, "writer %d: lines=%d digest=%016x %s\n", id, st.Lines, st.Digest, status)
	}
	if rep.Partial != "" {
		_, _ = fmt.Fprintf(w, "partial tail: %q\n", rep.Partial)
	}
	_, _ = fmt.Fprintf(w, "lines=%d violations=%d\n", rep.Lines, rep.Violations())

	if err := rep.Err(); err != nil {
		return rep, fmt.Errorf("output is not line-atomic: %w", err)
	}
	return rep, nil
}

func verifyFile(path string, w io.Writer, run RunConfig, allowPartial bool) (*verify.Report, error) {
	if path == "" || path == "-" {
		return verifyOutput(os.Stdin, w, run, allowPartial)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return verifyOutput(f, w, run, allowPartial)
}
