package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/loykin/linesink"
	"github.com/loykin/linesink/internal/pattern"
)

// runResult summarizes a finished run.
type runResult struct {
	Lines   int
	Bytes   int64
	Elapsed time.Duration
}

// runWriters starts cfg.Writers goroutines writing patterned lines to out and
// closes out when they are done. With cfg.Safe every goroutine writes through its
// own line of a linesink.Writer; otherwise all of them share out directly.
func runWriters(ctx context.Context, cfg RunConfig, name string, out io.WriteCloser, logger *slog.Logger) (*runResult, error) {
	start := time.Now()

	var (
		closer    io.Closer = out
		newWriter           = func() io.Writer { return out }
	)
	if cfg.Safe {
		w := linesink.New(name, out)
		closer = w
		newWriter = func() io.Writer { return w.Line() }
	}

	counts := make([]int64, cfg.Writers)
	g, gCtx := errgroup.WithContext(ctx)
	for id := 0; id < cfg.Writers; id++ {
		g.Go(func() error {
			w := newWriter()
			for seq := 0; seq < cfg.Lines; seq++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				line := pattern.Format(id, seq, cfg.Width) + "\n"
				for _, chunk := range pattern.Chunks(line, cfg.ChunkSize) {
					n, err := io.WriteString(w, chunk)
					counts[id] += int64(n)
					if err != nil {
						return fmt.Errorf("writer %d: %w", id, err)
					}
				}
			}
			if cfg.Trailer != "" {
				n, err := io.WriteString(w, strconv.Itoa(id)+cfg.Trailer)
				counts[id] += int64(n)
				if err != nil {
					return fmt.Errorf("writer %d trailer: %w", id, err)
				}
			}
			logger.Debug("writer finished", "writer", id, "bytes", counts[id])
			return nil
		})
	}
	writeErr := g.Wait()

	// Close even after a write failure so buffered lines are not lost.
	closeErr := closeWithRetry(closer, cfg, logger)

	res := &runResult{Lines: cfg.Writers * cfg.Lines, Elapsed: time.Since(start)}
	for _, n := range counts {
		res.Bytes += n
	}
	if writeErr != nil {
		return res, writeErr
	}
	if closeErr != nil {
		return res, fmt.Errorf("close sink: %w", closeErr)
	}
	return res, nil
}

// closeWithRetry closes c, retrying with exponential backoff. A failed close of
// a linesink.Writer keeps its undrained lines, so retrying is safe.
func closeWithRetry(c io.Closer, cfg RunConfig, logger *slog.Logger) error {
	bo := backoff.NewExponentialBackOff()
	if cfg.CloseBackoff > 0 {
		bo.InitialInterval = cfg.CloseBackoff
	}
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0

	return backoff.RetryNotify(c.Close, backoff.WithMaxRetries(bo, uint64(cfg.CloseRetries)),
		func(err error, next time.Duration) {
			logger.Warn("close failed; retrying", "error", err, "backoff", next)
		})
}
