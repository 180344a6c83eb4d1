// Package linesink provides a simplified, stable root-level API for external users.
//
// Instead of importing internal subpackages, consumers can just:
//
//	import "github.com/loykin/linesink"
//
// and wrap any io.WriteCloser so that concurrent goroutines never interleave
// bytes within a line:
//
//	w := linesink.New("app", linesink.NopCloser(os.Stdout))
//	defer w.Close()
//	go func() {
//		l := w.Line() // one per goroutine
//		fmt.Fprintln(l, "hello")
//	}()
package linesink

import (
	"io"

	"github.com/loykin/linesink/internal/linesync"
	"github.com/loykin/linesink/internal/metrics"
	pkgmetrics "github.com/loykin/linesink/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Writer re-exports linesync.Writer for root-level usage.
type Writer = linesync.Writer

// Line re-exports linesync.Line, the per-goroutine handle of a Writer.
type Line = linesync.Line

// ErrClosed is returned by writes issued after the Writer was closed.
var ErrClosed = linesync.ErrClosed

// New wraps out. The name labels the writer's metrics.
func New(name string, out io.WriteCloser) *Writer {
	return linesync.New(name, out)
}

// NopCloser returns an io.WriteCloser whose Close does nothing.
func NopCloser(w io.Writer) io.WriteCloser { return linesync.NopCloser(w) }

// StartMetrics registers linesink metrics on the default Prometheus registry and starts an HTTP server.
// It returns a stop function to gracefully shut down the metrics server.
func StartMetrics(addr string) (func() error, error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}
	srv, err := pkgmetrics.Start(addr)
	if err != nil {
		return nil, err
	}
	return srv.Stop, nil
}
