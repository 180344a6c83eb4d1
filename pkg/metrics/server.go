package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the default Prometheus registry over HTTP.
// Nothing starts automatically: call Start to run it and Stop to shut it down.
type Server struct {
	server *http.Server
	ln     net.Listener
}

// Start binds addr and serves /metrics in the background. Binding errors are
// returned immediately; use ":0" to pick a free port and Addr to learn it.
func Start(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", ln.Addr().String(), "error", err)
		}
	}()

	return &Server{server: srv, ln: ln}, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	if s == nil || s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop gracefully shuts down the metrics server with a timeout.
func (s *Server) Stop() error {
	if s == nil || s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
