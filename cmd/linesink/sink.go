package main

import (
	"fmt"
	"io"

	"github.com/loykin/linesink/cmd/linesink/sink/console"
	"github.com/loykin/linesink/cmd/linesink/sink/file"
)

// buildSink constructs the shared sink every writer ends up writing to.
func buildSink(cfg *Config) (io.WriteCloser, error) {
	switch cfg.Sink.Type {
	case "console":
		return console.New(cfg.Sink.Console.Stream), nil
	case "file":
		return file.New(cfg.Sink.File)
	default:
		return nil, fmt.Errorf("unsupported sink: %s", cfg.Sink.Type)
	}
}
