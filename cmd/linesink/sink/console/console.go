package console

import (
	"io"
	"os"
	"strings"

	"github.com/loykin/linesink"
)

// New returns the process stdout or stderr depending on stream. Closing the
// returned sink leaves the stream open.
func New(stream string) io.WriteCloser {
	if strings.ToLower(stream) == "stderr" {
		return linesink.NopCloser(os.Stderr)
	}
	return linesink.NopCloser(os.Stdout)
}
