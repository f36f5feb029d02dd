// internal/source/source.go
package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// ErrInvalidEncoding is reported when a line on the input stream is not valid
// UTF-8. The dispatcher treats it exactly like end-of-stream: stop reading and
// drain outstanding work.
var ErrInvalidEncoding = errors.New("input line is not valid utf-8")

// Source incrementally decodes newline-delimited job descriptors from a
// stream. Run pushes each complete line onto the channel returned by Lines and
// closes it at end-of-stream or on a read error; Err reports the cause after
// the channel is closed.
type Source struct {
	r      *bufio.Reader
	lines  chan string
	err    error
	logger *slog.Logger
}

// New creates a Source reading from r. Run must be started for Lines to
// produce anything.
func New(r io.Reader, logger *slog.Logger) *Source {
	return &Source{
		r:      bufio.NewReader(r),
		lines:  make(chan string),
		logger: logger.With("component", "line-source"),
	}
}

// Lines returns the channel of decoded job descriptors. The channel is closed
// once: at end-of-stream, on a read error, or when the context is canceled.
func (s *Source) Lines() <-chan string {
	return s.lines
}

// Err returns the error that ended the stream, or nil for a clean
// end-of-stream. Only valid after Lines has been closed.
func (s *Source) Err() error {
	return s.err
}

// Run reads the stream until end-of-stream, a read error, or context
// cancellation. It is intended to run in its own goroutine.
func (s *Source) Run(ctx context.Context) {
	defer close(s.lines)

	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
				s.logger.Error("read from input stream failed", "error", err)
			} else if line != "" {
				// A trailing partial line with no terminator is not a
				// complete descriptor. The upstream writer terminates every
				// job line, so whatever is left here is discarded.
				s.logger.Warn("discarding unterminated trailing line", "line", line)
			}
			return
		}

		line = strings.TrimSpace(line)
		if !utf8.ValidString(line) {
			s.err = ErrInvalidEncoding
			s.logger.Error("stopping input stream", "error", s.err)
			return
		}

		select {
		case s.lines <- line:
		case <-ctx.Done():
			s.err = ctx.Err()
			return
		}
	}
}
