package source

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(t *testing.T, input string) ([]string, error) {
	t.Helper()

	src := New(strings.NewReader(input), testLogger())
	go src.Run(context.Background())

	var lines []string
	for line := range src.Lines() {
		lines = append(lines, line)
	}
	return lines, src.Err()
}

func TestYieldsTerminatedLines(t *testing.T) {
	lines, err := collect(t, "a.py\nb.py\nc.py\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.py", "c.py"}, lines)
}

func TestTrimsWhitespace(t *testing.T) {
	lines, err := collect(t, "  a.py \r\n\tb.py\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.py"}, lines)
}

func TestUnterminatedTrailingLineIsDropped(t *testing.T) {
	lines, err := collect(t, "a.py\nb.py")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, lines)
}

func TestEmptyInput(t *testing.T) {
	lines, err := collect(t, "")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestInvalidEncodingEndsStream(t *testing.T) {
	lines, err := collect(t, "a.py\n\xff\xfe.py\nb.py\n")
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	// Lines read before the bad one are still delivered; nothing after it is.
	assert.Equal(t, []string{"a.py"}, lines)
}

func TestCancellationClosesStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := New(strings.NewReader("a.py\nb.py\n"), testLogger())
	go src.Run(ctx)

	line, ok := <-src.Lines()
	require.True(t, ok)
	assert.Equal(t, "a.py", line)

	cancel()
	// The source may deliver at most the line it was already trying to send
	// before it observes cancellation and closes.
	for range src.Lines() {
	}
}
