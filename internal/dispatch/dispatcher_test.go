package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linhduongtuan/pycdispatch/internal/pool"
	"github.com/linhduongtuan/pycdispatch/internal/report"
	"github.com/linhduongtuan/pycdispatch/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCompiler mirrors the instrumented fake used in the pool tests, at the
// level the dispatcher wires things together.
type fakeCompiler struct {
	fail    map[string]bool
	panicOn map[string]bool
	delay   time.Duration

	active    atomic.Int64
	maxActive atomic.Int64
}

func (f *fakeCompiler) Compile(_ context.Context, path string) error {
	cur := f.active.Add(1)
	for {
		peak := f.maxActive.Load()
		if cur <= peak || f.maxActive.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer f.active.Add(-1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicOn[path] {
		panic("compiler fault: " + path)
	}
	if f.fail[path] {
		return errors.New("compilation failed: " + path)
	}
	return nil
}

// runPipeline wires source, pool, reporter and dispatcher the same way main
// does and runs the whole thing over an in-memory stream.
func runPipeline(t *testing.T, input string, compiler *fakeCompiler, workers int) (outputLines []string, exitCode int) {
	t.Helper()

	ctx := context.Background()
	logger := testLogger()
	var out bytes.Buffer

	p := pool.New(workers, compiler, logger)
	p.Start(ctx)
	defer p.Release()

	src := source.New(strings.NewReader(input), logger)
	go src.Run(ctx)

	reporter := report.New(&out, logger)

	d := New(src, p, reporter, logger)
	require.NoError(t, d.Run(ctx))

	if s := strings.TrimSuffix(out.String(), "\n"); s != "" {
		outputLines = strings.Split(s, "\n")
	}
	return outputLines, reporter.ExitCode()
}

func TestAllJobsSucceed(t *testing.T) {
	paths := make([]string, 0, 12)
	var input strings.Builder
	for i := 0; i < 12; i++ {
		path := fmt.Sprintf("site-packages/mod_%d.py", i)
		paths = append(paths, path)
		input.WriteString(path + "\n")
	}

	lines, code := runPipeline(t, input.String(), &fakeCompiler{}, 4)

	// Output is a permutation of the input: every path exactly once, in
	// completion order, which need not match submission order.
	assert.ElementsMatch(t, paths, lines)
	assert.Equal(t, 0, code)
}

func TestFailedJobsStillReported(t *testing.T) {
	compiler := &fakeCompiler{fail: map[string]bool{"b.py": true}}

	lines, code := runPipeline(t, "a.py\nb.py\nc.py\n", compiler, 2)

	assert.ElementsMatch(t, []string{"a.py", "b.py", "c.py"}, lines)
	assert.Equal(t, 1, code)
}

func TestEmptyInput(t *testing.T) {
	lines, code := runPipeline(t, "", &fakeCompiler{}, 2)

	assert.Empty(t, lines)
	assert.Equal(t, 0, code)
}

func TestUnterminatedTrailingLineNeverRuns(t *testing.T) {
	lines, code := runPipeline(t, "a.py\nb.py", &fakeCompiler{}, 2)

	assert.Equal(t, []string{"a.py"}, lines)
	assert.Equal(t, 0, code)
}

func TestDrainCollectsInFlightResults(t *testing.T) {
	// With slow jobs and a short input, end-of-stream arrives while every
	// job is still in flight. Draining must still record all of them.
	compiler := &fakeCompiler{delay: 30 * time.Millisecond}

	lines, code := runPipeline(t, "a.py\nb.py\nc.py\nd.py\ne.py\n", compiler, 4)

	assert.ElementsMatch(t, []string{"a.py", "b.py", "c.py", "d.py", "e.py"}, lines)
	assert.Equal(t, 0, code)
}

func TestPanickingJobCountsAsFailure(t *testing.T) {
	compiler := &fakeCompiler{panicOn: map[string]bool{"b.py": true}}

	lines, code := runPipeline(t, "a.py\nb.py\nc.py\n", compiler, 2)

	assert.ElementsMatch(t, []string{"a.py", "b.py", "c.py"}, lines)
	assert.Equal(t, 1, code)
}

func TestBoundedConcurrencyEndToEnd(t *testing.T) {
	const workers = 3
	compiler := &fakeCompiler{delay: 15 * time.Millisecond}

	var input strings.Builder
	for i := 0; i < 20; i++ {
		input.WriteString(fmt.Sprintf("f%d.py\n", i))
	}

	_, code := runPipeline(t, input.String(), compiler, workers)

	assert.Equal(t, 0, code)
	assert.LessOrEqual(t, compiler.maxActive.Load(), int64(workers))
}

func TestInvalidEncodingDrainsAndExitsClean(t *testing.T) {
	// The bad line ends intake like end-of-stream; jobs read before it are
	// still executed and reported, and the read error is not a job failure.
	lines, code := runPipeline(t, "a.py\n\xff\xfe.py\nb.py\n", &fakeCompiler{}, 2)

	assert.Equal(t, []string{"a.py"}, lines)
	assert.Equal(t, 0, code)
}

func TestCancellationAbortsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := testLogger()
	var out bytes.Buffer

	compiler := &fakeCompiler{delay: 50 * time.Millisecond}
	p := pool.New(1, compiler, logger)
	p.Start(ctx)
	defer p.Release()

	var input strings.Builder
	for i := 0; i < 50; i++ {
		input.WriteString(fmt.Sprintf("f%d.py\n", i))
	}
	src := source.New(strings.NewReader(input.String()), logger)
	go src.Run(ctx)

	d := New(src, p, report.New(&out, logger), logger)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop after cancellation")
	}
}
