// internal/infra/python/compiler.go
package python

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/linhduongtuan/pycdispatch/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// interpreterCompiler implements domain.Compiler by invoking an external
// Python interpreter with `-m py_compile` for each source file.
type interpreterCompiler struct {
	python  string
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewInterpreterCompiler creates a compiler that runs the interpreter at
// python. prefix, when non-empty, is used as the working directory so
// prefix-relative source paths resolve the way the installer wrote them. A
// timeout of zero disables the per-job deadline.
func NewInterpreterCompiler(python, prefix string, timeout time.Duration, logger *slog.Logger) domain.Compiler {
	return &interpreterCompiler{
		python:  python,
		prefix:  prefix,
		timeout: timeout,
		logger:  logger.With("component", "python-compiler"),
		tracer:  otel.Tracer("pycdispatch-python"),
	}
}

// Compile byte-compiles one source file. A nil return means the interpreter
// exited zero; anything else, including a timeout, is a job failure.
func (c *interpreterCompiler) Compile(ctx context.Context, path string) error {
	ctx, span := c.tracer.Start(ctx, "python.Compile",
		trace.WithAttributes(attribute.String("source.path", path)))
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// -Wi silences warnings, -u keeps the interpreter unbuffered. py_compile
	// exits nonzero when the file does not compile.
	cmd := exec.CommandContext(ctx, c.python, "-Wi", "-u", "-m", "py_compile", path)
	if c.prefix != "" {
		cmd.Dir = c.prefix
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		span.SetStatus(codes.Error, "interpreter failed")
		span.RecordError(err)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			span.SetAttributes(attribute.String("python.stderr", msg))
			return fmt.Errorf("compile %s: %w: %s", path, err, msg)
		}
		return fmt.Errorf("compile %s: %w", path, err)
	}

	return nil
}
