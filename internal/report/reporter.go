// internal/report/reporter.go
package report

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"

	"github.com/linhduongtuan/pycdispatch/internal/domain"
)

// Reporter folds job outcomes into a single aggregate result and emits one
// line per completed job on the output stream, in completion order. Only the
// scheduler calls Record, so no locking is needed here; a concurrent caller
// would have to add its own serialization.
type Reporter struct {
	w         *bufio.Writer
	aggregate bool
	completed int
	logger    *slog.Logger
}

// New creates a Reporter writing completion lines to w. The aggregate starts
// out true and stays true only if every recorded job succeeded.
func New(w io.Writer, logger *slog.Logger) *Reporter {
	return &Reporter{
		w:         bufio.NewWriter(w),
		aggregate: true,
		logger:    logger.With("component", "reporter"),
	}
}

// Record folds one result into the aggregate and emits its path. The line is
// flushed immediately so the upstream consumer sees each completion as it
// happens, not in batches.
func (r *Reporter) Record(res domain.Result) error {
	r.aggregate = r.aggregate && res.Success
	r.completed++
	r.logger.Debug("job completed", "path", res.Job.Path, "success", res.Success)

	if _, err := fmt.Fprintln(r.w, res.Job.Path); err != nil {
		return fmt.Errorf("write completion line: %w", err)
	}
	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("flush completion line: %w", err)
	}
	return nil
}

// Succeeded reports whether every recorded job succeeded so far.
func (r *Reporter) Succeeded() bool {
	return r.aggregate
}

// Completed returns the number of results recorded.
func (r *Reporter) Completed() int {
	return r.completed
}

// ExitCode derives the process exit status from the aggregate: 0 if every
// job succeeded, 1 otherwise.
func (r *Reporter) ExitCode() int {
	if r.aggregate {
		return 0
	}
	return 1
}
