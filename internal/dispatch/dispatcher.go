// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"log/slog"

	"github.com/linhduongtuan/pycdispatch/internal/domain"
	"github.com/linhduongtuan/pycdispatch/internal/pool"
	"github.com/linhduongtuan/pycdispatch/internal/report"
	"github.com/linhduongtuan/pycdispatch/internal/source"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// state models the lifecycle of the multiplex loop.
type state int

const (
	// stateRunning: one pending read is armed and results are collected.
	stateRunning state = iota
	// stateDraining: the input stream ended (or failed); no new reads, but
	// every outstanding job result is still awaited and recorded.
	stateDraining
	// stateTerminated: no pending read, no outstanding jobs.
	stateTerminated
)

// Dispatcher is the coordination loop: it multiplexes the single pending
// input read against all outstanding job executions, reacting to whichever
// finishes first. It is the sole owner of the pending-operation state, so the
// loop itself never needs a lock.
type Dispatcher struct {
	src      *source.Source
	pool     *pool.Pool
	reporter *report.Reporter
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New wires a Dispatcher from its collaborators. The caller starts the source
// and the pool, and releases the pool after Run returns.
func New(src *source.Source, p *pool.Pool, reporter *report.Reporter, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		src:      src,
		pool:     p,
		reporter: reporter,
		logger:   logger.With("component", "dispatcher"),
		tracer:   otel.Tracer("pycdispatch-dispatch"),
	}
}

// Run drives the loop until every submitted job has reported back or the
// context is canceled. Submission order equals read order; completion order
// is whatever the workers produce.
//
// The loop performs no CPU-bound work itself, it only dispatches and
// collects, so it never blocks on a job execution.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx, span := d.tracer.Start(ctx, "dispatch.Run")
	defer span.End()

	lines := d.src.Lines()
	results := d.pool.Results()

	// Count of outstanding executions. Together with the lines channel this
	// is the whole pending set: one read until end-of-stream, plus pending
	// jobs.
	pending := 0
	st := stateRunning

	for st != stateTerminated {
		select {
		case <-ctx.Done():
			d.logger.Warn("dispatcher canceled", "outstanding_jobs", pending)
			span.SetAttributes(attribute.Int("jobs.abandoned", pending))
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				if err := d.src.Err(); err != nil {
					// A read error ends intake the same way end-of-stream
					// does; it is not a per-job failure.
					d.logger.Warn("input stream ended with error", "error", err)
				}
				lines = nil
				st = stateDraining
				d.logger.Info("input stream ended, draining", "outstanding_jobs", pending)
				break
			}
			job := domain.Job{ExecutionID: uuid.NewString(), Path: line}
			d.pool.Submit(job)
			pending++

		case res := <-results:
			if err := d.reporter.Record(res); err != nil {
				d.logger.Error("failed to report job completion", "path", res.Job.Path, "error", err)
			}
			pending--
		}

		if st == stateDraining && pending == 0 {
			st = stateTerminated
		}
	}

	span.SetAttributes(attribute.Int("jobs.completed", d.reporter.Completed()))
	d.logger.Info("dispatcher terminated", "jobs_completed", d.reporter.Completed(), "all_succeeded", d.reporter.Succeeded())
	return nil
}
