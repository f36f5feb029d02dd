// internal/pool/pool.go
package pool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/linhduongtuan/pycdispatch/internal/domain"
	"github.com/linhduongtuan/pycdispatch/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Pool executes compilation jobs concurrently across a fixed set of workers.
// Submit never blocks the caller: jobs beyond the worker count queue in an
// internal backlog with no upper bound, so the worker count is the only
// concurrency limit.
type Pool struct {
	size     int
	compiler domain.Compiler
	logger   *slog.Logger
	tracer   trace.Tracer

	submit  chan domain.Job
	work    chan domain.Job
	results chan domain.Result
	wg      sync.WaitGroup

	releaseOnce sync.Once
}

// New creates a pool of size workers running the given compiler. Start must
// be called before any Submit.
func New(size int, compiler domain.Compiler, logger *slog.Logger) *Pool {
	return &Pool{
		size:     size,
		compiler: compiler,
		logger:   logger.With("component", "worker-pool"),
		tracer:   otel.Tracer("pycdispatch-pool"),
		submit:   make(chan domain.Job),
		work:     make(chan domain.Job),
		results:  make(chan domain.Result, size),
	}
}

// Start launches the backlog pump and the worker goroutines. The context
// bounds every job execution; canceling it terminates in-flight interpreter
// processes and lets workers exit even if nobody drains Results.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("starting workers", "count", p.size)

	go p.pump(ctx)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit hands a job to the pool. It never blocks beyond the pump handoff:
// excess jobs queue in the backlog, and once the pool's context is canceled
// submissions are accepted but dropped without a result. It must not be
// called after Release.
func (p *Pool) Submit(job domain.Job) {
	p.submit <- job
}

// Results returns the channel on which job outcomes are delivered, in
// completion order. It is closed after Release once every worker has exited.
func (p *Pool) Results() <-chan domain.Result {
	return p.results
}

// Release stops intake, waits for the backlog to drain and all workers to
// finish, then closes Results. Safe to call more than once; every dispatcher
// exit path must reach it. While the pool's context is alive the caller must
// keep draining Results until Release returns, otherwise workers with more
// than size undelivered results would block the shutdown; after cancellation
// Release needs no draining.
func (p *Pool) Release() {
	p.releaseOnce.Do(func() {
		close(p.submit)
		p.wg.Wait()
		close(p.results)
		p.logger.Info("all workers stopped")
	})
}

// pump owns the unbounded backlog between Submit and the workers. It exits
// when the submit channel is closed and the backlog has drained, or when the
// context is canceled.
func (p *Pool) pump(ctx context.Context) {
	defer close(p.work)
	defer metrics.QueueDepth.Set(0)

	var backlog []domain.Job
	for {
		metrics.QueueDepth.Set(float64(len(backlog)))

		if len(backlog) == 0 {
			select {
			case job, ok := <-p.submit:
				if !ok {
					return
				}
				backlog = append(backlog, job)
			case <-ctx.Done():
				p.drainSubmit()
				return
			}
			continue
		}

		select {
		case job, ok := <-p.submit:
			if !ok {
				// Intake closed; push the remaining backlog to the workers.
				for _, job := range backlog {
					select {
					case p.work <- job:
					case <-ctx.Done():
						return
					}
				}
				return
			}
			backlog = append(backlog, job)
		case p.work <- backlog[0]:
			backlog = backlog[1:]
		case <-ctx.Done():
			p.drainSubmit()
			return
		}
	}
}

// drainSubmit keeps accepting submissions after cancellation until Release
// closes the channel, so a Submit racing shutdown can never block its caller.
// The jobs are dropped; no result is delivered for them.
func (p *Pool) drainSubmit() {
	dropped := 0
	for range p.submit {
		dropped++
	}
	if dropped > 0 {
		p.logger.Warn("discarded jobs submitted after cancellation", "count", dropped)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With("worker_id", id)

	for job := range p.work {
		metrics.ActiveWorkers.Inc()
		success := p.runJob(ctx, logger, job)
		metrics.ActiveWorkers.Dec()

		select {
		case p.results <- domain.Result{Job: job, Success: success}:
		case <-ctx.Done():
			return
		}
	}
}

// runJob executes the compiler for one job. A panic inside the compiler is
// recovered here and converted into a failed result so one faulty job cannot
// take down the scheduler or leave the pool unreleased.
func (p *Pool) runJob(ctx context.Context, logger *slog.Logger, job domain.Job) (success bool) {
	ctx, span := p.tracer.Start(ctx, "pool.runJob",
		trace.WithAttributes(
			attribute.String("job.path", job.Path),
			attribute.String("execution.id", job.ExecutionID),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			success = false
			span.SetStatus(codes.Error, "compiler panicked")
			logger.Error("compiler panicked", "path", job.Path, "execution_id", job.ExecutionID, "panic", r)
			metrics.CompilationsTotal.WithLabelValues("failed").Inc()
		}
	}()

	if err := p.compiler.Compile(ctx, job.Path); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compilation failed")
		logger.Warn("compilation failed", "path", job.Path, "execution_id", job.ExecutionID, "error", err)
		metrics.CompilationsTotal.WithLabelValues("failed").Inc()
		return false
	}

	metrics.CompilationsTotal.WithLabelValues("success").Inc()
	return true
}
