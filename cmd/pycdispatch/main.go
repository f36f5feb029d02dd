// cmd/pycdispatch/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linhduongtuan/pycdispatch/internal/config"
	"github.com/linhduongtuan/pycdispatch/internal/dispatch"
	"github.com/linhduongtuan/pycdispatch/internal/infra/python"
	"github.com/linhduongtuan/pycdispatch/internal/pool"
	"github.com/linhduongtuan/pycdispatch/internal/report"
	"github.com/linhduongtuan/pycdispatch/internal/source"
	"github.com/linhduongtuan/pycdispatch/internal/tracing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Initialize logger. Stdout carries the completion stream, so all
	// logging goes to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)
	log.SetOutput(os.Stderr)

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 3. Initialize tracer if enabled
	if cfg.TraceEnabled {
		tracerShutdown, err := tracing.InitTracer("pycdispatch", os.Stderr)
		if err != nil {
			log.Fatalf("failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := tracerShutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	runID := uuid.New().String()
	logger.Info("starting dispatcher", "run_id", runID, "workers", cfg.Workers)

	// 4. Create root context and set up graceful shutdown
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel, logger)

	// 5. Resolve the interpreter
	pythonPath := cfg.PythonPath
	if pythonPath == "" {
		pythonPath, err = python.InterpreterPath(cfg.Prefix, cfg.PythonVersion)
		if err != nil {
			log.Fatalf("Failed to resolve interpreter: %v", err)
		}
	}
	logger.Info("using interpreter", "python", pythonPath)

	// 6. Instantiate components
	compiler := python.NewInterpreterCompiler(pythonPath, cfg.Prefix, cfg.JobTimeout, logger)

	workerPool := pool.New(cfg.Workers, compiler, logger)
	workerPool.Start(rootCtx)
	// The pool must be released on every exit path, normal or abnormal.
	defer workerPool.Release()

	src := source.New(os.Stdin, logger)
	go src.Run(rootCtx)

	reporter := report.New(os.Stdout, logger)

	// 7. Optionally expose metrics
	if cfg.MetricsListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.MetricsListenAddr, Handler: mux}

		logger.Info("starting metrics server", "addr", cfg.MetricsListenAddr)
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	// 8. Run the multiplex loop until every job has reported back
	dispatcher := dispatch.New(src, workerPool, reporter, logger)
	if err := dispatcher.Run(rootCtx); err != nil {
		logger.Error("dispatcher aborted", "error", err)
		return 1
	}

	return reporter.ExitCode()
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	}()
}
