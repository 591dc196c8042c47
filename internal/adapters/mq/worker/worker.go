// Package worker defines worker contracts for executing scheduled matches.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/agon/internal/adapters/mq/queue"
	"github.com/okian/agon/internal/domain/model"
	"github.com/okian/agon/pkg/logger"
	"github.com/okian/agon/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Task abstracts what workers read off the queue.
// Using the model.MatchTask type for consistency.
type Task = model.MatchTask

// Executor runs a single match and settles it one way or the other.
type Executor interface {
	Run(ctx context.Context, p model.Pairing, a, b model.Competitor) model.MatchOutcome
}

// Collector receives every settled outcome, judged and indeterminate
// alike. Rounds are barriered on outcome counts, so a worker must hand
// over exactly one outcome per task it dequeues.
type Collector interface {
	Collect(ctx context.Context, out model.MatchOutcome)
}

// Queue defines how workers receive match tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Worker drains match tasks and forwards their outcomes using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will finish the match in flight before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for executing matches.
type InMemoryWorker struct {
	queue     Queue
	executor  Executor
	collector Collector
	name      string

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, executor Executor, collector Collector, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		executor:  executor,
		collector: collector,
		name:      "worker", // default name
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	// Set up logger with worker name if not already set
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	taskChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-taskChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			w.processTask(ctx, task)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	// Signal shutdown
	w.stopOnce.Do(func() {
		close(w.shutdown)
	})

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processTask runs a single match and hands the outcome over.
// The executor settles every match, so the outcome always reaches the
// collector even when the judge never produced a verdict.
func (w *InMemoryWorker) processTask(ctx context.Context, t queue.Task) { //nolint:gocritic // hugeParam: MatchTask must be passed by value for channel semantics
	out := w.executor.Run(ctx, t.Pairing, t.A, t.B)

	if !out.Usable() {
		metrics.RecordErrorByComponent("worker", "indeterminate_match")
		w.logger.Debug(ctx, "forwarding indeterminate outcome",
			logger.Int("round", out.Round),
			logger.String("a_id", out.AID),
			logger.String("b_id", out.BID),
		)
	}

	w.collector.Collect(ctx, out)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, executor Executor, collector Collector) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			executor,
			collector,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	// Initialize worker metrics
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}

	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	stopCtx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
	defer cancel()

	for _, worker := range p.workers {
		_ = worker.Shutdown(stopCtx)
	}

	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new tasks
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	// Wait for all workers to finish or context to timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		if err := worker.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerActiveCount(0)

	return nil
}
