package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/betedge/internal/adapters/mq/queue"
	"github.com/okian/betedge/internal/domain/picks"
	"github.com/okian/betedge/pkg/logger"
	"github.com/okian/betedge/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Analyzer turns a queued game into a recommendation.
type Analyzer interface {
	Analyze(ctx context.Context, job queue.Job) (picks.Recommendation, error)
}

// Publisher stores a finished recommendation.
type Publisher interface {
	Publish(ctx context.Context, rec picks.Recommendation) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// InMemoryWorker consumes jobs until its context ends or the queue drains.
type InMemoryWorker struct {
	queue     Queue
	analyzer  Analyzer
	publisher Publisher
	name      string
	logger    logger.Logger
	processed *atomic.Int64
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, a Analyzer, p Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		analyzer:  a,
		publisher: p,
		name:      "worker",
		logger:    logger.Get().Named("worker"),
		processed: new(atomic.Int64),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes jobs until ctx is done or the queue is closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job",
					logger.String("job_id", job.JobID),
					logger.String("game_id", job.Game.ID),
					logger.Error(err),
				)
			}
		}
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error { //nolint:gocritic // Job arrives by value from the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	rec, err := w.analyzer.Analyze(ctx, job)
	metrics.RecordAnalysisLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordAnalysisError()
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "analysis_error")
		return fmt.Errorf("analyze game %s: %w", job.Game.ID, err)
	}

	if err := w.publisher.Publish(ctx, rec); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "publish_error")
		return fmt.Errorf("publish game %s: %w", job.Game.ID, err)
	}

	metrics.RecordAnalysisJob()
	w.processed.Add(1)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger

	processed atomic.Int64
	wg        sync.WaitGroup
	mu        sync.Mutex
	cancel    context.CancelFunc
	running   bool
}

// NewPool creates workerCount workers. A count below one uses NumCPU.
func NewPool(workerCount int, q Queue, a Analyzer, p Publisher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range pool.workers {
		w := NewInMemoryWorker(q, a, p, WithName("worker-"+strconv.Itoa(i)))
		w.processed = &pool.processed
		pool.workers[i] = w
	}
	return pool
}

// Start launches every worker. Calling Start on a running pool does nothing.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(runCtx)
		}(w)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Stop cancels the workers without draining the queue and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.running = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown closes the queue and lets workers drain it, cancelling them if ctx
// or the pool timeout expires first.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var err error
	select {
	case <-done:
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker shutdown timed out")
		err = fmt.Errorf("worker shutdown: %w", shutdownCtx.Err())
	}
	p.Stop()
	return err
}

// Processed returns how many jobs were analysed and published.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}
