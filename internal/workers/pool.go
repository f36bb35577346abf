// Package workers provides the bounded worker pools that run scan jobs and
// persist their results. Pools support queuing, retries, rate limiting and
// graceful shutdown.
package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/anstrom/portward/internal/logging"
	"github.com/anstrom/portward/internal/metrics"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = stderrors.New("job queue is full")
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = stderrors.New("worker pool is shut down")
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for metrics and logging.
	Type() string
}

// Finisher is implemented by jobs that want to observe their final result,
// after the last attempt has run.
type Finisher interface {
	Finish(result Result)
}

// Result represents the result of executing a job.
type Result struct {
	JobID    string
	JobType  string
	Error    error
	Duration time.Duration
	Retries  int
}

// Config holds configuration for the worker pool.
type Config struct {
	// Name labels the pool in logs and metrics.
	Name string
	// Size is the number of worker goroutines to create.
	Size int
	// QueueSize is the maximum number of jobs waiting for a worker.
	QueueSize int
	// MaxRetries is the maximum number of retries for failed jobs.
	MaxRetries int
	// RetryDelay is the delay between retries.
	RetryDelay time.Duration
	// ShutdownTimeout is the maximum time to wait for queued jobs to drain.
	ShutdownTimeout time.Duration
	// RateLimit is the maximum number of job starts per second (0 = no limit).
	RateLimit float64
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Name:            "default",
		Size:            10,
		QueueSize:       100,
		MaxRetries:      3,
		RetryDelay:      time.Second,
		ShutdownTimeout: 30 * time.Second,
		RateLimit:       0,
	}
}

// Pool manages a pool of worker goroutines for concurrent job execution.
type Pool struct {
	config  Config
	jobs    chan Job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter
	metrics metrics.Collector
	logger  *slog.Logger

	startOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithMetrics reports job executions to c.
func WithMetrics(c metrics.Collector) Option {
	return func(p *Pool) {
		p.metrics = metrics.OrNoop(c)
	}
}

// WithLogger replaces the pool logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// New creates a new worker pool with the given configuration.
func New(config Config, opts ...Option) *Pool {
	if config.Size <= 0 {
		config.Size = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	if config.Name == "" {
		config.Name = "default"
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &Pool{
		config:  config,
		jobs:    make(chan Job, config.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		metrics: metrics.Noop{},
		logger:  logging.Component("workers").With("pool", config.Name),
	}

	if config.RateLimit > 0 {
		pool.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Start launches the worker goroutines. It is safe to call more than once.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize,
			"rate_limit", p.config.RateLimit)

		for i := 0; i < p.config.Size; i++ {
			p.wg.Add(1)
			go p.run(i)
		}
	})
}

// Submit queues a job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		p.logger.Debug("Job submitted to worker pool",
			"job_id", job.ID(),
			"job_type", job.Type())
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of jobs waiting for a worker.
func (p *Pool) QueueDepth() int {
	return len(p.jobs)
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. When ctx ends or the shutdown timeout passes first, running jobs
// are cancelled and Shutdown waits for the workers to return.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	// A pool that never started still has to drain its queue.
	p.Start()

	p.logger.Info("Shutting down worker pool", "queued", len(p.jobs))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var timeout <-chan time.Time
	if p.config.ShutdownTimeout > 0 {
		timer := time.NewTimer(p.config.ShutdownTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var err error
	select {
	case <-done:
		p.logger.Info("Worker pool shutdown completed")
	case <-ctx.Done():
		err = ctx.Err()
	case <-timeout:
		err = context.DeadlineExceeded
	}

	if err != nil {
		p.logger.Warn("Worker pool shutdown timeout, cancelling running jobs")
		p.cancel()
		<-done
	}
	p.cancel()
	return err
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", "worker_id", id)
	defer p.logger.Debug("Worker stopped", "worker_id", id)

	for job := range p.jobs {
		p.execute(id, job)
	}
}

// execute runs one job with retry logic and reports the final result.
func (p *Pool) execute(workerID int, job Job) {
	start := time.Now()
	result := Result{JobID: job.ID(), JobType: job.Type()}

	if p.limiter != nil {
		if err := p.limiter.Wait(p.ctx); err != nil {
			result.Error = err
			p.finish(workerID, job, result, start)
			return
		}
	}

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		result.Retries = attempt
		result.Error = job.Execute(p.ctx)
		if result.Error == nil || p.ctx.Err() != nil {
			break
		}

		if attempt < p.config.MaxRetries {
			p.logger.Debug("Job failed, retrying",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"attempt", attempt+1,
				"max_retries", p.config.MaxRetries,
				"error", result.Error)

			select {
			case <-time.After(p.config.RetryDelay):
			case <-p.ctx.Done():
			}
		}
	}

	p.finish(workerID, job, result, start)
}

func (p *Pool) finish(workerID int, job Job, result Result, start time.Time) {
	result.Duration = time.Since(start)

	status := "success"
	if result.Error != nil {
		status = "error"
		p.logger.Error("Job failed after retries",
			"job_id", job.ID(),
			"job_type", job.Type(),
			"retries", result.Retries,
			"error", result.Error,
			"worker_id", workerID)
	} else {
		p.logger.Debug("Job completed successfully",
			"job_id", job.ID(),
			"job_type", job.Type(),
			"duration", result.Duration,
			"worker_id", workerID,
			"retries", result.Retries)
	}
	p.metrics.WorkerJob(p.config.Name, status, result.Retries, result.Duration)

	if f, ok := job.(Finisher); ok {
		f.Finish(result)
	}
}

// Func adapts a function to the Job interface.
type Func struct {
	JobID   string
	JobType string
	Run     func(ctx context.Context) error
	// OnFinish, when set, receives the final result.
	OnFinish func(Result)
}

// Execute implements the Job interface.
func (f *Func) Execute(ctx context.Context) error {
	return f.Run(ctx)
}

// ID implements the Job interface.
func (f *Func) ID() string {
	return f.JobID
}

// Type implements the Job interface.
func (f *Func) Type() string {
	return f.JobType
}

// Finish implements Finisher.
func (f *Func) Finish(result Result) {
	if f.OnFinish != nil {
		f.OnFinish(result)
	}
}
