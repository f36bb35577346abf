// Package jobs owns the lifecycle of scan jobs: accepting requests,
// running them on a bounded worker pool, answering status and cancel
// queries, and handing finished jobs to the result recorder.
package jobs

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/logging"
	"github.com/anstrom/portward/internal/metrics"
	"github.com/anstrom/portward/internal/scanning"
	"github.com/anstrom/portward/internal/workers"
)

// Scheduler executes one scan request against a resolved address.
type Scheduler interface {
	Run(ctx context.Context, host string, req scanning.ScanRequest, sink scanning.Sink) (scanning.Outcome, error)
}

// Resolver turns a target into the address every probe dials.
type Resolver interface {
	Resolve(ctx context.Context, target string) (string, error)
}

// Config holds registry sizing and persistence policy.
type Config struct {
	// MaxConcurrentScans is the number of jobs scanning at the same time.
	MaxConcurrentScans int
	// QueueSize is the number of accepted jobs waiting for a scan slot.
	QueueSize int
	// PersistRetries is the number of extra persistence attempts.
	PersistRetries int
	// PersistRetryDelay is the pause between persistence attempts.
	PersistRetryDelay time.Duration
	// Defaults fills omitted request fields.
	Defaults scanning.Defaults
}

// DefaultConfig returns the registry configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentScans: 4,
		QueueSize:          64,
		PersistRetries:     3,
		PersistRetryDelay:  2 * time.Second,
		Defaults: scanning.Defaults{
			StartPort:      1,
			EndPort:        1000,
			Timeout:        time.Second,
			Concurrency:    200,
			MaxConcurrency: 1000,
		},
	}
}

// Registry is the single source of truth for job existence and status.
type Registry struct {
	cfg       Config
	scheduler Scheduler
	resolver  Resolver
	recorder  *Recorder
	notifier  Notifier
	metrics   metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	scanPool    *workers.Pool
	persistPool *workers.Pool

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards the map only; job state has its own lock.
	mu     sync.RWMutex
	jobs   map[string]*job
	closed bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore enables persistence of finished jobs.
func WithStore(store Store) Option {
	return func(r *Registry) {
		if store != nil {
			r.recorder = NewRecorder(store)
		}
	}
}

// WithNotifier sends job events to n.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithMetrics reports scan and worker metrics to c.
func WithMetrics(c metrics.Collector) Option {
	return func(r *Registry) {
		r.metrics = metrics.OrNoop(c)
	}
}

// WithLogger replaces the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a registry and starts its worker pools. Close releases them.
func New(cfg Config, scheduler Scheduler, resolver Resolver, opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		cfg:       cfg,
		scheduler: scheduler,
		resolver:  resolver,
		notifier:  nopNotifier{},
		metrics:   metrics.Noop{},
		logger:    logging.Component("jobs"),
		now:       time.Now,
		newID:     uuid.NewString,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*job),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.scanPool = workers.New(workers.Config{
		Name:      "scan",
		Size:      max(cfg.MaxConcurrentScans, 1),
		QueueSize: cfg.QueueSize,
	}, workers.WithMetrics(r.metrics), workers.WithLogger(r.logger.With("pool", "scan")))

	r.persistPool = workers.New(workers.Config{
		Name:       "persist",
		Size:       max(cfg.MaxConcurrentScans, 1),
		QueueSize:  max(cfg.QueueSize, 1) + max(cfg.MaxConcurrentScans, 1),
		MaxRetries: max(cfg.PersistRetries, 0),
		RetryDelay: cfg.PersistRetryDelay,
	}, workers.WithMetrics(r.metrics), workers.WithLogger(r.logger.With("pool", "persist")))

	r.scanPool.Start()
	r.persistPool.Start()
	return r
}

// Create validates req, registers a QUEUED job and schedules it. It returns
// the job id without waiting for the scan. Validation faults are returned
// synchronously and no job is created. A full queue is reported as
// SERVICE_UNAVAILABLE and no job is created either.
func (r *Registry) Create(req scanning.ScanRequest) (string, error) {
	req = req.WithDefaults(r.cfg.Defaults)
	if err := req.Validate(); err != nil {
		return "", err
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return "", errors.NewScanError(errors.CodeServiceUnavailable, "Scan registry is shutting down")
	}

	j := newJob(r.ctx, r.newID(), req, r.now(), r.logger)

	r.mu.Lock()
	r.jobs[j.id] = j
	r.mu.Unlock()

	// The worker waits for the queued event so subscribers see it first.
	queued := make(chan struct{})
	task := &workers.Func{
		JobID:   j.id,
		JobType: "scan",
		Run: func(ctx context.Context) error {
			<-queued
			r.execute(ctx, j)
			return nil
		},
	}
	if err := r.scanPool.Submit(task); err != nil {
		r.mu.Lock()
		delete(r.jobs, j.id)
		r.mu.Unlock()
		j.cancel()

		if stderrors.Is(err, workers.ErrQueueFull) {
			return "", errors.WrapScanError(errors.CodeServiceUnavailable, "Scan queue is full, retry later", err)
		}
		return "", errors.WrapScanError(errors.CodeServiceUnavailable, "Scan registry is shutting down", err)
	}

	j.logger.Info("Scan job queued",
		"start_port", req.StartPort,
		"end_port", req.EndPort,
		"concurrency", req.Concurrency,
		"timeout", req.Timeout)
	r.emit(EventStatus, j.snapshot(), nil)
	close(queued)
	return j.id, nil
}

func (r *Registry) lookup(id string) (*job, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ErrJobNotFound(id)
	}
	return j, nil
}

// Status returns a snapshot of job id.
func (r *Registry) Status(id string) (Snapshot, error) {
	j, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return j.snapshot(), nil
}

// Cancel requests cancellation of job id. Cancelling a terminal job is a
// no-op. The returned snapshot reflects the state right after the request.
func (r *Registry) Cancel(id string) (Snapshot, error) {
	j, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	r.cancelJob(j)
	return j.snapshot(), nil
}

func (r *Registry) cancelJob(j *job) {
	status, changed := j.requestCancel(r.now())
	if status.Terminal() && !changed {
		return
	}

	j.logger.Info("Scan job cancellation requested", "status", status)
	if changed {
		// Cancelled before it ever ran: nothing to scan or persist.
		r.emit(EventStatus, j.snapshot(), nil)
		j.finalize()
	}
}

// List returns snapshots of every registered job, newest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	all := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		all = append(all, j)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(all))
	for _, j := range all {
		out = append(out, j.snapshot())
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// Evict removes final jobs that finished more than ttl ago and returns how
// many were removed. Jobs still scanning or persisting are kept.
func (r *Registry) Evict(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	evicted := 0
	for id, j := range r.jobs {
		if j.finishedBefore(cutoff) {
			delete(r.jobs, id)
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted > 0 {
		r.metrics.JobsEvicted(evicted)
		r.logger.Debug("Evicted finished jobs", "count", evicted, "ttl", ttl)
	}
	return evicted
}

// Wait blocks until job id is final (scanned and persisted, or failed) or
// ctx ends, and returns its snapshot.
func (r *Registry) Wait(ctx context.Context, id string) (Snapshot, error) {
	j, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return j.snapshot(), ctx.Err()
	}
}

// Close stops accepting jobs, cancels every unfinished job and waits for
// the pools to drain until ctx ends.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	all := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		all = append(all, j)
	}
	r.mu.Unlock()

	for _, j := range all {
		r.cancelJob(j)
	}

	scanErr := r.scanPool.Shutdown(ctx)
	persistErr := r.persistPool.Shutdown(ctx)
	r.cancel()

	if scanErr != nil {
		return fmt.Errorf("scan pool shutdown: %w", scanErr)
	}
	if persistErr != nil {
		return fmt.Errorf("persist pool shutdown: %w", persistErr)
	}
	return nil
}

// execute runs one job on a scan worker.
func (r *Registry) execute(poolCtx context.Context, j *job) {
	if !j.begin(r.now()) {
		return
	}
	stop := context.AfterFunc(poolCtx, func() { r.cancelJob(j) })
	defer stop()

	r.metrics.ScanStarted()
	timer := metrics.NewTimer()
	j.logger.Info("Scan job started")
	r.emit(EventStatus, j.snapshot(), nil)

	addr, err := r.resolver.Resolve(j.ctx, j.req.Target)
	if err != nil {
		if j.cancelRequested() {
			r.finishScan(j, StatusCancelled, timer)
			return
		}
		j.logger.Warn("Target resolution failed", "error", err)
		if j.fail(err, r.now()) {
			r.metrics.ScanFinished(string(StatusFailed), timer.Elapsed())
			r.emit(EventStatus, j.snapshot(), nil)
		}
		j.finalize()
		return
	}
	j.setAddress(addr)

	outcome, err := r.scheduler.Run(j.ctx, addr, j.req, sinkFor(r, j))
	if err != nil {
		j.logger.Error("Scan job failed", "error", err)
		if j.fail(err, r.now()) {
			r.metrics.ScanFinished(string(StatusFailed), timer.Elapsed())
			r.emit(EventStatus, j.snapshot(), nil)
		}
		j.finalize()
		return
	}

	status := StatusCompleted
	if outcome.Cancelled || j.cancelRequested() {
		status = StatusCancelled
	}
	r.finishScan(j, status, timer)
}

// finishScan records the scan's terminal status and hands the job to the
// recorder.
func (r *Registry) finishScan(j *job, status Status, timer metrics.Timer) {
	if !j.finishScan(status, r.now()) {
		j.finalize()
		return
	}

	snap := j.summary()
	r.metrics.ScanFinished(string(status), timer.Elapsed())
	r.metrics.PortsProbed(string(scanning.StateOpen), snap.Counts.Open)
	r.metrics.PortsProbed(string(scanning.StateClosed), snap.Counts.Closed)
	r.metrics.PortsProbed(string(scanning.StateFiltered), snap.Counts.Filtered)
	r.metrics.PortsProbed(string(scanning.StateError), snap.Counts.Error)

	j.logger.Info("Scan job finished",
		"status", status,
		"progress_done", snap.ProgressDone,
		"progress_total", snap.ProgressTotal,
		"open_ports", snap.Counts.Open,
		"duration", timer.Elapsed())
	r.emit(EventStatus, j.snapshot(), nil)

	r.persist(j)
}

// persist schedules the recorder for j, or finalizes j when no store is
// configured.
func (r *Registry) persist(j *job) {
	if r.recorder == nil {
		j.finalize()
		return
	}

	task := &workers.Func{
		JobID:   j.id,
		JobType: "persist",
		Run: func(ctx context.Context) error {
			return r.recorder.Record(ctx, j)
		},
		OnFinish: func(res workers.Result) {
			r.persisted(j, res.Error)
		},
	}
	if err := r.persistPool.Submit(task); err != nil {
		r.persisted(j, errors.WrapDatabaseError(errors.CodeServiceUnavailable, "Persistence queue unavailable", err))
	}
}

func (r *Registry) persisted(j *job, err error) {
	defer j.finalize()

	if err != nil {
		r.metrics.PersistFailed()
		j.logger.Error("Failed to persist scan results", "error", err)
		if j.fail(err, r.now()) {
			r.emit(EventStatus, j.snapshot(), nil)
		}
		return
	}

	j.markPersisted()
	j.logger.Info("Scan results persisted", "session_id", j.summary().SessionID)
	r.emit(EventPersisted, j.snapshot(), nil)
}

// emit sends an event. It is never called with a job lock held.
func (r *Registry) emit(kind EventType, snap Snapshot, port *scanning.PortResult) {
	r.notifier.Notify(Event{
		Type:      kind,
		JobID:     snap.ID,
		Timestamp: r.now(),
		Job:       snap,
		Port:      port,
	})
}

// sinkFor adapts a job to the scheduler's Sink and emits progress events.
func sinkFor(r *Registry, j *job) scanning.Sink {
	return scanning.SinkFunc(func(result scanning.PortResult) bool {
		update := j.record(result)
		if !update.accepted {
			return false
		}
		if update.open {
			port := result
			r.emit(EventPortOpen, update.view, &port)
		}
		if update.newPercent {
			r.emit(EventProgress, update.view, nil)
		}
		return true
	})
}
