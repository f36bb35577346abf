// Package janitor periodically removes finished jobs from memory and
// expired sessions from the database.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/portward/internal/logging"
	"github.com/anstrom/portward/internal/metrics"
)

// Evicter drops terminal jobs finished more than ttl ago.
type Evicter interface {
	Evict(ttl time.Duration) int
}

// SessionPurger deletes stored sessions started before cutoff.
type SessionPurger interface {
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds the retention settings.
type Config struct {
	Schedule      string
	JobTTL        time.Duration
	SessionMaxAge time.Duration
}

// Result summarizes one cleanup pass.
type Result struct {
	JobsEvicted    int
	SessionsPurged int64
}

// Janitor runs cleanup passes on a cron schedule.
type Janitor struct {
	cfg      Config
	jobs     Evicter
	sessions SessionPurger
	metrics  metrics.Collector
	logger   *slog.Logger
	now      func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a janitor. sessions may be nil when no database is in use.
func New(cfg Config, jobs Evicter, sessions SessionPurger, m metrics.Collector) (*Janitor, error) {
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Schedule, err)
	}

	logger := logging.Component("janitor")
	ctx, cancel := context.WithCancel(context.Background())
	return &Janitor{
		cfg:      cfg,
		jobs:     jobs,
		sessions: sessions,
		metrics:  metrics.OrNoop(m),
		logger:   logger,
		now:      time.Now,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start schedules cleanup passes.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return fmt.Errorf("janitor is already running")
	}

	if _, err := j.cron.AddFunc(j.cfg.Schedule, j.runScheduled); err != nil {
		return fmt.Errorf("failed to add cleanup job: %w", err)
	}
	j.cron.Start()
	j.running = true

	j.logger.Info("Janitor started",
		"schedule", j.cfg.Schedule,
		"job_ttl", j.cfg.JobTTL,
		"session_max_age", j.cfg.SessionMaxAge)
	return nil
}

// Stop halts the schedule and waits for a running pass to return.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	j.mu.Unlock()

	j.cancel()
	<-j.cron.Stop().Done()
	j.logger.Info("Janitor stopped")
}

func (j *Janitor) runScheduled() {
	if _, err := j.RunOnce(j.ctx); err != nil {
		j.logger.Warn("Cleanup pass failed", "error", err)
	}
}

// RunOnce performs one cleanup pass. Jobs are always evicted; a session
// purge failure is returned after eviction took place.
func (j *Janitor) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	if j.jobs != nil && j.cfg.JobTTL > 0 {
		res.JobsEvicted = j.jobs.Evict(j.cfg.JobTTL)
	}

	if j.sessions != nil && j.cfg.SessionMaxAge > 0 {
		cutoff := j.now().Add(-j.cfg.SessionMaxAge)
		n, err := j.sessions.DeleteSessionsBefore(ctx, cutoff)
		if err != nil {
			return res, err
		}
		res.SessionsPurged = n
		if n > 0 {
			j.metrics.SessionsPurged(n)
		}
	}

	if res.JobsEvicted > 0 || res.SessionsPurged > 0 {
		j.logger.Info("Cleanup pass finished",
			"jobs_evicted", res.JobsEvicted,
			"sessions_purged", res.SessionsPurged)
	}
	return res, nil
}
