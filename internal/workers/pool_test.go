package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/portward/internal/metrics/mocks"
)

// MockJob implements the Job and Finisher interfaces for testing
type MockJob struct {
	id       string
	jobType  string
	duration time.Duration
	failures int32
	executed atomic.Int32
	finished chan Result
}

func NewMockJob(id string, duration time.Duration, failures int32) *MockJob {
	return &MockJob{
		id:       id,
		jobType:  "test",
		duration: duration,
		failures: failures,
		finished: make(chan Result, 1),
	}
}

func (m *MockJob) Execute(ctx context.Context) error {
	n := m.executed.Add(1)
	if m.duration > 0 {
		select {
		case <-time.After(m.duration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n <= m.failures {
		return fmt.Errorf("attempt %d failed", n)
	}
	return nil
}

func (m *MockJob) ID() string   { return m.id }
func (m *MockJob) Type() string { return m.jobType }

func (m *MockJob) Finish(r Result) { m.finished <- r }

func (m *MockJob) waitFinished(t *testing.T) Result {
	t.Helper()
	select {
	case r := <-m.finished:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("job %s never finished", m.id)
		return Result{}
	}
}

func testConfig() Config {
	return Config{
		Name:            "test",
		Size:            2,
		QueueSize:       10,
		MaxRetries:      0,
		RetryDelay:      time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
	}
}

func TestNew(t *testing.T) {
	t.Run("applies configuration", func(t *testing.T) {
		pool := New(testConfig())
		assert.Equal(t, 10, cap(pool.jobs))
		assert.Nil(t, pool.limiter)
	})

	t.Run("normalizes invalid values", func(t *testing.T) {
		pool := New(Config{Size: 0, QueueSize: -5, RateLimit: 5})
		assert.Equal(t, 1, pool.config.Size)
		assert.Equal(t, 0, cap(pool.jobs))
		assert.Equal(t, "default", pool.config.Name)
		assert.NotNil(t, pool.limiter)
	})

	t.Run("default config", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Equal(t, 10, cfg.Size)
		assert.Equal(t, 3, cfg.MaxRetries)
	})
}

func TestPoolExecutesJobs(t *testing.T) {
	pool := New(testConfig())
	pool.Start()
	pool.Start() // idempotent
	defer func() { _ = pool.Shutdown(context.Background()) }()

	jobs := make([]*MockJob, 5)
	for i := range jobs {
		jobs[i] = NewMockJob(fmt.Sprintf("job-%d", i), 5*time.Millisecond, 0)
		require.NoError(t, pool.Submit(jobs[i]))
	}

	for _, job := range jobs {
		result := job.waitFinished(t)
		assert.NoError(t, result.Error)
		assert.Equal(t, job.id, result.JobID)
		assert.Equal(t, "test", result.JobType)
		assert.Equal(t, int32(1), job.executed.Load())
	}
}

func TestPoolRetries(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3

	t.Run("succeeds after failures", func(t *testing.T) {
		pool := New(cfg)
		pool.Start()
		defer func() { _ = pool.Shutdown(context.Background()) }()

		job := NewMockJob("flaky", 0, 2)
		require.NoError(t, pool.Submit(job))

		result := job.waitFinished(t)
		assert.NoError(t, result.Error)
		assert.Equal(t, 2, result.Retries)
		assert.Equal(t, int32(3), job.executed.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		pool := New(cfg)
		pool.Start()
		defer func() { _ = pool.Shutdown(context.Background()) }()

		job := NewMockJob("broken", 0, 100)
		require.NoError(t, pool.Submit(job))

		result := job.waitFinished(t)
		require.Error(t, result.Error)
		assert.Equal(t, 3, result.Retries)
		assert.Equal(t, int32(4), job.executed.Load())
	})
}

func TestPoolQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.Size = 1
	cfg.QueueSize = 1
	pool := New(cfg)
	// Not started: nothing drains the queue.

	require.NoError(t, pool.Submit(NewMockJob("a", 0, 0)))
	assert.Equal(t, 1, pool.QueueDepth())
	assert.ErrorIs(t, pool.Submit(NewMockJob("b", 0, 0)), ErrQueueFull)

	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPoolShutdown(t *testing.T) {
	t.Run("drains queued jobs", func(t *testing.T) {
		pool := New(testConfig())
		job := NewMockJob("queued", 0, 0)
		require.NoError(t, pool.Submit(job))

		require.NoError(t, pool.Shutdown(context.Background()))
		assert.Equal(t, int32(1), job.executed.Load())
	})

	t.Run("rejects submissions after shutdown", func(t *testing.T) {
		pool := New(testConfig())
		pool.Start()
		require.NoError(t, pool.Shutdown(context.Background()))
		assert.ErrorIs(t, pool.Submit(NewMockJob("late", 0, 0)), ErrPoolClosed)
		assert.NoError(t, pool.Shutdown(context.Background()), "second shutdown is a no-op")
	})

	t.Run("cancels running jobs on deadline", func(t *testing.T) {
		pool := New(testConfig())
		pool.Start()

		job := NewMockJob("slow", time.Minute, 0)
		require.NoError(t, pool.Submit(job))
		time.Sleep(10 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := pool.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		result := job.waitFinished(t)
		assert.ErrorIs(t, result.Error, context.Canceled)
	})
}

func TestPoolRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Size = 4
	cfg.RateLimit = 50
	pool := New(cfg)
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	start := time.Now()
	jobs := make([]*MockJob, 4)
	for i := range jobs {
		jobs[i] = NewMockJob(fmt.Sprintf("r%d", i), 0, 0)
		require.NoError(t, pool.Submit(jobs[i]))
	}
	for _, job := range jobs {
		job.waitFinished(t)
	}
	// One token up front, then 20ms per job.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPoolReportsMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	collector := mocks.NewMockCollector(ctrl)

	var wg sync.WaitGroup
	wg.Add(2)
	collector.EXPECT().WorkerJob("test", "success", 0, gomock.Any()).Do(func(string, string, int, time.Duration) { wg.Done() })
	collector.EXPECT().WorkerJob("test", "error", 0, gomock.Any()).Do(func(string, string, int, time.Duration) { wg.Done() })

	pool := New(testConfig(), WithMetrics(collector))
	pool.Start()

	require.NoError(t, pool.Submit(NewMockJob("ok", 0, 0)))
	require.NoError(t, pool.Submit(NewMockJob("bad", 0, 1)))

	wg.Wait()
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestFunc(t *testing.T) {
	pool := New(testConfig())
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	sentinel := errors.New("nope")
	done := make(chan Result, 1)
	job := &Func{
		JobID:    "fn",
		JobType:  "persist",
		Run:      func(ctx context.Context) error { return sentinel },
		OnFinish: func(r Result) { done <- r },
	}
	require.NoError(t, pool.Submit(job))

	select {
	case r := <-done:
		assert.ErrorIs(t, r.Error, sentinel)
		assert.Equal(t, "persist", r.JobType)
	case <-time.After(2 * time.Second):
		t.Fatal("func job never finished")
	}

	assert.NotPanics(t, func() { (&Func{}).Finish(Result{}) })
}
