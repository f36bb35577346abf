package scanning

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/anstrom/portward/internal/logging"
)

// Prober performs a single bounded reachability check. Implementations must
// classify every failure into a PortResult instead of returning an error.
type Prober interface {
	Probe(ctx context.Context, host string, port int, timeout time.Duration) PortResult
}

// Sink receives probe results as they complete. Record returns false when
// the result was discarded, for example because the job was cancelled.
// Record is called from many goroutines at once.
type Sink interface {
	Record(result PortResult) bool
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(result PortResult) bool

// Record calls f(result).
func (f SinkFunc) Record(result PortResult) bool {
	return f(result)
}

// Outcome summarizes one scheduler run.
type Outcome struct {
	// Total is the size of the requested port range
	Total int
	// Dispatched counts probes that were started
	Dispatched int
	// Recorded counts results the sink accepted
	Recorded int
	// Cancelled is set when the context ended before every port was dispatched
	// or while probes were still in flight
	Cancelled bool
	Duration  time.Duration
}

// Scheduler fans a port range out over a bounded number of concurrent probes.
type Scheduler struct {
	prober    Prober
	probeRate float64
	logger    *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithProbeRate paces probe dispatch to perSecond probes for each run.
// Zero or a negative value disables pacing.
func WithProbeRate(perSecond float64) SchedulerOption {
	return func(s *Scheduler) {
		s.probeRate = perSecond
	}
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a scheduler that probes through prober.
func NewScheduler(prober Prober, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		prober: prober,
		logger: logging.Component("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run probes every port of req against host and hands each result to sink.
//
// At most req.Concurrency probes are in flight at any time. The context is
// checked before every dispatch; once it is done no further probes start,
// in-flight probes are waited for, and the outcome is marked cancelled.
// An invalid range returns an INVALID_RANGE error without probing.
func (s *Scheduler) Run(ctx context.Context, host string, req ScanRequest, sink Sink) (Outcome, error) {
	start := time.Now()
	out := Outcome{Total: req.PortCount()}
	if out.Total == 0 {
		return out, req.Validate()
	}

	limit := min(max(req.Concurrency, 1), out.Total)

	var limiter *rate.Limiter
	if s.probeRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.probeRate), 1)
	}

	slots := make(chan struct{}, limit)
	var (
		wg       sync.WaitGroup
		recorded atomic.Int64
	)

dispatch:
	for port := req.StartPort; port <= req.EndPort; port++ {
		if ctx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		// The slot wait may have raced with cancellation.
		if ctx.Err() != nil {
			<-slots
			break
		}

		out.Dispatched++
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			defer func() { <-slots }()

			result := s.prober.Probe(ctx, host, port, req.Timeout)
			if sink.Record(result) {
				recorded.Add(1)
			}
		}(port)
	}

	wg.Wait()

	out.Recorded = int(recorded.Load())
	out.Cancelled = ctx.Err() != nil
	out.Duration = time.Since(start)

	s.logger.Debug("Scheduler run finished",
		"host", host,
		"total", out.Total,
		"dispatched", out.Dispatched,
		"recorded", out.Recorded,
		"cancelled", out.Cancelled,
		"duration", out.Duration)

	return out, nil
}
