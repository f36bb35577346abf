package metrics

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all portward metrics
	namespace = "portward"

	// Subsystems
	subsystemScan    = "scan"
	subsystemStorage = "storage"
	subsystemWorkers = "workers"
	subsystemAPI     = "api"
	subsystemSystem  = "system"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	portsProbed  *prometheus.CounterVec
	activeScans  prometheus.Gauge
	jobsEvicted  prometheus.Counter

	// Storage metrics
	persistFailures prometheus.Counter
	sessionsPurged  prometheus.Counter

	// Worker pool metrics
	workerJobs     *prometheus.CounterVec
	workerDuration *prometheus.HistogramVec
	workerRetries  *prometheus.HistogramVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	wsClients    prometheus.Gauge
	wsMessages   *prometheus.CounterVec

	// System metrics
	goroutines prometheus.Gauge
	uptime     prometheus.Gauge

	startTime time.Time
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a Prometheus collector backed by its own registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initScanMetrics()
	pm.initStorageMetrics()
	pm.initWorkerMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()

	pm.registerMetrics()

	// Standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "jobs_total",
			Help:      "Total number of scan jobs by terminal status",
		},
		[]string{"status"},
	)

	pm.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Wall time of scan jobs in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
		[]string{"status"},
	)

	pm.portsProbed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "ports_total",
			Help:      "Total number of probe results by port state",
		},
		[]string{"state"},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently running scan jobs",
		},
	)

	pm.jobsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "jobs_evicted_total",
			Help:      "Finished jobs removed from the in-memory registry",
		},
	)
}

func (pm *PrometheusMetrics) initStorageMetrics() {
	pm.persistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemStorage,
			Name:      "persist_failures_total",
			Help:      "Jobs whose results could not be persisted after all retries",
		},
	)

	pm.sessionsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemStorage,
			Name:      "sessions_purged_total",
			Help:      "Sessions deleted by the retention janitor",
		},
	)
}

func (pm *PrometheusMetrics) initWorkerMetrics() {
	pm.workerJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "jobs_total",
			Help:      "Worker pool executions by pool and status",
		},
		[]string{"pool", "status"},
	)

	pm.workerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "job_duration_seconds",
			Help:      "Duration of worker pool executions in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"pool"},
	)

	pm.workerRetries = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "job_retries",
			Help:      "Retries needed per worker pool execution",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		},
		[]string{"pool"},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	pm.wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "websocket_clients",
			Help:      "Connected websocket subscribers",
		},
	)

	pm.wsMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "websocket_messages_total",
			Help:      "Events pushed to websocket subscribers",
		},
		[]string{"type"},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
	)
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.scansTotal,
		pm.scanDuration,
		pm.portsProbed,
		pm.activeScans,
		pm.jobsEvicted,
		pm.persistFailures,
		pm.sessionsPurged,
		pm.workerJobs,
		pm.workerDuration,
		pm.workerRetries,
		pm.httpRequests,
		pm.httpDuration,
		pm.wsClients,
		pm.wsMessages,
		pm.goroutines,
		pm.uptime,
	)
}

// GetRegistry returns the Prometheus registry.
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
}

// ScanStarted implements Collector.
func (pm *PrometheusMetrics) ScanStarted() {
	pm.activeScans.Inc()
}

// ScanFinished implements Collector.
func (pm *PrometheusMetrics) ScanFinished(status string, duration time.Duration) {
	pm.activeScans.Dec()
	pm.scansTotal.WithLabelValues(status).Inc()
	pm.scanDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// PortsProbed implements Collector.
func (pm *PrometheusMetrics) PortsProbed(state string, count int) {
	pm.portsProbed.WithLabelValues(state).Add(float64(count))
}

// PersistFailed implements Collector.
func (pm *PrometheusMetrics) PersistFailed() {
	pm.persistFailures.Inc()
}

// WorkerJob implements Collector.
func (pm *PrometheusMetrics) WorkerJob(pool, status string, retries int, duration time.Duration) {
	pm.workerJobs.WithLabelValues(pool, status).Inc()
	pm.workerDuration.WithLabelValues(pool).Observe(duration.Seconds())
	pm.workerRetries.WithLabelValues(pool).Observe(float64(retries))
}

// JobsEvicted implements Collector.
func (pm *PrometheusMetrics) JobsEvicted(count int) {
	pm.jobsEvicted.Add(float64(count))
}

// SessionsPurged implements Collector.
func (pm *PrometheusMetrics) SessionsPurged(count int64) {
	pm.sessionsPurged.Add(float64(count))
}

// HTTPRequest implements Collector.
func (pm *PrometheusMetrics) HTTPRequest(method, path string, status int, duration time.Duration) {
	pm.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// WebSocketClients implements Collector.
func (pm *PrometheusMetrics) WebSocketClients(count int) {
	pm.wsClients.Set(float64(count))
}

// WebSocketMessage implements Collector.
func (pm *PrometheusMetrics) WebSocketMessage(eventType string) {
	pm.wsMessages.WithLabelValues(eventType).Inc()
}

// UpdateSystemMetrics refreshes the goroutine and uptime gauges.
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())
}

// GetUptime returns time since the collector was created.
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// StartPeriodicUpdates refreshes system gauges every interval until ctx is done.
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	pm.UpdateSystemMetrics()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pm.UpdateSystemMetrics()
			case <-ctx.Done():
				return
			}
		}
	}()
}
