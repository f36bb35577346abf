// Package metrics defines the instrumentation surface of portward and its
// Prometheus implementation.
package metrics

import "time"

//go:generate mockgen -destination=mocks/mock_collector.go -package=mocks github.com/anstrom/portward/internal/metrics Collector

// Collector receives engine and API measurements. Implementations must be
// safe for concurrent use.
type Collector interface {
	// ScanStarted is called when a job begins running.
	ScanStarted()

	// ScanFinished is called once a job reaches a terminal status.
	ScanFinished(status string, duration time.Duration)

	// PortsProbed counts accepted probe results by port state.
	PortsProbed(state string, count int)

	// PersistFailed counts jobs whose results could not be stored.
	PersistFailed()

	// WorkerJob records one worker pool job execution.
	WorkerJob(pool, status string, retries int, duration time.Duration)

	// JobsEvicted counts finished jobs dropped from memory.
	JobsEvicted(count int)

	// SessionsPurged counts stored sessions removed by retention.
	SessionsPurged(count int64)

	// HTTPRequest records one served API request.
	HTTPRequest(method, path string, status int, duration time.Duration)

	// WebSocketClients sets the number of connected event subscribers.
	WebSocketClients(count int)

	// WebSocketMessage counts events pushed to subscribers.
	WebSocketMessage(eventType string)
}

// Ensure implementations satisfy Collector.
var (
	_ Collector = (*PrometheusMetrics)(nil)
	_ Collector = Noop{}
)
