package metrics

import "time"

// Noop discards every measurement. It is used when metrics are disabled and
// by the CLI's local scan mode.
type Noop struct{}

func (Noop) ScanStarted() {}
func (Noop) ScanFinished(string, time.Duration) {}
func (Noop) PortsProbed(string, int) {}
func (Noop) PersistFailed() {}
func (Noop) WorkerJob(string, string, int, time.Duration) {}
func (Noop) JobsEvicted(int) {}
func (Noop) SessionsPurged(int64) {}
func (Noop) HTTPRequest(string, string, int, time.Duration) {}
func (Noop) WebSocketClients(int) {}
func (Noop) WebSocketMessage(string) {}

// OrNoop returns c, or Noop when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return Noop{}
	}
	return c
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the time since the timer was started.
func (t Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
