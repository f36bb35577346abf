package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoop(t *testing.T) {
	var c Collector = Noop{}
	assert.NotPanics(t, func() {
		c.ScanStarted()
		c.ScanFinished("completed", time.Second)
		c.PortsProbed("open", 1)
		c.PersistFailed()
		c.WorkerJob("scan", "success", 0, time.Millisecond)
		c.JobsEvicted(1)
		c.SessionsPurged(1)
		c.HTTPRequest("GET", "/", 200, time.Millisecond)
		c.WebSocketClients(1)
		c.WebSocketMessage("status")
	})
}

func TestOrNoop(t *testing.T) {
	assert.Equal(t, Noop{}, OrNoop(nil))

	pm := NewPrometheusMetrics()
	assert.Same(t, pm, OrNoop(pm))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(2 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), 2*time.Millisecond)
}
