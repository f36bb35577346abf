package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/logging"
	"github.com/anstrom/portward/internal/scanning"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusQueued, StatusRunning, true},
		{StatusQueued, StatusCancelled, true},
		{StatusQueued, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusCancelled, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusQueued, false},
		{StatusCompleted, StatusFailed, true},
		{StatusCompleted, StatusRunning, false},
		{StatusCancelled, StatusRunning, false},
		{StatusCancelled, StatusFailed, true},
		{StatusFailed, StatusRunning, false},
		{StatusFailed, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.canTransition(tt.to))
		})
	}

	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func newTestJob(t *testing.T, start, end int) *job {
	t.Helper()
	req := scanning.ScanRequest{Target: "127.0.0.1", StartPort: start, EndPort: end, Timeout: time.Second, Concurrency: 1}
	return newJob(context.Background(), "job-1", req, time.Now(), logging.Component("test"))
}

func TestJobRecord(t *testing.T) {
	j := newTestJob(t, 1, 4)

	update := j.record(scanning.PortResult{Port: 1, State: scanning.StateOpen})
	assert.False(t, update.accepted, "queued jobs discard results")

	require.True(t, j.begin(time.Now()))
	assert.False(t, j.begin(time.Now()), "a job begins at most once")

	update = j.record(scanning.PortResult{Port: 1, State: scanning.StateOpen})
	assert.True(t, update.accepted)
	assert.True(t, update.open)
	assert.True(t, update.newPercent)
	assert.Equal(t, 1, update.view.ProgressDone)

	update = j.record(scanning.PortResult{Port: 2, State: scanning.StateError, Error: "boom"})
	assert.True(t, update.accepted)
	assert.False(t, update.open)

	snap := j.snapshot()
	assert.Equal(t, 2, snap.ProgressDone)
	assert.Equal(t, 50, snap.Percent())
	assert.Len(t, snap.OpenPorts, 1)
	assert.Len(t, snap.ErrorPorts, 1)
	assert.Equal(t, StateCounts{Open: 1, Error: 1}, snap.Counts)

	status, changed := j.requestCancel(time.Now())
	assert.Equal(t, StatusRunning, status)
	assert.False(t, changed)
	assert.Error(t, j.ctx.Err())

	update = j.record(scanning.PortResult{Port: 3, State: scanning.StateOpen})
	assert.False(t, update.accepted, "results after cancellation are discarded")
	assert.Equal(t, 2, j.snapshot().ProgressDone)
}

func TestJobSnapshotIsACopy(t *testing.T) {
	j := newTestJob(t, 1, 2)
	require.True(t, j.begin(time.Now()))
	j.record(scanning.PortResult{Port: 1, State: scanning.StateOpen})

	snap := j.snapshot()
	snap.OpenPorts[0].Port = 999

	assert.Equal(t, 1, j.snapshot().OpenPorts[0].Port)
}

func TestJobFail(t *testing.T) {
	j := newTestJob(t, 1, 1)
	require.True(t, j.begin(time.Now()))
	require.True(t, j.finishScan(StatusCompleted, time.Now()))

	assert.True(t, j.fail(errors.ErrDatabaseConnection(assert.AnError), time.Now()))
	snap := j.snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, errors.CodeDatabaseConnection, snap.ErrorCode)
	assert.NotEmpty(t, snap.Error)

	assert.False(t, j.fail(assert.AnError, time.Now()), "failed is final")
}

func TestRecorderRejectsUnfinishedJob(t *testing.T) {
	j := newTestJob(t, 1, 1)
	err := NewRecorder(nil).Record(context.Background(), j)
	assert.True(t, errors.IsConflict(err))
}
