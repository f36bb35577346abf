package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/scanning"
)

// Status is the lifecycle state of a scan job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a final scan state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// canTransition enforces one-directional status changes. A finished scan
// may still become FAILED when its results cannot be persisted.
func (s Status) canTransition(to Status) bool {
	switch s {
	case StatusQueued:
		return to == StatusRunning || to == StatusCancelled || to == StatusFailed
	case StatusRunning:
		return to == StatusCompleted || to == StatusCancelled || to == StatusFailed
	case StatusCompleted, StatusCancelled:
		return to == StatusFailed
	default:
		return false
	}
}

// StateCounts tallies recorded probe results per state.
type StateCounts struct {
	Open     int `json:"open"`
	Closed   int `json:"closed"`
	Filtered int `json:"filtered"`
	Error    int `json:"error"`
}

func (c *StateCounts) add(state scanning.PortState) {
	switch state {
	case scanning.StateOpen:
		c.Open++
	case scanning.StateClosed:
		c.Closed++
	case scanning.StateFiltered:
		c.Filtered++
	default:
		c.Error++
	}
}

// Snapshot is a consistent point-in-time view of a job.
type Snapshot struct {
	ID            string                `json:"job_id"`
	SessionID     string                `json:"session_id,omitempty"`
	Target        string                `json:"target"`
	Address       string                `json:"address,omitempty"`
	StartPort     int                   `json:"start_port"`
	EndPort       int                   `json:"end_port"`
	TimeoutMS     int64                 `json:"timeout_ms"`
	Concurrency   int                   `json:"concurrency"`
	Status        Status                `json:"status"`
	ProgressDone  int                   `json:"progress_done"`
	ProgressTotal int                   `json:"progress_total"`
	Counts        StateCounts           `json:"counts"`
	OpenPorts     []scanning.PortResult `json:"open_ports"`
	ErrorPorts    []scanning.PortResult `json:"error_ports,omitempty"`
	Error         string                `json:"error,omitempty"`
	ErrorCode     errors.ErrorCode      `json:"error_code,omitempty"`
	Cancelled     bool                  `json:"cancel_requested"`
	Persisted     bool                  `json:"persisted"`
	CreatedAt     time.Time             `json:"created_at"`
	StartedAt     *time.Time            `json:"started_at,omitempty"`
	FinishedAt    *time.Time            `json:"finished_at,omitempty"`
}

// Percent returns progress as a whole percentage.
func (s Snapshot) Percent() int {
	if s.ProgressTotal == 0 {
		return 0
	}
	return s.ProgressDone * 100 / s.ProgressTotal
}

// job holds the mutable state of one scan. The registry map lock never
// guards these fields; mu does.
type job struct {
	id        string
	req       scanning.ScanRequest
	total     int
	createdAt time.Time
	logger    *slog.Logger

	// ctx is cancelled when cancellation is requested.
	ctx    context.Context
	cancel context.CancelFunc

	// done is closed once the job is final: scanned and persisted, or failed.
	done     chan struct{}
	doneOnce sync.Once

	mu          sync.RWMutex
	status      Status
	address     string
	scanned     int
	counts      StateCounts
	open        []scanning.PortResult
	errorPorts  []scanning.PortResult
	reason      string
	reasonCode  errors.ErrorCode
	cancelReq   bool
	persisted   bool
	startedAt   time.Time
	finishedAt  time.Time
	lastPercent int

	// Persistence progress, so a retried attempt resumes where it stopped.
	sessionID uuid.UUID
	recorded  int
}

func newJob(parent context.Context, id string, req scanning.ScanRequest, now time.Time, logger *slog.Logger) *job {
	ctx, cancel := context.WithCancel(parent)
	return &job{
		id:        id,
		req:       req,
		total:     req.PortCount(),
		createdAt: now,
		logger:    logger.With("job_id", id, "target", req.Target),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    StatusQueued,
	}
}

// transitionLocked moves the job to status to. Callers hold mu.
func (j *job) transitionLocked(to Status, now time.Time) bool {
	if !j.status.canTransition(to) {
		return false
	}
	j.status = to
	switch {
	case to == StatusRunning:
		j.startedAt = now
	case to.Terminal() && j.finishedAt.IsZero():
		j.finishedAt = now
	}
	return true
}

// begin moves a queued job to RUNNING. It returns false when the job was
// cancelled or failed while waiting, which also guarantees a job is never
// executed twice.
func (j *job) begin(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusQueued || j.cancelReq {
		return false
	}
	return j.transitionLocked(StatusRunning, now)
}

// requestCancel sets the cancellation flag. A queued job is cancelled at
// once; a running job stops dispatching. Terminal jobs are left untouched.
// The returned status is the one after the request.
func (j *job) requestCancel(now time.Time) (Status, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		return j.status, false
	}
	j.cancelReq = true
	j.cancel()

	changed := false
	if j.status == StatusQueued {
		changed = j.transitionLocked(StatusCancelled, now)
	}
	return j.status, changed
}

func (j *job) cancelRequested() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.cancelReq
}

func (j *job) setAddress(addr string) {
	j.mu.Lock()
	j.address = addr
	j.mu.Unlock()
}

// finishScan records the terminal scan status.
func (j *job) finishScan(to Status, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(to, now)
}

// fail moves the job to FAILED with a reason taken from err.
func (j *job) fail(err error, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.transitionLocked(StatusFailed, now) {
		return false
	}
	j.reason = err.Error()
	j.reasonCode = errors.GetCode(err)
	return true
}

func (j *job) markPersisted() {
	j.mu.Lock()
	j.persisted = true
	j.mu.Unlock()
}

// finalize releases waiters. Safe to call more than once.
func (j *job) finalize() {
	j.doneOnce.Do(func() {
		j.cancel()
		close(j.done)
	})
}

func (j *job) isFinal() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// progressUpdate describes what a recorded result changed. view is taken
// under the same lock when an event is due.
type progressUpdate struct {
	accepted   bool
	open       bool
	newPercent bool
	view       Snapshot
}

// record applies one probe result. Results arriving after cancellation or
// outside RUNNING are discarded.
func (j *job) record(result scanning.PortResult) progressUpdate {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancelReq || j.status != StatusRunning || j.scanned >= j.total {
		return progressUpdate{}
	}

	j.scanned++
	j.counts.add(result.State)

	update := progressUpdate{accepted: true}
	switch result.State {
	case scanning.StateOpen:
		j.open = append(j.open, result)
		update.open = true
	case scanning.StateError:
		j.errorPorts = append(j.errorPorts, result)
	}

	if percent := j.scanned * 100 / j.total; percent > j.lastPercent {
		j.lastPercent = percent
		update.newPercent = true
	}
	if update.open || update.newPercent {
		update.view = j.snapshotLocked(false)
	}
	return update
}

func (j *job) snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshotLocked(true)
}

// summary is a snapshot without the port lists, for high-frequency events.
func (j *job) summary() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshotLocked(false)
}

func (j *job) snapshotLocked(withPorts bool) Snapshot {
	s := Snapshot{
		ID:            j.id,
		Target:        j.req.Target,
		Address:       j.address,
		StartPort:     j.req.StartPort,
		EndPort:       j.req.EndPort,
		TimeoutMS:     j.req.Timeout.Milliseconds(),
		Concurrency:   j.req.Concurrency,
		Status:        j.status,
		ProgressDone:  j.scanned,
		ProgressTotal: j.total,
		Counts:        j.counts,
		Error:         j.reason,
		ErrorCode:     j.reasonCode,
		Cancelled:     j.cancelReq,
		Persisted:     j.persisted,
		CreatedAt:     j.createdAt,
		OpenPorts:     []scanning.PortResult{},
	}
	if j.sessionID != uuid.Nil {
		s.SessionID = j.sessionID.String()
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		s.StartedAt = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		s.FinishedAt = &t
	}
	if withPorts {
		s.OpenPorts = append(s.OpenPorts, j.open...)
		if len(j.errorPorts) > 0 {
			s.ErrorPorts = append([]scanning.PortResult(nil), j.errorPorts...)
		}
	}
	return s
}

func (j *job) finishedBefore(cutoff time.Time) bool {
	if !j.isFinal() {
		return false
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return !j.finishedAt.IsZero() && j.finishedAt.Before(cutoff)
}
