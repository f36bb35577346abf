package jobs

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/anstrom/portward/internal/jobs Store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portward/internal/db"
	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/logging"
	"github.com/anstrom/portward/internal/scanning"
)

// Store is the persistence collaborator the recorder writes finished scans to.
type Store interface {
	CreateSession(ctx context.Context, in db.NewSession) (uuid.UUID, error)
	RecordPortResult(ctx context.Context, sessionID uuid.UUID, result scanning.PortResult) error
	CompleteSession(ctx context.Context, sessionID uuid.UUID, summary db.SessionSummary) error
}

// Recorder persists a terminal job as one session plus its open ports.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store:  store,
		logger: logging.Component("recorder"),
		now:    time.Now,
	}
}

// sessionConfig is stored in the session's config column.
type sessionConfig struct {
	StartPort   int    `json:"start_port"`
	EndPort     int    `json:"end_port"`
	TimeoutMS   int64  `json:"timeout_ms"`
	Concurrency int    `json:"concurrency"`
	Address     string `json:"address,omitempty"`
}

func sessionStatus(s Status) string {
	switch s {
	case StatusCompleted:
		return db.SessionCompleted
	case StatusCancelled:
		return db.SessionCancelled
	default:
		return db.SessionFailed
	}
}

// Record writes j to the store. It is safe to call again after a failure:
// the session is created once and already recorded ports are skipped.
func (r *Recorder) Record(ctx context.Context, j *job) error {
	j.mu.RLock()
	status := j.status
	sessionID := j.sessionID
	recorded := j.recorded
	open := append([]scanning.PortResult(nil), j.open...)
	scanned := j.scanned
	address := j.address
	j.mu.RUnlock()

	if !status.Terminal() {
		return errors.NewScanError(errors.CodeConflict, "job has not finished scanning").WithJobID(j.id)
	}

	if sessionID == uuid.Nil {
		id, err := r.store.CreateSession(ctx, db.NewSession{
			Type:   scanning.SessionRedTeam,
			Target: j.req.Target,
			JobID:  j.id,
			Config: sessionConfig{
				StartPort:   j.req.StartPort,
				EndPort:     j.req.EndPort,
				TimeoutMS:   j.req.Timeout.Milliseconds(),
				Concurrency: j.req.Concurrency,
				Address:     address,
			},
		})
		if err != nil {
			return err
		}
		sessionID = id

		j.mu.Lock()
		j.sessionID = id
		j.mu.Unlock()
		r.logger.Debug("Session created",
			"job_id", j.id,
			"target", j.req.Target,
			"session_id", id)
	}

	for i := recorded; i < len(open); i++ {
		if err := r.store.RecordPortResult(ctx, sessionID, open[i]); err != nil {
			return err
		}
		j.mu.Lock()
		j.recorded = i + 1
		j.mu.Unlock()
	}

	return r.store.CompleteSession(ctx, sessionID, db.SessionSummary{
		Status:       sessionStatus(status),
		PortsScanned: scanned,
		PortsOpen:    len(open),
		EndTime:      r.now(),
	})
}
