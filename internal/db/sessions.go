package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/scanning"
)

const (
	sessionColumns = `id, session_type, target, job_id, status, config,
		ports_scanned, ports_open, start_time, end_time`
	resultColumns = `id, session_id, port, state, service, latency_ms, recorded_at`

	defaultSearchLimit = 50
)

var filterValidator = validator.New()

// SessionRepository stores scan sessions and their findings.
type SessionRepository struct {
	db  *DB
	now func() time.Time
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Ping reports whether the underlying database is reachable.
func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// CreateSession inserts an active session and returns its identifier.
func (r *SessionRepository) CreateSession(ctx context.Context, in NewSession) (uuid.UUID, error) {
	if in.Type == "" {
		in.Type = scanning.SessionRedTeam
	}

	var config JSONB
	if in.Config != nil {
		raw, err := json.Marshal(in.Config)
		if err != nil {
			return uuid.Nil, errors.WrapDatabaseError(errors.CodeValidation, "Session config is not serializable", err)
		}
		config = raw
	}

	var jobID *string
	if in.JobID != "" {
		jobID = &in.JobID
	}

	id := uuid.New()
	query := `
		INSERT INTO sessions (id, session_type, target, job_id, status, config, start_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		id, string(in.Type), in.Target, jobID, SessionActive, config, r.now().UTC())
	if err != nil {
		return uuid.Nil, sanitizeDBError("create session", err)
	}

	return id, nil
}

// RecordPortResult appends one finding to a session. Recording the same
// port twice for a session is a no-op.
func (r *SessionRepository) RecordPortResult(ctx context.Context, sessionID uuid.UUID, result scanning.PortResult) error {
	query := `
		INSERT INTO scan_results (session_id, port, state, service, latency_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, port) DO NOTHING`

	latency := float64(result.Latency) / float64(time.Millisecond)
	_, err := r.db.ExecContext(ctx, query,
		sessionID, result.Port, string(result.State), result.Service, latency, r.now().UTC())
	if err != nil {
		return sanitizeDBError("record port result", err)
	}
	return nil
}

// CompleteSession writes the summary counts and closes the session.
func (r *SessionRepository) CompleteSession(ctx context.Context, sessionID uuid.UUID, summary SessionSummary) error {
	if summary.EndTime.IsZero() {
		summary.EndTime = r.now()
	}

	query := `
		UPDATE sessions
		SET status = $2, ports_scanned = $3, ports_open = $4, end_time = $5
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		sessionID, summary.Status, summary.PortsScanned, summary.PortsOpen, summary.EndTime.UTC())
	if err != nil {
		return sanitizeDBError("complete session", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return sanitizeDBError("complete session", err)
	}
	if rows == 0 {
		return errors.NewDatabaseError(errors.CodeNotFound, fmt.Sprintf("Session %s not found", sessionID))
	}
	return nil
}

// GetSession returns one session by id.
func (r *SessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var session Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, sanitizeDBError("get session", err)
	}
	return &session, nil
}

// GetSessionResults returns a session's findings in recording order.
func (r *SessionRepository) GetSessionResults(ctx context.Context, sessionID uuid.UUID) ([]*ScanResult, error) {
	results := []*ScanResult{}
	query := `SELECT ` + resultColumns + ` FROM scan_results WHERE session_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &results, query, sessionID); err != nil {
		return nil, sanitizeDBError("get session results", err)
	}
	return results, nil
}

// RecentSessions returns the newest sessions first.
func (r *SessionRepository) RecentSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 10
	}

	sessions := []*Session{}
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY start_time DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &sessions, query, limit); err != nil {
		return nil, sanitizeDBError("recent sessions", err)
	}
	return sessions, nil
}

// filterCondition represents a single filter condition.
type filterCondition struct {
	expr  string // with one %d placeholder for the argument index
	value interface{}
}

// buildWhereClause creates a WHERE clause and args from conditions.
func buildWhereClause(conditions []filterCondition) (whereClause string, args []interface{}) {
	if len(conditions) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(conditions))
	for i, condition := range conditions {
		clauses = append(clauses, fmt.Sprintf(condition.expr, i+1))
		args = append(args, condition.value)
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func buildSessionFilters(filters SessionFilters) (whereClause string, args []interface{}) {
	var conditions []filterCondition

	if filters.Type != "" {
		conditions = append(conditions, filterCondition{"session_type = $%d", string(filters.Type)})
	}
	if filters.Target != "" {
		conditions = append(conditions, filterCondition{"target ILIKE '%%' || $%d || '%%'", filters.Target})
	}
	if filters.Since != nil {
		conditions = append(conditions, filterCondition{"start_time >= $%d", filters.Since.UTC()})
	}
	if filters.Until != nil {
		conditions = append(conditions, filterCondition{"start_time <= $%d", filters.Until.UTC()})
	}

	return buildWhereClause(conditions)
}

// SearchSessions returns one page of sessions matching filters, newest
// first, along with the total number of matches.
func (r *SessionRepository) SearchSessions(ctx context.Context, filters SessionFilters) ([]*Session, int64, error) {
	if err := filterValidator.Struct(filters); err != nil {
		return nil, 0, errors.NewScanError(errors.CodeValidation, fmt.Sprintf("Invalid session filters: %v", err))
	}
	if filters.Limit == 0 {
		filters.Limit = defaultSearchLimit
	}

	whereClause, args := buildSessionFilters(filters)

	var total int64
	countQuery := `SELECT COUNT(*) FROM sessions ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, sanitizeDBError("count sessions", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM sessions %s ORDER BY start_time DESC LIMIT $%d OFFSET $%d`,
		sessionColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, filters.Limit, filters.Offset)

	sessions := []*Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, sanitizeDBError("search sessions", err)
	}
	return sessions, total, nil
}

// GetStatistics returns aggregate counts over all sessions.
func (r *SessionRepository) GetStatistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	query := `
		SELECT
			COUNT(*) AS total_sessions,
			COUNT(*) FILTER (WHERE session_type = 'red_team') AS red_team_sessions,
			COUNT(*) FILTER (WHERE session_type = 'blue_team') AS blue_team_sessions,
			COUNT(*) FILTER (WHERE status = 'active') AS active_sessions,
			MAX(start_time) AS last_session
		FROM sessions`
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, sanitizeDBError("session statistics", err)
	}

	openQuery := `SELECT COUNT(*) FROM scan_results WHERE state = 'open'`
	if err := r.db.GetContext(ctx, &stats.OpenFindings, openQuery); err != nil {
		return nil, sanitizeDBError("session statistics", err)
	}
	return &stats, nil
}

// DeleteSessionsBefore removes sessions started before cutoff together
// with their findings and returns how many sessions were deleted.
func (r *SessionRepository) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE start_time < $1`, cutoff.UTC())
	if err != nil {
		return 0, sanitizeDBError("delete sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sanitizeDBError("delete sessions", err)
	}
	return n, nil
}
