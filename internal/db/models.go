package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portward/internal/scanning"
)

// Session statuses stored in sessions.status.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
	SessionFailed    = "failed"
)

// JSONB wraps json.RawMessage for PostgreSQL JSONB type.
type JSONB json.RawMessage

// Scan implements sql.Scanner for PostgreSQL JSONB type.
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append(JSONB(nil), v...)
		return nil
	case string:
		*j = JSONB(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
}

// Value implements driver.Valuer for PostgreSQL JSONB type.
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// MarshalJSON implements json.Marshaler.
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = append(JSONB(nil), data...)
	return nil
}

// Session is the durable record of one assessment.
type Session struct {
	ID           uuid.UUID            `db:"id" json:"id"`
	Type         scanning.SessionType `db:"session_type" json:"session_type"`
	Target       string               `db:"target" json:"target"`
	JobID        *string              `db:"job_id" json:"job_id,omitempty"`
	Status       string               `db:"status" json:"status"`
	Config       JSONB                `db:"config" json:"config,omitempty"`
	PortsScanned int                  `db:"ports_scanned" json:"ports_scanned"`
	PortsOpen    int                  `db:"ports_open" json:"ports_open"`
	StartTime    time.Time            `db:"start_time" json:"start_time"`
	EndTime      *time.Time           `db:"end_time" json:"end_time,omitempty"`
}

// ScanResult is one recorded finding of a session.
type ScanResult struct {
	ID         int64     `db:"id" json:"-"`
	SessionID  uuid.UUID `db:"session_id" json:"session_id"`
	Port       int       `db:"port" json:"port"`
	State      string    `db:"state" json:"state"`
	Service    *string   `db:"service" json:"service"`
	LatencyMS  float64   `db:"latency_ms" json:"latency_ms"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// NewSession describes a session to create. Config is marshalled to JSON.
type NewSession struct {
	Type   scanning.SessionType
	Target string
	JobID  string
	Config any
}

// SessionSummary carries the final counts written by CompleteSession.
type SessionSummary struct {
	Status       string
	PortsScanned int
	PortsOpen    int
	EndTime      time.Time
}

// SessionFilters narrows SearchSessions.
type SessionFilters struct {
	Type   scanning.SessionType `validate:"omitempty,oneof=red_team blue_team"`
	Target string               `validate:"max=255"`
	Since  *time.Time
	Until  *time.Time
	Limit  int `validate:"gte=0,lte=500"`
	Offset int `validate:"gte=0"`
}

// Statistics summarizes stored sessions.
type Statistics struct {
	TotalSessions    int64      `db:"total_sessions" json:"total_sessions"`
	RedTeamSessions  int64      `db:"red_team_sessions" json:"red_team_sessions"`
	BlueTeamSessions int64      `db:"blue_team_sessions" json:"blue_team_sessions"`
	ActiveSessions   int64      `db:"active_sessions" json:"active_sessions"`
	LastSession      *time.Time `db:"last_session" json:"last_session,omitempty"`
	OpenFindings     int64      `db:"-" json:"open_findings"`
}
