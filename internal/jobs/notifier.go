package jobs

import (
	"time"

	"github.com/anstrom/portward/internal/scanning"
)

// EventType identifies what changed on a job.
type EventType string

const (
	// EventStatus is sent on every status transition.
	EventStatus EventType = "status"
	// EventPortOpen is sent for each open port as it is discovered.
	EventPortOpen EventType = "port_open"
	// EventProgress is sent at most once per whole percent of progress.
	EventProgress EventType = "progress"
	// EventPersisted is sent once the results are stored.
	EventPersisted EventType = "persisted"
)

// Event is a push notification about one job. Job carries the port lists
// only for status and persisted events.
type Event struct {
	Type      EventType            `json:"type"`
	JobID     string               `json:"job_id"`
	Timestamp time.Time            `json:"timestamp"`
	Job       Snapshot             `json:"job"`
	Port      *scanning.PortResult `json:"port,omitempty"`
}

// Notifier receives job events. Notify is called from scan goroutines and
// must not block.
type Notifier interface {
	Notify(event Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

// Notify calls f(event).
func (f NotifierFunc) Notify(event Event) {
	f(event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
