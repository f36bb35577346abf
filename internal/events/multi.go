// Package events fans job events out to subscribers outside the registry.
package events

import "github.com/anstrom/portward/internal/jobs"

// Multi delivers each event to every notifier in order. Each notifier must
// itself be non-blocking.
type Multi []jobs.Notifier

// NewMulti builds a fan-out, skipping nil notifiers.
func NewMulti(notifiers ...jobs.Notifier) Multi {
	m := make(Multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

// Notify implements jobs.Notifier.
func (m Multi) Notify(event jobs.Event) {
	for _, n := range m {
		n.Notify(event)
	}
}

var _ jobs.Notifier = Multi(nil)
