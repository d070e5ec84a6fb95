package access

import (
	"encoding/json"
	"time"

	"badgegate/internal/people"
)

// Status is the outcome of a badge scan.
type Status string

const (
	StatusGranted Status = "GRANTED"
	StatusDenied  Status = "DENIED"
)

// Decide grants access to active people only.
func Decide(p people.Person) Status {
	if p.Active {
		return StatusGranted
	}
	return StatusDenied
}

// Event records one access attempt. It is built once per scan and never changed.
type Event struct {
	BadgeID   string
	Status    Status
	Timestamp time.Time
}

// NewEvent stamps an access attempt at now, normalized to UTC.
func NewEvent(badgeID string, status Status, now time.Time) Event {
	return Event{
		BadgeID:   badgeID,
		Status:    status,
		Timestamp: now.UTC(),
	}
}

type eventPayload struct {
	BadgeID   string `json:"badge_id"`
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Encode renders the wire form published to the event stream.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(eventPayload{
		BadgeID:   e.BadgeID,
		Status:    e.Status,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}
