package domain

import "time"

// EventType identifies what a published event carries.
type EventType string

const (
	EventEntryAppended EventType = "entry.appended"
	EventAlertChanged  EventType = "alert.changed"
	EventHeartbeat     EventType = "heartbeat"
)

// Event is the envelope pushed to live subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Heartbeat is the payload of periodic liveness events. DroppedEvents is
// the per-subscriber overflow counter, so an idle client can tell whether
// its buffer has been shedding load.
type Heartbeat struct {
	DroppedEvents uint64 `json:"dropped_events"`
}

// NewEntryAppended wraps a persisted entry for broadcast.
func NewEntryAppended(e Entry) Event {
	return Event{Type: EventEntryAppended, Timestamp: time.Now().UTC(), Payload: e}
}

// NewAlertChanged wraps an alert snapshot after any state change.
func NewAlertChanged(a Alert) Event {
	return Event{Type: EventAlertChanged, Timestamp: time.Now().UTC(), Payload: a}
}

// NewHeartbeat builds the liveness event for one subscriber.
func NewHeartbeat(dropped uint64) Event {
	return Event{Type: EventHeartbeat, Timestamp: time.Now().UTC(), Payload: Heartbeat{DroppedEvents: dropped}}
}
