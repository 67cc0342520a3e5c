// Package telemetry provides colony health tracking, bookmarking, and snapshots.
package telemetry

import (
	"fmt"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/world"
)

// EventType identifies telemetry events.
type EventType uint8

const (
	EventBirth EventType = iota
	EventDeath
	EventCommand
)

var eventNames = [...]string{
	EventBirth:   "birth",
	EventDeath:   "death",
	EventCommand: "command",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// MarshalText encodes the type by name in journals.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *EventType) UnmarshalText(b []byte) error {
	for i, name := range eventNames {
		if name == string(b) {
			*t = EventType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", b)
}

// Event is a colony-level occurrence outside the action log.
type Event struct {
	Type   EventType   `json:"type"`
	Tick   int32       `json:"tick"`
	AntID  uint32      `json:"ant,omitempty"`
	Caste  string      `json:"caste,omitempty"`
	Cause  string      `json:"cause,omitempty"`
	At     world.Coord `json:"at"`
	Detail string      `json:"detail,omitempty"`
}

// NewBirthEvent creates a birth event.
func NewBirthEvent(tick int32, antID uint32, caste string, at world.Coord) Event {
	return Event{Type: EventBirth, Tick: tick, AntID: antID, Caste: caste, At: at}
}

// NewDeathEvent creates a death event.
func NewDeathEvent(tick int32, antID uint32, caste string, cause components.DeathCause, at world.Coord) Event {
	return Event{Type: EventDeath, Tick: tick, AntID: antID, Caste: caste, Cause: cause.String(), At: at}
}

// NewCommandEvent records an accepted player command.
func NewCommandEvent(tick int32, detail string) Event {
	return Event{Type: EventCommand, Tick: tick, Detail: detail}
}
