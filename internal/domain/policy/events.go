// internal/domain/policy/events.go
package policy

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventCreated   EventType = "policy.created"
	EventCancelled EventType = "policy.cancelled"
)

// Event describes a committed change to a policy.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Policy     Policy    `json:"policy"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewEvent(eventType EventType, p Policy, at time.Time) *Event {
	return &Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		Policy:     p,
		OccurredAt: at.UTC(),
	}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ParseEvent(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
