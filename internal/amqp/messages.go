package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"qcdash/internal/core"
)

// UpdateMessage announces that an inspection was created, edited or deleted.
// Receivers refetch the full list, so the id is informational.
type UpdateMessage struct {
	Event     string    `json:"event"`
	ID        string    `json:"id,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUpdateMessage builds an inspection:update event stamped with the current
// time.
func NewUpdateMessage(id, source string) *UpdateMessage {
	return &UpdateMessage{
		Event:     core.EventInspectionUpdate,
		ID:        id,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *UpdateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// UpdateMessageFromJSON decodes an event and rejects unknown event names.
func UpdateMessageFromJSON(data []byte) (*UpdateMessage, error) {
	var msg UpdateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event != core.EventInspectionUpdate {
		return nil, fmt.Errorf("unexpected event %q", msg.Event)
	}
	return &msg, nil
}
