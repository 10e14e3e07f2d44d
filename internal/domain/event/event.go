package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

// Payload keys carried by status change events
const (
	KeyPreviousStatus = "previous_status"
	KeyNewStatus      = "new_status"
	KeyAction         = "action"
	KeyActorID        = "actor_id"
	KeyReason         = "reason"
	KeyDocumentKey    = "document_key"
	KeyVersionNo      = "version_no"
)

// Event is a fact published after a unit of work commits
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	Subject       entity.SubjectRef      `json:"subject"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a domain event with a fresh ID
func NewEvent(eventType Type, subject entity.SubjectRef, payload map[string]interface{}, at time.Time) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		Subject:       subject,
		Payload:       payload,
		Timestamp:     at,
		CorrelationID: id,
	}
}

// WithCorrelation returns a copy of the event linked to a correlation chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	cp := *e
	cp.CorrelationID = correlationID
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
