package entity

import "time"

// TransitionRecord is an immutable history entry written once per accepted transition
type TransitionRecord struct {
	ID             int64       `json:"id"`
	SubjectType    SubjectType `json:"subject_type"`
	SubjectID      int64       `json:"subject_id"`
	ActorID        int64       `json:"actor_id"`
	Action         string      `json:"action"`
	PreviousStatus string      `json:"previous_status"`
	NewStatus      string      `json:"new_status"`
	Reason         string      `json:"reason,omitempty"`
	Payload        string      `json:"payload,omitempty"` // JSON
	CreatedAt      time.Time   `json:"created_at"`
}
