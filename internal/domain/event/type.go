package event

// Type identifies the type of domain event
type Type string

const (
	// TypeStatusChanged is emitted after a transition commits
	TypeStatusChanged Type = "subject.status_changed"
	// TypeVersionActivated is emitted after an activation swap commits
	TypeVersionActivated Type = "version.activated"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeStatusChanged, TypeVersionActivated:
		return true
	default:
		return false
	}
}
