package workflow

// State is a document status within a workflow definition
type State string

// Action is a named request that may move a subject to another state
type Action string

// Capability names a permission an actor must hold to fire a transition
type Capability string

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// String returns the string representation of the capability
func (c Capability) String() string {
	return string(c)
}

// Common actions shared by several document workflows
const (
	ActionSubmit   Action = "SUBMIT"
	ActionApprove  Action = "APPROVE"
	ActionReject   Action = "REJECT"
	ActionReturn   Action = "RETURN"
	ActionCancel   Action = "CANCEL"
	ActionResubmit Action = "RESUBMIT"
)
