package port

import (
	"context"
	"io"
	"time"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

// Message is a human-readable notification about a committed change
type Message struct {
	Title string
	Body  string
}

// Notifier delivers messages to an external channel
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// CapabilityPolicy resolves role capabilities and per-transition capability overrides
type CapabilityPolicy interface {
	// CapabilitiesFor returns the union of capabilities granted to roles
	CapabilitiesFor(roles []string) []string

	// RequiredCapability returns the configured capability for a transition,
	// if the policy overrides the workflow default
	RequiredCapability(subjectType entity.SubjectType, action string) (string, bool)
}

// HistoryExporter renders a subject's history into a document
type HistoryExporter interface {
	Export(w io.Writer, subject entity.SubjectRef, records []*entity.TransitionRecord) error
}

// TransitionRecorder observes engine outcomes
type TransitionRecorder interface {
	// ObserveTransition records one Transition call. outcome is "applied",
	// "noop" or an error kind.
	ObserveTransition(subjectType entity.SubjectType, action, outcome string, elapsed time.Duration)

	// ObserveActivation records one version activation
	ObserveActivation(outcome string, elapsed time.Duration)
}
