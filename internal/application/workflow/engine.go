package workflow

import (
	"context"
	"time"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

// TransitionRequest asks the engine to apply one action to one subject
type TransitionRequest struct {
	SubjectType entity.SubjectType
	SubjectID   int64
	Action      domainwf.Action
	Actor       *entity.Actor
	Reason      string
	Payload     domainwf.Payload
}

// Subject returns the reference of the requested subject
func (r TransitionRequest) Subject() entity.SubjectRef {
	return entity.SubjectRef{Type: r.SubjectType, ID: r.SubjectID}
}

// TransitionResult describes an accepted transition. Record is nil when the
// request re-applied an idempotent transition whose target already held.
type TransitionResult struct {
	Subject        entity.SubjectRef
	Action         domainwf.Action
	PreviousStatus domainwf.State
	NewStatus      domainwf.State
	Record         *entity.TransitionRecord
	NoOp           bool
}

// HookContext is handed to a side-effect hook after the status swap and
// before the history append, inside the same unit of work
type HookContext struct {
	Request    TransitionRequest
	Transition domainwf.Transition
	From       domainwf.State
	Now        time.Time
}

// ActorID returns the requesting actor's ID, or 0 for the system
func (h *HookContext) ActorID() int64 {
	if h.Request.Actor == nil {
		return 0
	}
	return h.Request.Actor.ID
}

// Hook performs a transition's side effect. A returned error aborts the unit.
type Hook func(ctx context.Context, hc *HookContext) error

// Engine interprets workflow definitions over stored subjects
type Engine interface {
	// Register binds a subject type to its definition and status store
	Register(subjectType entity.SubjectType, def *domainwf.Definition, store port.StatusStore)

	// RegisterHook makes a named side effect available to definitions
	RegisterHook(name string, hook Hook)

	// Validate checks that every hook named by a registered definition exists
	Validate() error

	// Transition applies an action in one atomic unit: status swap, hook,
	// history append. Events are dispatched only after the outermost unit commits.
	Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error)

	// Atomically runs fn in one unit of work serialised on key. Calls made
	// from inside a unit join it.
	Atomically(ctx context.Context, key string, fn func(ctx context.Context) error) error

	// PermittedActions lists the actions available on a subject from its current status
	PermittedActions(ctx context.Context, subject entity.SubjectRef) ([]domainwf.Action, error)

	// Definition returns the definition registered for a subject type
	Definition(subjectType entity.SubjectType) (*domainwf.Definition, error)

	// Now returns the engine clock's current time
	Now() time.Time
}
