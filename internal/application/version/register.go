// Package version keeps, per quote number, the set of quote versions and the
// single version currently marked active.
package version

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/doc-lifecycle/internal/application/dispatcher"
	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/application/workflow"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/internal/domain/event"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

// ActivationResult reports the outcome of an activation
type ActivationResult struct {
	Version     *entity.QuoteVersion
	Deactivated []int
	NoOp        bool
}

// Register manages quote versions and active-version exclusivity
type Register interface {
	// CreateVersion appends the next version number, inactive
	CreateVersion(ctx context.Context, actor *entity.Actor, quoteNo string) (*entity.QuoteVersion, error)

	// Activate makes versionNo the only active version of quoteNo. Repeating
	// the call for the already active version changes nothing.
	Activate(ctx context.Context, actor *entity.Actor, quoteNo string, versionNo int) (*ActivationResult, error)

	// GetActive returns the active version, or nil when none is active
	GetActive(ctx context.Context, quoteNo string) (*entity.QuoteVersion, error)

	// List returns every version in version order
	List(ctx context.Context, quoteNo string) ([]*entity.QuoteVersion, error)
}

type register struct {
	engine     workflow.Engine
	versions   port.QuoteVersionRepository
	dispatcher dispatcher.Dispatcher
	recorder   port.TransitionRecorder
}

// Option configures the register
type Option func(*register)

// WithDispatcher publishes version.activated events after commit
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(r *register) {
		r.dispatcher = d
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(rec port.TransitionRecorder) Option {
	return func(r *register) {
		r.recorder = rec
	}
}

// NewRegister creates a register and binds the quote version workflow to engine
func NewRegister(engine workflow.Engine, versions port.QuoteVersionRepository, opts ...Option) Register {
	r := &register{
		engine:   engine,
		versions: versions,
	}
	for _, opt := range opts {
		opt(r)
	}

	engine.Register(entity.SubjectQuoteVersion, workflow.QuoteVersionDefinition(), versions)
	engine.RegisterHook(workflow.HookVersionActivated, func(ctx context.Context, hc *workflow.HookContext) error {
		return versions.SetActiveAt(ctx, hc.Request.SubjectID, hc.Now)
	})
	return r
}

func lockKey(quoteNo string) string {
	return "quote-version:" + quoteNo
}

// documentKey normalises a quote number the same way for every entry point
func documentKey(quoteNo string) (string, error) {
	quoteNo = strings.TrimSpace(quoteNo)
	if quoteNo == "" {
		return "", fmt.Errorf("%w: quote number is required", domainwf.ErrPreconditionFailed)
	}
	return quoteNo, nil
}

func (r *register) CreateVersion(ctx context.Context, actor *entity.Actor, quoteNo string) (*entity.QuoteVersion, error) {
	quoteNo, err := documentKey(quoteNo)
	if err != nil {
		return nil, err
	}

	var created *entity.QuoteVersion
	err = r.engine.Atomically(ctx, lockKey(quoteNo), func(ctx context.Context) error {
		existing, err := r.versions.ListByQuoteNo(ctx, quoteNo)
		if err != nil {
			return err
		}

		next := 1
		if n := len(existing); n > 0 {
			next = existing[n-1].VersionNo + 1
		}

		v := &entity.QuoteVersion{
			QuoteNo:   quoteNo,
			VersionNo: next,
			CreatedAt: r.engine.Now(),
		}
		if actor != nil {
			v.CreatedBy = actor.ID
		}
		if err := r.versions.Create(ctx, v); err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *register) Activate(ctx context.Context, actor *entity.Actor, quoteNo string, versionNo int) (*ActivationResult, error) {
	quoteNo, err := documentKey(quoteNo)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := r.activate(ctx, actor, quoteNo, versionNo)

	if r.recorder != nil {
		outcome := "applied"
		switch {
		case err != nil:
			outcome = string(domainwf.KindOf(err))
		case result.NoOp:
			outcome = "noop"
		}
		r.recorder.ObserveActivation(outcome, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	if !result.NoOp && r.dispatcher != nil {
		subject := entity.SubjectRef{Type: entity.SubjectQuoteVersion, ID: result.Version.ID}
		r.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeVersionActivated, subject, map[string]interface{}{
			event.KeyDocumentKey: quoteNo,
			event.KeyVersionNo:   versionNo,
		}, r.engine.Now()))
	}
	return result, nil
}

func (r *register) activate(ctx context.Context, actor *entity.Actor, quoteNo string, versionNo int) (*ActivationResult, error) {
	result := &ActivationResult{}

	err := r.engine.Atomically(ctx, lockKey(quoteNo), func(ctx context.Context) error {
		target, err := r.versions.GetByNumber(ctx, quoteNo, versionNo)
		if err != nil {
			return err
		}

		active, err := r.versions.ListActive(ctx, quoteNo)
		if err != nil {
			return err
		}

		// Deactivate first: the schema admits one active row per quote number
		for _, v := range active {
			if v.ID == target.ID {
				continue
			}
			if _, err := r.engine.Transition(ctx, workflow.TransitionRequest{
				SubjectType: entity.SubjectQuoteVersion,
				SubjectID:   v.ID,
				Action:      workflow.ActionDeactivate,
				Actor:       actor,
				Payload:     domainwf.Payload{"replacedBy": versionNo},
			}); err != nil {
				return err
			}
			result.Deactivated = append(result.Deactivated, v.VersionNo)
		}

		res, err := r.engine.Transition(ctx, workflow.TransitionRequest{
			SubjectType: entity.SubjectQuoteVersion,
			SubjectID:   target.ID,
			Action:      workflow.ActionActivate,
			Actor:       actor,
		})
		if err != nil {
			return err
		}
		result.NoOp = res.NoOp && len(result.Deactivated) == 0

		result.Version, err = r.versions.GetByID(ctx, target.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *register) GetActive(ctx context.Context, quoteNo string) (*entity.QuoteVersion, error) {
	quoteNo, err := documentKey(quoteNo)
	if err != nil {
		return nil, err
	}
	active, err := r.versions.ListActive(ctx, quoteNo)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	return active[0], nil
}

func (r *register) List(ctx context.Context, quoteNo string) ([]*entity.QuoteVersion, error) {
	quoteNo, err := documentKey(quoteNo)
	if err != nil {
		return nil, err
	}
	return r.versions.ListByQuoteNo(ctx, quoteNo)
}
