package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/garyjia/doc-lifecycle/internal/application/dispatcher"
	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/internal/domain/event"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
	"github.com/garyjia/doc-lifecycle/pkg/keylock"
)

// Logger is the logging surface the engine writes to
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type registration struct {
	def   *domainwf.Definition
	store port.StatusStore
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	policy      port.CapabilityPolicy
	recorder    port.TransitionRecorder
	logger      Logger
	clock       clock.PassiveClock
	locks       *keylock.KeyedMutex

	mu            sync.RWMutex
	registrations map[entity.SubjectType]registration
	hooks         map[string]Hook
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithPolicy lets configuration override the capability each transition requires
func WithPolicy(p port.CapabilityPolicy) EngineOption {
	return func(e *engineImpl) {
		e.policy = p
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r port.TransitionRecorder) EngineOption {
	return func(e *engineImpl) {
		e.recorder = r
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock replaces the wall clock used for history timestamps
func WithClock(c clock.PassiveClock) EngineOption {
	return func(e *engineImpl) {
		e.clock = c
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		historyRepo:   historyRepo,
		txManager:     txManager,
		clock:         clock.RealClock{},
		locks:         keylock.New(),
		registrations: make(map[entity.SubjectType]registration),
		hooks:         make(map[string]Hook),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Register(subjectType entity.SubjectType, def *domainwf.Definition, store port.StatusStore) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registrations[subjectType] = registration{def: def, store: store}
}

func (e *engineImpl) RegisterHook(name string, hook Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks[name] = hook
}

func (e *engineImpl) Validate() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	types := make([]string, 0, len(e.registrations))
	for t := range e.registrations {
		types = append(types, string(t))
	}
	sort.Strings(types)

	for _, t := range types {
		reg := e.registrations[entity.SubjectType(t)]
		for _, name := range reg.def.Hooks() {
			if _, ok := e.hooks[name]; !ok {
				return fmt.Errorf("workflow %s references unregistered hook %q", t, name)
			}
		}
	}
	return nil
}

func (e *engineImpl) Definition(subjectType entity.SubjectType) (*domainwf.Definition, error) {
	reg, err := e.registration(subjectType)
	if err != nil {
		return nil, err
	}
	return reg.def, nil
}

func (e *engineImpl) Now() time.Time {
	return e.clock.Now()
}

// unit is the state shared by nested calls inside one unit of work
type unit struct {
	events       []*event.Event
	observations []observation
}

// observation is a nested transition outcome held back until the unit commits
type observation struct {
	req     TransitionRequest
	result  *TransitionResult
	err     error
	elapsed time.Duration
}

type unitKey struct{}

func unitFrom(ctx context.Context) *unit {
	u, _ := ctx.Value(unitKey{}).(*unit)
	return u
}

func (e *engineImpl) Atomically(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if unitFrom(ctx) != nil {
		return fn(ctx)
	}

	unlock, err := e.locks.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	defer unlock()

	u := &unit{}
	if err := e.txManager.WithTransaction(context.WithValue(ctx, unitKey{}, u), fn); err != nil {
		return err
	}

	for _, o := range u.observations {
		e.observe(o.req, o.result, o.err, o.elapsed)
	}

	// Events leave the process only once the whole unit is durable
	if e.dispatcher != nil {
		for _, evt := range u.events {
			e.dispatcher.DispatchAsync(ctx, evt)
		}
	}
	return nil
}

func (e *engineImpl) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	start := e.clock.Now()
	outer := unitFrom(ctx)

	var result *TransitionResult
	err := e.Atomically(ctx, req.Subject().String(), func(ctx context.Context) error {
		var err error
		result, err = e.apply(ctx, req)
		return err
	})

	// A nested transition is only reported once the enclosing unit commits
	if outer != nil {
		outer.observations = append(outer.observations, observation{req, result, err, e.clock.Since(start)})
	} else {
		e.observe(req, result, err, e.clock.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// apply runs inside a unit of work
func (e *engineImpl) apply(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	reg, err := e.registration(req.SubjectType)
	if err != nil {
		return nil, err
	}

	status, err := reg.store.GetStatus(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	from := domainwf.State(status)

	machine, err := reg.def.Machine(from)
	if err != nil {
		return nil, err
	}

	in := domainwf.Input{Reason: req.Reason, Payload: req.Payload}
	if req.Actor != nil {
		in.ActorID = req.Actor.ID
	}

	t, err := machine.Fire(ctx, req.Action, in, e.authorizer(req))
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{
		Subject:        req.Subject(),
		Action:         req.Action,
		PreviousStatus: from,
		NewStatus:      t.To,
	}
	if t.IsNoOp(from) {
		result.NoOp = true
		return result, nil
	}

	if t.To != from {
		if err := reg.store.UpdateStatus(ctx, req.SubjectID, from.String(), t.To.String()); err != nil {
			return nil, err
		}
	}

	now := e.clock.Now()
	if t.Hook != "" {
		hook, err := e.hook(t.Hook)
		if err != nil {
			return nil, err
		}
		hc := &HookContext{Request: req, Transition: t, From: from, Now: now}
		if err := hook(ctx, hc); err != nil {
			return nil, err
		}
	}

	payload, err := encodePayload(req.Payload)
	if err != nil {
		return nil, err
	}
	record := &entity.TransitionRecord{
		SubjectType:    req.SubjectType,
		SubjectID:      req.SubjectID,
		ActorID:        in.ActorID,
		Action:         req.Action.String(),
		PreviousStatus: from.String(),
		NewStatus:      t.To.String(),
		Reason:         req.Reason,
		Payload:        payload,
		CreatedAt:      now,
	}
	if err := e.historyRepo.Append(ctx, record); err != nil {
		return nil, err
	}
	result.Record = record

	if u := unitFrom(ctx); u != nil {
		u.events = append(u.events, event.NewEvent(event.TypeStatusChanged, req.Subject(), map[string]interface{}{
			event.KeyPreviousStatus: from.String(),
			event.KeyNewStatus:      t.To.String(),
			event.KeyAction:         req.Action.String(),
			event.KeyActorID:        in.ActorID,
			event.KeyReason:         req.Reason,
		}, now))
	}

	return result, nil
}

// authorizer checks the actor against the required capability, which the
// policy may override per (subject type, action)
func (e *engineImpl) authorizer(req TransitionRequest) domainwf.AuthorizeFunc {
	return func(t domainwf.Transition) error {
		required := t.Capability.String()
		if e.policy != nil {
			if c, ok := e.policy.RequiredCapability(req.SubjectType, t.Action.String()); ok {
				required = c
			}
		}
		if required == "" {
			return nil
		}
		if !req.Actor.Has(required) {
			return fmt.Errorf("%w: %s %s requires %s", domainwf.ErrUnauthorized, t.Action, req.SubjectType, required)
		}
		return nil
	}
}

func (e *engineImpl) PermittedActions(ctx context.Context, subject entity.SubjectRef) ([]domainwf.Action, error) {
	reg, err := e.registration(subject.Type)
	if err != nil {
		return nil, err
	}
	status, err := reg.store.GetStatus(ctx, subject.ID)
	if err != nil {
		return nil, err
	}
	machine, err := reg.def.Machine(domainwf.State(status))
	if err != nil {
		return nil, err
	}
	return machine.PermittedActions(), nil
}

func (e *engineImpl) registration(subjectType entity.SubjectType) (registration, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	reg, ok := e.registrations[subjectType]
	if !ok {
		return registration{}, fmt.Errorf("%w: no workflow registered for %s", domainwf.ErrInvalidState, subjectType)
	}
	return reg, nil
}

func (e *engineImpl) hook(name string) (Hook, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	hook, ok := e.hooks[name]
	if !ok {
		return nil, fmt.Errorf("hook %q is not registered", name)
	}
	return hook, nil
}

func (e *engineImpl) observe(req TransitionRequest, result *TransitionResult, err error, elapsed time.Duration) {
	outcome := "applied"
	switch {
	case err != nil:
		outcome = string(domainwf.KindOf(err))
	case result.NoOp:
		outcome = "noop"
	}

	if e.recorder != nil {
		e.recorder.ObserveTransition(req.SubjectType, req.Action.String(), outcome, elapsed)
	}
	if e.logger == nil {
		return
	}
	if err != nil {
		e.logger.Error("Transition rejected",
			"subject", req.Subject().String(),
			"action", req.Action.String(),
			"kind", outcome,
			"error", err.Error())
		return
	}
	e.logger.Info("Transition committed",
		"subject", req.Subject().String(),
		"action", req.Action.String(),
		"from", result.PreviousStatus.String(),
		"to", result.NewStatus.String(),
		"noop", result.NoOp)
}

func encodePayload(p domainwf.Payload) (string, error) {
	if len(p) == 0 {
		return "", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode transition payload: %w", err)
	}
	return string(b), nil
}

// Verify interface compliance
var _ Engine = (*engineImpl)(nil)
