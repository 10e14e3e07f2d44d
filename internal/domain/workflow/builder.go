package workflow

import (
	"context"
	"fmt"
)

// GuardFunc evaluates document-specific preconditions for a transition.
// A non-nil error rejects the transition.
type GuardFunc func(ctx context.Context, from State, in Input) error

// Input carries the caller-supplied data a guard may inspect
type Input struct {
	ActorID int64
	Reason  string
	Payload Payload
}

// Transition is one row of a transition table
type Transition struct {
	From       State
	Action     Action
	To         State
	Capability Capability
	Hook       string
	Idempotent bool
	guard      GuardFunc
}

// IsNoOp reports whether firing t from current re-applies an already satisfied target
func (t Transition) IsNoOp(current State) bool {
	return t.Idempotent && t.To == current
}

// TransitionOption configures a single transition
type TransitionOption func(*Transition)

// RequireCapability sets the capability an actor must hold
func RequireCapability(c Capability) TransitionOption {
	return func(t *Transition) {
		t.Capability = c
	}
}

// WithHook names the side-effect hook invoked when the transition is taken
func WithHook(name string) TransitionOption {
	return func(t *Transition) {
		t.Hook = name
	}
}

// WithGuard attaches a precondition
func WithGuard(guard GuardFunc) TransitionOption {
	return func(t *Transition) {
		t.guard = guard
	}
}

// Idempotent marks a self-loop as a satisfied-postcondition check: firing it
// again produces no side effect and no history.
func Idempotent() TransitionOption {
	return func(t *Transition) {
		t.Idempotent = true
	}
}

// Builder assembles a workflow definition
type Builder interface {
	// States declares the ordered state set
	States(states ...State) Builder

	// Initial sets the state new subjects are created in
	Initial(state State) Builder

	// Terminal marks states that accept no further state-changing actions
	Terminal(states ...State) Builder

	// Configure returns the configuration for transitions leaving state
	Configure(state State) StateConfiguration

	// Build validates the table and returns an immutable definition
	Build() *Definition
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows action to move the subject to the target state
	Permit(action Action, to State, opts ...TransitionOption) StateConfiguration
}

type stateConfig struct {
	builder *definitionBuilder
	from    State
}

type definitionBuilder struct {
	name     string
	states   []State
	valid    map[State]bool
	initial  State
	terminal map[State]bool
	table    map[State]map[Action][]Transition
	order    map[State][]Action
}

// NewBuilder creates a builder for the named workflow
func NewBuilder(name string) Builder {
	return &definitionBuilder{
		name:     name,
		valid:    make(map[State]bool),
		terminal: make(map[State]bool),
		table:    make(map[State]map[Action][]Transition),
		order:    make(map[State][]Action),
	}
}

func (b *definitionBuilder) States(states ...State) Builder {
	for _, s := range states {
		if b.valid[s] {
			continue
		}
		b.valid[s] = true
		b.states = append(b.states, s)
	}
	return b
}

func (b *definitionBuilder) Initial(state State) Builder {
	b.mustKnow(state)
	b.initial = state
	return b
}

func (b *definitionBuilder) Terminal(states ...State) Builder {
	for _, s := range states {
		b.mustKnow(s)
		b.terminal[s] = true
	}
	return b
}

func (b *definitionBuilder) Configure(state State) StateConfiguration {
	b.mustKnow(state)
	if _, ok := b.table[state]; !ok {
		b.table[state] = make(map[Action][]Transition)
	}
	return &stateConfig{builder: b, from: state}
}

func (b *definitionBuilder) Build() *Definition {
	if b.initial == "" {
		panic(fmt.Sprintf("workflow %s: initial state not set", b.name))
	}

	for state := range b.terminal {
		for action, transitions := range b.table[state] {
			for _, t := range transitions {
				if !t.IsNoOp(state) {
					panic(fmt.Sprintf("workflow %s: terminal state %s has outgoing transition %s -> %s",
						b.name, state, action, t.To))
				}
			}
		}
	}

	// Deep copy so later builder calls cannot mutate the definition
	table := make(map[State]map[Action][]Transition, len(b.table))
	for state, actions := range b.table {
		copied := make(map[Action][]Transition, len(actions))
		for action, transitions := range actions {
			copied[action] = append([]Transition{}, transitions...)
		}
		table[state] = copied
	}
	order := make(map[State][]Action, len(b.order))
	for state, actions := range b.order {
		order[state] = append([]Action{}, actions...)
	}
	valid := make(map[State]bool, len(b.valid))
	for s := range b.valid {
		valid[s] = true
	}
	terminal := make(map[State]bool, len(b.terminal))
	for s := range b.terminal {
		terminal[s] = true
	}

	return &Definition{
		name:     b.name,
		states:   append([]State{}, b.states...),
		valid:    valid,
		initial:  b.initial,
		terminal: terminal,
		table:    table,
		order:    order,
	}
}

func (b *definitionBuilder) mustKnow(state State) {
	if !b.valid[state] {
		panic(fmt.Sprintf("workflow %s: undeclared state %s", b.name, state))
	}
}

// Permit allows action to move the subject to the target state
func (c *stateConfig) Permit(action Action, to State, opts ...TransitionOption) StateConfiguration {
	c.builder.mustKnow(to)

	t := Transition{
		From:   c.from,
		Action: action,
		To:     to,
	}
	for _, opt := range opts {
		opt(&t)
	}
	if t.Idempotent && t.To != t.From {
		panic(fmt.Sprintf("workflow %s: idempotent transition %s must be a self-loop on %s",
			c.builder.name, action, c.from))
	}

	actions := c.builder.table[c.from]
	if _, seen := actions[action]; !seen {
		c.builder.order[c.from] = append(c.builder.order[c.from], action)
	}
	actions[action] = append(actions[action], t)

	return c
}
