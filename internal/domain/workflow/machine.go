package workflow

import (
	"context"
	"fmt"
)

// AuthorizeFunc vets a candidate transition before its guard runs.
// A non-nil error skips the candidate.
type AuthorizeFunc func(t Transition) error

// StateMachine tracks the current state of one subject and validates actions
// against its definition
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the action has at least one transition from the current state
	CanFire(action Action) bool

	// Fire selects the first candidate that passes authorize and its guard,
	// moves to its target state and returns it
	Fire(ctx context.Context, action Action, in Input, authorize AuthorizeFunc) (Transition, error)

	// PermittedActions returns all actions defined for the current state
	PermittedActions() []Action
}

type stateMachine struct {
	def     *Definition
	current State
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(action Action) bool {
	return len(m.def.table[m.current][action]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, action Action, in Input, authorize AuthorizeFunc) (Transition, error) {
	candidates, err := m.def.Candidates(m.current, action)
	if err != nil {
		return Transition{}, err
	}

	var firstErr error
	for _, t := range candidates {
		if authorize != nil {
			if err := authorize(t); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		if t.guard != nil {
			if err := t.guard(ctx, m.current, in); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: %s %s from %s: %w", ErrPreconditionFailed, action, m.def.name, m.current, err)
				}
				continue
			}
		}
		m.current = t.To
		return t, nil
	}

	return Transition{}, firstErr
}

func (m *stateMachine) PermittedActions() []Action {
	return m.def.PermittedActions(m.current)
}
