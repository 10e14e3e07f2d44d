package workflow

import "fmt"

// Definition is an immutable, data-described workflow: the state set, the
// initial and terminal states and the (state, action) transition table.
type Definition struct {
	name     string
	states   []State
	valid    map[State]bool
	initial  State
	terminal map[State]bool
	table    map[State]map[Action][]Transition
	order    map[State][]Action
}

// Name returns the workflow name, which is the subject type it governs
func (d *Definition) Name() string {
	return d.name
}

// States returns the declared states in declaration order
func (d *Definition) States() []State {
	return append([]State{}, d.states...)
}

// Initial returns the state new subjects start in
func (d *Definition) Initial() State {
	return d.initial
}

// IsValid reports whether s belongs to the workflow
func (d *Definition) IsValid(s State) bool {
	return d.valid[s]
}

// IsTerminal reports whether s accepts no further state-changing actions
func (d *Definition) IsTerminal(s State) bool {
	return d.terminal[s]
}

// Candidates returns the transitions for (from, action) in declaration order
func (d *Definition) Candidates(from State, action Action) ([]Transition, error) {
	if !d.valid[from] {
		return nil, fmt.Errorf("%w: %s is not a %s state", ErrInvalidState, from, d.name)
	}

	transitions := d.table[from][action]
	if len(transitions) == 0 {
		return nil, fmt.Errorf("%w: cannot %s %s from %s", ErrInvalidTransition, action, d.name, from)
	}

	return append([]Transition{}, transitions...), nil
}

// PermittedActions returns the actions defined for from, in declaration order
func (d *Definition) PermittedActions(from State) []Action {
	return append([]Action{}, d.order[from]...)
}

// ActionTo finds the first action leading from one state to another
func (d *Definition) ActionTo(from, to State) (Action, bool) {
	for _, action := range d.order[from] {
		for _, t := range d.table[from][action] {
			if t.To == to {
				return action, true
			}
		}
	}
	return "", false
}

// Hooks returns every hook name the table references
func (d *Definition) Hooks() []string {
	seen := make(map[string]bool)
	var hooks []string
	for _, state := range d.states {
		for _, action := range d.order[state] {
			for _, t := range d.table[state][action] {
				if t.Hook != "" && !seen[t.Hook] {
					seen[t.Hook] = true
					hooks = append(hooks, t.Hook)
				}
			}
		}
	}
	return hooks
}

// Machine returns a state machine positioned at current
func (d *Definition) Machine(current State) (StateMachine, error) {
	if !d.valid[current] {
		return nil, fmt.Errorf("%w: %s is not a %s state", ErrInvalidState, current, d.name)
	}
	return &stateMachine{def: d, current: current}, nil
}
