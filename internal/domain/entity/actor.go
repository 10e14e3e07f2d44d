package entity

import "sort"

// Actor is the caller identity a workflow operation runs on behalf of.
// Authentication happens upstream; the actor only carries what was resolved.
type Actor struct {
	ID           int64    `json:"id"`
	Roles        []string `json:"roles,omitempty"`
	capabilities map[string]bool
}

// NewActor creates an actor holding the given capabilities
func NewActor(id int64, roles []string, capabilities ...string) *Actor {
	a := &Actor{
		ID:           id,
		Roles:        roles,
		capabilities: make(map[string]bool, len(capabilities)),
	}
	for _, c := range capabilities {
		a.capabilities[c] = true
	}
	return a
}

// Has reports whether the actor holds capability
func (a *Actor) Has(capability string) bool {
	if a == nil {
		return false
	}
	return a.capabilities[capability]
}

// Capabilities returns the held capabilities sorted by name
func (a *Actor) Capabilities() []string {
	if a == nil {
		return nil
	}
	out := make([]string, 0, len(a.capabilities))
	for c := range a.capabilities {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
