package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

// policyFile is the on-disk layout:
//
//	roles:
//	  finance: [quote.finance_audit, payment.confirm]
//	transitions:
//	  QUOTE:
//	    FALLBACK: quote.fallback
type policyFile struct {
	Roles       map[string][]string          `yaml:"roles"`
	Transitions map[string]map[string]string `yaml:"transitions"`
}

// StaticPolicy resolves capabilities from a YAML file mapping roles to
// capability strings, with optional per-transition capability overrides
type StaticPolicy struct {
	path   string
	mu     sync.RWMutex
	policy policyFile
}

var _ port.CapabilityPolicy = (*StaticPolicy)(nil)

// Load reads the policy at path
func Load(path string) (*StaticPolicy, error) {
	p := &StaticPolicy{path: path}
	if err := p.Sync(); err != nil {
		return nil, err
	}
	return p, nil
}

// Parse builds a policy from YAML held in memory
func Parse(data []byte) (*StaticPolicy, error) {
	pf, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("policy: parsing: %w", err)
	}
	return &StaticPolicy{policy: pf}, nil
}

// Sync reloads the policy file from disk
func (p *StaticPolicy) Sync() error {
	if p.path == "" {
		return nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("policy: reading %s: %w", p.path, err)
	}
	pf, err := decode(data)
	if err != nil {
		return fmt.Errorf("policy: parsing %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.policy = pf
	p.mu.Unlock()
	return nil
}

// CapabilitiesFor returns the sorted union of capabilities for roles.
// Unknown roles contribute nothing.
func (p *StaticPolicy) CapabilitiesFor(roles []string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := make(map[string]struct{})
	for _, role := range roles {
		for _, c := range p.policy.Roles[strings.TrimSpace(role)] {
			set[c] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// RequiredCapability reports the configured capability for a transition.
// An override of "" makes the transition open to every actor.
func (p *StaticPolicy) RequiredCapability(subjectType entity.SubjectType, action string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	actions, ok := p.policy.Transitions[subjectType.String()]
	if !ok {
		return "", false
	}
	c, ok := actions[action]
	return c, ok
}

// Roles lists configured role names
func (p *StaticPolicy) Roles() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, 0, len(p.policy.Roles))
	for role := range p.policy.Roles {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

func decode(data []byte) (policyFile, error) {
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return policyFile{}, err
	}

	for subject, actions := range pf.Transitions {
		if !entity.SubjectType(subject).IsValid() {
			return policyFile{}, fmt.Errorf("unknown subject type %q", subject)
		}
		for action, c := range actions {
			actions[action] = strings.TrimSpace(c)
		}
	}
	for role, caps := range pf.Roles {
		cleaned := caps[:0]
		for _, c := range caps {
			if c = strings.TrimSpace(c); c != "" {
				cleaned = append(cleaned, c)
			}
		}
		pf.Roles[role] = cleaned
	}
	return pf, nil
}
